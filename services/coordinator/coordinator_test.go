package coordinator

import (
	"sync"
	"testing"

	"statusmon-go/types"
)

type indRecorder struct {
	mu   sync.Mutex
	inds []types.Indication
}

func (r *indRecorder) IndicationChanged(ind types.Indication) {
	r.mu.Lock()
	r.inds = append(r.inds, ind)
	r.mu.Unlock()
}

func (r *indRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inds)
}

func (r *indRecorder) last() types.Indication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inds[len(r.inds)-1]
}

var states = []types.LogicalState{types.StateUnknown, types.StateAsserted, types.StateDeasserted}

func TestRecomputePolicy(t *testing.T) {
	cases := []struct {
		name         string
		charge, link types.LogicalState
		want         types.Indication
	}{
		{"charging", types.StateAsserted, types.StateUnknown,
			types.Indication{Target: types.TargetCharging, Mode: types.LEDOn}},
		{"full", types.StateDeasserted, types.StateUnknown,
			types.Indication{Target: types.TargetFullCharge, Mode: types.LEDOff}},
		{"charge unknown, link up", types.StateUnknown, types.StateAsserted,
			types.Indication{Target: types.TargetLinkConnected, Mode: types.LEDOff}},
		{"charge unknown, link down", types.StateUnknown, types.StateDeasserted,
			types.Indication{Target: types.TargetLinkDisconnected, Mode: types.LEDBlinkSlow, IntervalMs: 2000}},
		{"both unknown", types.StateUnknown, types.StateUnknown,
			types.Indication{Target: types.TargetError, Mode: types.LEDBlinkFast, IntervalMs: ErrorBlinkMs}},
	}
	for _, c := range cases {
		if got := Recompute(c.charge, c.link, true, 0); got != c.want {
			t.Errorf("%s: got %+v want %+v", c.name, got, c.want)
		}
	}
}

func TestRecomputeChargeDominates(t *testing.T) {
	// A defined charge state wins no matter what the link does.
	for _, link := range states {
		if got := Recompute(types.StateAsserted, link, true, 0); got.Target != types.TargetCharging {
			t.Error("charging beaten by link state", link.String(), ":", got.Target.String())
		}
		if got := Recompute(types.StateDeasserted, link, true, 0); got.Target != types.TargetFullCharge {
			t.Error("full beaten by link state", link.String(), ":", got.Target.String())
		}
	}
}

func TestRecomputeChargeDemoted(t *testing.T) {
	// With charge priority off the link domain decides even while charging.
	got := Recompute(types.StateAsserted, types.StateDeasserted, false, 0)
	if got.Target != types.TargetLinkDisconnected {
		t.Fatal("got", got.Target.String())
	}
}

func TestRecomputeSlowBlinkPeriod(t *testing.T) {
	got := Recompute(types.StateUnknown, types.StateDeasserted, true, 3000)
	if got.IntervalMs != 3000 {
		t.Fatal("interval:", got.IntervalMs)
	}
	if got := Recompute(types.StateUnknown, types.StateDeasserted, true, 0); got.IntervalMs != DefaultSlowBlinkMs {
		t.Fatal("default interval:", got.IntervalMs)
	}
}

func TestRecomputeAlwaysValid(t *testing.T) {
	// Every reachable output either is static or carries a period.
	for _, charge := range states {
		for _, link := range states {
			for _, prio := range []bool{true, false} {
				if ind := Recompute(charge, link, prio, 0); !ind.Valid() {
					t.Errorf("invalid indication for charge=%s link=%s prio=%v: %+v",
						charge.String(), link.String(), prio, ind)
				}
			}
		}
	}
}

func TestListenerFiresOnAdd(t *testing.T) {
	c := New(true, 0)
	rec := &indRecorder{}
	c.AddListener(rec)
	if rec.count() != 1 {
		t.Fatal("fires:", rec.count())
	}
	if rec.last().Target != types.TargetError {
		t.Fatal("initial target:", rec.last().Target.String())
	}
}

func TestInputChangePropagates(t *testing.T) {
	c := New(true, 0)
	rec := &indRecorder{}
	c.AddListener(rec)

	c.StateChanged(types.DomainCharge, types.StateAsserted)
	if rec.count() != 2 || rec.last().Target != types.TargetCharging {
		t.Fatalf("after charge asserted: %d fires, last %+v", rec.count(), rec.last())
	}
	if c.Current().Mode != types.LEDOn {
		t.Fatal("current mode:", c.Current().Mode.String())
	}
}

func TestDuplicateInputIgnored(t *testing.T) {
	c := New(true, 0)
	rec := &indRecorder{}
	c.AddListener(rec)

	c.StateChanged(types.DomainCharge, types.StateAsserted)
	before := c.LastChangeMs()
	c.StateChanged(types.DomainCharge, types.StateAsserted)
	if rec.count() != 2 {
		t.Fatal("duplicate input fired listeners:", rec.count())
	}
	if c.LastChangeMs() != before {
		t.Fatal("duplicate input bumped the change timestamp")
	}
}

func TestEqualOutputNotRefired(t *testing.T) {
	c := New(true, 0)
	rec := &indRecorder{}
	c.AddListener(rec)

	c.StateChanged(types.DomainLink, types.StateAsserted)
	if rec.last().Target != types.TargetLinkConnected {
		t.Fatal("last:", rec.last().Target.String())
	}
	fires := rec.count()

	// A repeat of the same link state resolves to the same output and must
	// not reach the listeners again.
	c.StateChanged(types.DomainLink, types.StateAsserted)
	if rec.count() != fires {
		t.Fatal("unchanged output refired listeners")
	}
}

func TestUnknownDomainIgnored(t *testing.T) {
	c := New(true, 0)
	rec := &indRecorder{}
	c.AddListener(rec)
	c.StateChanged("thermal", types.StateAsserted)
	if rec.count() != 1 {
		t.Fatal("unknown domain fired listeners")
	}
}

func TestErrorPatternOnBothUnknown(t *testing.T) {
	c := New(true, 0)
	c.StateChanged(types.DomainCharge, types.StateAsserted)
	c.StateChanged(types.DomainCharge, types.StateUnknown)
	got := c.Current()
	if got.Target != types.TargetError || got.Mode != types.LEDBlinkFast || got.IntervalMs != ErrorBlinkMs {
		t.Fatalf("got %+v", got)
	}
}
