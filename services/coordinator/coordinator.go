// services/coordinator/coordinator.go
package coordinator

import (
	"sync"

	"statusmon-go/types"
	"statusmon-go/x/timex"
)

const (
	// DefaultSlowBlinkMs is the disconnected-link blink period.
	DefaultSlowBlinkMs = 2000
	// ErrorBlinkMs is the fast error pattern period.
	ErrorBlinkMs = 250
)

// Listener receives deduplicated indication changes.
type Listener interface {
	IndicationChanged(ind types.Indication)
}

const maxListeners = 2

// Recompute reduces the two domain states to one indication. It is a pure
// function of its inputs: the whole policy runs from scratch every time, so
// the output can never get stuck on a stale partial update.
//
// Priority policy: while the charge domain is in a defined state it wins
// outright (charging shows steady on, full shows off). An unknown charge
// state, or a configuration that demotes it, falls through to the link
// domain: connected is off, disconnected blinks slowly, unknown shows the
// fast error blink.
func Recompute(charge, link types.LogicalState, chargePriority bool, slowMs uint32) types.Indication {
	if slowMs == 0 {
		slowMs = DefaultSlowBlinkMs
	}
	if chargePriority {
		switch charge {
		case types.StateAsserted:
			return types.Indication{Target: types.TargetCharging, Mode: types.LEDOn}
		case types.StateDeasserted:
			return types.Indication{Target: types.TargetFullCharge, Mode: types.LEDOff}
		}
		// Unknown charge state: fall through to the link domain.
	}
	switch link {
	case types.StateAsserted:
		return types.Indication{Target: types.TargetLinkConnected, Mode: types.LEDOff}
	case types.StateDeasserted:
		return types.Indication{Target: types.TargetLinkDisconnected, Mode: types.LEDBlinkSlow, IntervalMs: slowMs}
	default:
		return types.Indication{Target: types.TargetError, Mode: types.LEDBlinkFast, IntervalMs: ErrorBlinkMs}
	}
}

// Coordinator subscribes to both monitors, recomputes the indication on every
// input change, and fans out only real transitions.
type Coordinator struct {
	mu             sync.Mutex
	charge         types.LogicalState
	link           types.LogicalState
	out            types.Indication
	chargePriority bool
	slowMs         uint32
	lastChangeMs   int64
	listeners      [maxListeners]Listener
	n              int
}

// New builds a coordinator. The initial output reflects both domains Unknown.
func New(chargePriority bool, slowMs uint32) *Coordinator {
	c := &Coordinator{
		chargePriority: chargePriority,
		slowMs:         slowMs,
		lastChangeMs:   timex.NowMs(),
	}
	c.out = Recompute(types.StateUnknown, types.StateUnknown, chargePriority, slowMs)
	return c
}

// AddListener registers a listener and fires it once with the current
// indication so it starts synchronized.
func (c *Coordinator) AddListener(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	if c.n == maxListeners {
		c.mu.Unlock()
		return
	}
	c.listeners[c.n] = l
	c.n++
	out := c.out
	c.mu.Unlock()
	l.IndicationChanged(out)
}

// StateChanged implements monitor.Observer for both domains.
func (c *Coordinator) StateChanged(domain string, s types.LogicalState) {
	c.mu.Lock()
	switch domain {
	case types.DomainCharge:
		if c.charge == s {
			c.mu.Unlock()
			return
		}
		c.charge = s
	case types.DomainLink:
		if c.link == s {
			c.mu.Unlock()
			return
		}
		c.link = s
	default:
		c.mu.Unlock()
		return
	}

	next := Recompute(c.charge, c.link, c.chargePriority, c.slowMs)
	if next == c.out {
		c.mu.Unlock()
		return
	}
	old := c.out
	c.out = next
	c.lastChangeMs = timex.NowMs()
	var ls [maxListeners]Listener
	n := c.n
	copy(ls[:], c.listeners[:n])
	c.mu.Unlock()

	println("Info: indication changed:", old.Target.String(), "->", next.Target.String(),
		"mode:", next.Mode.String())
	for i := 0; i < n; i++ {
		ls[i].IndicationChanged(next)
	}
}

// Current returns the present indication.
func (c *Coordinator) Current() types.Indication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}

// LastChangeMs reports when the indication last actually changed.
func (c *Coordinator) LastChangeMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastChangeMs
}
