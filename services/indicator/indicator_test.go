package indicator

import (
	"testing"
	"time"

	"statusmon-go/errcode"
	"statusmon-go/platform"
	"statusmon-go/types"
)

func newTestIndicator(t *testing.T) (*Indicator, *platform.FakePin) {
	t.Helper()
	pin := platform.NewFakePin(25)
	d := New(pin, false, PulseBlink, nil)
	if err := d.Init(); err != nil {
		t.Fatal("init:", err)
	}
	t.Cleanup(d.StopAll)
	return d, pin
}

func on(interval uint32) types.Indication {
	return types.Indication{Target: types.TargetCharging, Mode: types.LEDOn, IntervalMs: interval}
}

func TestInitForcesOff(t *testing.T) {
	d, pin := newTestIndicator(t)
	if d.IsOn() || pin.Output() {
		t.Fatal("output not off after init")
	}
	if err := d.Init(); err != nil {
		t.Fatal("second init:", err)
	}
}

func TestInitNilPin(t *testing.T) {
	d := New(nil, false, PulseBlink, nil)
	if err := d.Init(); errcode.Of(err) != errcode.UnknownPin {
		t.Fatal("want unknown_pin, got:", err)
	}
}

func TestInitActiveLowParksHigh(t *testing.T) {
	pin := platform.NewFakePin(25)
	d := New(pin, true, PulseBlink, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if d.IsOn() {
		t.Fatal("logical level should be off")
	}
	if !pin.Output() {
		t.Fatal("active-low off must drive the pin high")
	}

	if err := d.SetState(on(0)); err != nil {
		t.Fatal(err)
	}
	if pin.Output() {
		t.Fatal("active-low on must drive the pin low")
	}
}

func TestSetStateBeforeInit(t *testing.T) {
	d := New(platform.NewFakePin(25), false, PulseBlink, nil)
	if err := d.SetState(on(0)); errcode.Of(err) != errcode.NotInitialized {
		t.Fatal("want not_initialized, got:", err)
	}
}

func TestStaticLevels(t *testing.T) {
	d, pin := newTestIndicator(t)

	if err := d.SetState(on(0)); err != nil {
		t.Fatal(err)
	}
	if !d.IsOn() || !pin.Output() {
		t.Fatal("on not driven")
	}

	off := types.Indication{Target: types.TargetFullCharge, Mode: types.LEDOff}
	if err := d.SetState(off); err != nil {
		t.Fatal(err)
	}
	if d.IsOn() || pin.Output() {
		t.Fatal("off not driven")
	}
	if s := d.State(); s.Cycling {
		t.Fatal("static mode left a cycle running")
	}
}

func TestSameTargetAndModeIsNoOp(t *testing.T) {
	d, pin := newTestIndicator(t)
	if err := d.SetState(on(0)); err != nil {
		t.Fatal(err)
	}
	writes := pin.SetCount()

	if err := d.SetState(on(0)); err != nil {
		t.Fatal(err)
	}
	if pin.SetCount() != writes {
		t.Fatal("no-op call touched the actuator")
	}
}

func TestBlinkTogglesAtPeriod(t *testing.T) {
	d, _ := newTestIndicator(t)
	blink := types.Indication{Target: types.TargetLinkDisconnected, Mode: types.LEDBlinkSlow, IntervalMs: 30}
	if err := d.SetState(blink); err != nil {
		t.Fatal(err)
	}
	// On-phase is driven immediately at cycle start.
	if !d.IsOn() {
		t.Fatal("cycle did not start in the on phase")
	}

	time.Sleep(130 * time.Millisecond)
	s := d.State()
	if !s.Cycling {
		t.Fatal("cycle stopped on its own")
	}
	// ~4 periods elapsed; allow generous scheduler slack.
	if s.Toggles < 2 || s.Toggles > 6 {
		t.Fatal("toggles:", s.Toggles)
	}
}

func TestPatternChangeStopsCycle(t *testing.T) {
	d, pin := newTestIndicator(t)
	blink := types.Indication{Target: types.TargetError, Mode: types.LEDBlinkFast, IntervalMs: 10}
	if err := d.SetState(blink); err != nil {
		t.Fatal(err)
	}
	time.Sleep(35 * time.Millisecond)

	if err := d.SetState(types.Indication{Target: types.TargetLinkConnected, Mode: types.LEDOff}); err != nil {
		t.Fatal(err)
	}
	writes := pin.SetCount()
	time.Sleep(60 * time.Millisecond)
	if d.IsOn() {
		t.Fatal("stale toggle turned the output back on")
	}
	if pin.SetCount() != writes {
		t.Fatal("stale cycle kept writing the actuator")
	}
}

func TestZeroIntervalBlinkDegradesToOff(t *testing.T) {
	d, _ := newTestIndicator(t)
	bad := types.Indication{Target: types.TargetError, Mode: types.LEDBlinkFast}
	if err := d.SetState(bad); err != nil {
		t.Fatal(err)
	}
	if s := d.State(); s.Cycling || s.Level {
		t.Fatal("zero-interval cycle should park off")
	}
}

func TestStopAll(t *testing.T) {
	d, _ := newTestIndicator(t)
	blink := types.Indication{Target: types.TargetError, Mode: types.LEDBlinkFast, IntervalMs: 10}
	if err := d.SetState(blink); err != nil {
		t.Fatal(err)
	}
	d.StopAll()

	s := d.State()
	if s.Cycling || s.Level {
		t.Fatal("stop_all left the output running")
	}
	time.Sleep(40 * time.Millisecond)
	if d.IsOn() {
		t.Fatal("cycle survived stop_all")
	}
}

func TestPulseBlinkAliasHalvesPeriod(t *testing.T) {
	d, _ := newTestIndicator(t)
	pulse := types.Indication{Target: types.TargetCharging, Mode: types.LEDPulse, IntervalMs: 60}
	if err := d.SetState(pulse); err != nil {
		t.Fatal(err)
	}
	time.Sleep(130 * time.Millisecond)
	s := d.State()
	if !s.Cycling {
		t.Fatal("pulse alias not cycling")
	}
	// 30ms phases: noticeably more toggles than a plain 60ms blink.
	if s.Toggles < 3 {
		t.Fatal("toggles:", s.Toggles)
	}
}

func TestPulseRampDrivesPWM(t *testing.T) {
	pin := platform.NewFakePin(25)
	pwm := platform.NewFakePWM()
	d := New(pin, false, PulseRamp, pwm)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.StopAll)

	pulse := types.Indication{Target: types.TargetCharging, Mode: types.LEDPulse, IntervalMs: 40}
	if err := d.SetState(pulse); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	duties := pwm.Duties()
	var peak uint16
	for _, v := range duties {
		if v > peak {
			peak = v
		}
	}
	if len(duties) < 4 {
		t.Fatal("ramp wrote", len(duties), "duty steps")
	}
	if peak != pwm.Top() {
		t.Fatal("ramp never reached full brightness, peak:", peak)
	}

	// A static pattern supersedes the ramp and pins the duty.
	if err := d.SetState(types.Indication{Target: types.TargetFullCharge, Mode: types.LEDOff}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if pwm.Duty() != 0 {
		t.Fatal("duty after off:", pwm.Duty())
	}
}

func TestPWMConfigureFailureDegradesToBlink(t *testing.T) {
	pin := platform.NewFakePin(25)
	pwm := platform.NewFakePWM()
	pwm.FailConfigure(errcode.InitFailed)
	d := New(pin, false, PulseRamp, pwm)
	if err := d.Init(); err != nil {
		t.Fatal("init should tolerate pwm failure:", err)
	}
	t.Cleanup(d.StopAll)

	pulse := types.Indication{Target: types.TargetCharging, Mode: types.LEDPulse, IntervalMs: 20}
	if err := d.SetState(pulse); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if s := d.State(); !s.Cycling || s.Toggles == 0 {
		t.Fatal("pulse did not degrade to blinking")
	}
	if len(pwm.Duties()) != 0 {
		t.Fatal("degraded pulse still wrote pwm duties")
	}
}
