// services/indicator/indicator.go
package indicator

import (
	"sync"
	"time"

	"statusmon-go/errcode"
	"statusmon-go/types"
)

// Snapshot is the driver's observable state, for diagnostics and tests.
type Snapshot struct {
	Indication types.Indication
	Level      bool // logical output level
	Cycling    bool
	Toggles    uint32
}

// Indicator renders an Indication as timed output behavior on one actuator.
//
// Timing contract: periodic modes hold each output phase for the full
// IntervalMs (symmetric duty, on-phase driven immediately at cycle start).
// Every scheduled toggle carries the cycle token it was armed under and
// silently discards itself if a SetState or StopAll has since advanced the
// token; timer cancellation alone is not trusted to win that race.
type Indicator struct {
	out       types.GPIOPin
	pwm       types.PWMOutput // optional, enables the ramp pulse strategy
	activeLow bool
	pulse     PulseStrategy

	mu          sync.Mutex
	initialized bool
	cur         types.Indication
	level       bool
	cycling     bool
	token       uint32
	toggles     uint32
	timer       *time.Timer
}

// New builds an indicator on a GPIO output. pwm may be nil; without it the
// ramp pulse strategy degrades to the blink alias.
func New(out types.GPIOPin, activeLow bool, pulse PulseStrategy, pwm types.PWMOutput) *Indicator {
	return &Indicator{out: out, pwm: pwm, activeLow: activeLow, pulse: pulse}
}

// Init configures the output and forces it off. Idempotent.
func (d *Indicator) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	if d.out == nil {
		return errcode.UnknownPin
	}
	if err := d.out.ConfigureOutput(d.physical(false)); err != nil {
		return &errcode.E{C: errcode.InitFailed, Op: "configure_output", Err: err}
	}
	if d.pwm != nil {
		if err := d.pwm.Configure(defaultPWMFreqHz, defaultPWMTop); err != nil {
			// PWM is optional sugar; fall back to plain GPIO pulsing.
			println("Warn: indicator: pwm configure failed, pulse degrades to blink:", err.Error())
			d.pwm = nil
		}
	}
	d.initialized = true
	d.level = false
	d.cur = types.Indication{}
	return nil
}

// SetState is the only entry point for pattern changes. A call with the same
// target and mode is a no-op: no actuator write, no timer churn.
func (d *Indicator) SetState(ind types.Indication) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return errcode.NotInitialized
	}
	if ind.Same(d.cur) {
		return nil
	}

	d.stopCycleLocked()
	d.cur = ind

	switch ind.Mode {
	case types.LEDOff:
		d.setLevelLocked(false)
	case types.LEDOn:
		d.setLevelLocked(true)
	case types.LEDBlinkSlow, types.LEDBlinkFast:
		d.startCycleLocked(ind.IntervalMs)
	case types.LEDPulse:
		d.startPulseLocked(ind.IntervalMs)
	default:
		d.setLevelLocked(false)
	}
	return nil
}

// StopAll cancels any running cycle and forces the output off. Used at
// shutdown or fault.
func (d *Indicator) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return
	}
	d.stopCycleLocked()
	d.setLevelLocked(false)
	d.cur = types.Indication{}
	println("Info: indicator stopped")
}

// IsOn reports the logical output level.
func (d *Indicator) IsOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// State returns the observable snapshot.
func (d *Indicator) State() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{Indication: d.cur, Level: d.level, Cycling: d.cycling, Toggles: d.toggles}
}

// -----------------------------------------------------------------------------
// Cycle machinery (mu held)
// -----------------------------------------------------------------------------

func (d *Indicator) startCycleLocked(intervalMs uint32) {
	if intervalMs == 0 {
		d.setLevelLocked(false)
		return
	}
	d.cycling = true
	d.toggles = 0
	d.setLevelLocked(true)
	d.armToggleLocked(d.token, intervalMs)
}

func (d *Indicator) armToggleLocked(tok uint32, intervalMs uint32) {
	d.timer = time.AfterFunc(time.Duration(intervalMs)*time.Millisecond, func() {
		d.fireToggle(tok, intervalMs)
	})
}

// fireToggle runs on the timer goroutine; the token check makes a toggle
// armed before a SetState harmless after it.
func (d *Indicator) fireToggle(tok uint32, intervalMs uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tok != d.token || !d.cycling {
		return // stale cycle
	}
	d.setLevelLocked(!d.level)
	d.toggles++
	d.armToggleLocked(tok, intervalMs)
}

func (d *Indicator) stopCycleLocked() {
	d.token++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.cycling = false
}

func (d *Indicator) setLevelLocked(logical bool) {
	d.level = logical
	d.out.Set(d.physical(logical))
	if d.pwm != nil {
		// Keep the PWM duty coherent with the static level so a pattern
		// change after a ramp does not leave a partial brightness behind.
		if logical {
			d.pwm.Set(d.pwm.Top())
		} else {
			d.pwm.Set(0)
		}
	}
}

func (d *Indicator) physical(logical bool) bool {
	if d.activeLow {
		return !logical
	}
	return logical
}
