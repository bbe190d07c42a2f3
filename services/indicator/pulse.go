// services/indicator/pulse.go
package indicator

import (
	"time"

	"statusmon-go/x/mathx"
	"statusmon-go/x/ramp"
)

// PulseStrategy selects how LEDPulse is rendered. The reference hardware
// shipped the blink alias; boards whose indicator sits on a PWM-capable pin
// can opt into a real brightness ramp.
type PulseStrategy uint8

const (
	// PulseBlink renders pulse as fast blinking at half the requested
	// interval per phase.
	PulseBlink PulseStrategy = iota
	// PulseRamp renders pulse as a triangle PWM ramp over the interval.
	PulseRamp
)

// ParsePulse maps config strings to a strategy; unknown values blink.
func ParsePulse(s string) PulseStrategy {
	if s == "ramp" {
		return PulseRamp
	}
	return PulseBlink
}

const (
	defaultPWMFreqHz = 1000
	defaultPWMTop    = 1000
	rampSteps        = 32
)

func (d *Indicator) startPulseLocked(intervalMs uint32) {
	if d.pulse == PulseRamp && d.pwm != nil {
		d.cycling = true
		d.toggles = 0
		go d.runRamp(d.token, intervalMs)
		return
	}
	d.startCycleLocked(mathx.Max(intervalMs/2, 1))
}

// runRamp ramps brightness 0 -> top -> 0 until its token goes stale. The
// tick callback doubles as the cancellation check, so a superseded ramp dies
// at its next step without touching the output again.
func (d *Indicator) runRamp(tok uint32, intervalMs uint32) {
	top := d.pwm.Top()
	if top == 0 {
		top = defaultPWMTop
	}

	alive := func() bool {
		d.mu.Lock()
		ok := tok == d.token
		d.mu.Unlock()
		return ok
	}
	tick := func(dur time.Duration) bool {
		time.Sleep(dur)
		return alive()
	}
	set := func(lvl uint16) {
		d.mu.Lock()
		if tok != d.token {
			// Superseded: the new pattern owns the duty now.
			d.mu.Unlock()
			return
		}
		d.pwm.Set(lvl)
		d.level = lvl > 0
		d.mu.Unlock()
	}

	cur := uint16(0)
	set(0)
	for alive() {
		ramp.StartLinear(cur, top, top, intervalMs, rampSteps, tick, set)
		cur = top
		if !alive() {
			break
		}
		ramp.StartLinear(cur, 0, top, intervalMs, rampSteps, tick, set)
		cur = 0
	}
}
