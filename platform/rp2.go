//go:build rp2040 || rp2350

package platform

import (
	"sync"
	"time"

	"machine"

	"tinygo.org/x/drivers"

	"statusmon-go/errcode"
	"statusmon-go/types"
	"statusmon-go/x/mathx"
)

// Pins returns the GPIO factory for the RP2 family. Logical numbers map
// directly to machine.Pin(n), matching Pico/Pico 2 GP numbering.
func Pins() types.PinFactory { return rp2PinFactory{} }

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (types.GPIOPin, bool) {
	// User GPIOs are GP0..GP28 on this family.
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull types.Pull) error {
	var mode machine.PinMode
	switch pull {
	case types.PullUp:
		mode = machine.PinInputPullup
	case types.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }

func (r *rp2Pin) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

func (r *rp2Pin) Number() int { return r.n }

func (r *rp2Pin) SetIRQ(edge types.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e types.Edge) machine.PinChange {
	switch e {
	case types.EdgeRising:
		return machine.PinRising
	case types.EdgeFalling:
		return machine.PinFalling
	case types.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// -----------------------------------------------------------------------------
// PWM
// -----------------------------------------------------------------------------

// Local interface over the machine PWM groups so the handle is testable in
// shape and does not name an unexported concrete type.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// PWMForPin returns the PWM channel behind pin n, or nil when the pin has no
// PWM function. The indicator treats nil as "no ramp support".
func PWMForPin(n int) types.PWMOutput {
	slice, err := machine.PWMPeripheral(machine.Pin(n))
	if err != nil {
		return nil
	}
	return &rp2PWM{pin: n, ctrl: pwmGroupBySlice(slice), chIdx: uint8(n & 1)}
}

// rp2PWM exposes one channel with a logical duty range [0..reqTop], scaled
// onto whatever hardware top the slice configuration produced.
type rp2PWM struct {
	mu     sync.Mutex
	pin    int
	ctrl   pwmCtrl
	chIdx  uint8 // 0 => A, 1 => B
	reqTop uint16
	hwTop  uint32
}

func (p *rp2PWM) Configure(freqHz uint64, top uint16) error {
	freqHz = mathx.Max(freqHz, 1)
	top = mathx.Max(top, 1)

	if err := p.ctrl.Configure(machine.PWMConfig{Period: uint64(time.Second) / freqHz}); err != nil {
		return &errcode.E{C: errcode.InitFailed, Op: "pwm_configure", Err: err}
	}
	machine.Pin(p.pin).Configure(machine.PinConfig{Mode: machine.PinPWM})

	p.mu.Lock()
	p.reqTop = top
	p.hwTop = p.ctrl.Top()
	p.mu.Unlock()
	return nil
}

func (p *rp2PWM) Set(duty uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reqTop == 0 || p.hwTop == 0 {
		return
	}
	duty = mathx.Min(duty, p.reqTop)
	p.ctrl.Set(p.chIdx, (uint32(duty)*p.hwTop)/uint32(p.reqTop))
}

func (p *rp2PWM) Top() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqTop
}

// -----------------------------------------------------------------------------
// I2C
// -----------------------------------------------------------------------------

var rp2I2C struct {
	mu    sync.Mutex
	buses map[string]drivers.I2C
}

// I2CByName configures and returns a board I2C bus on its default pins at
// 400 kHz. Repeat calls return the cached bus.
func I2CByName(name string) drivers.I2C {
	rp2I2C.mu.Lock()
	defer rp2I2C.mu.Unlock()
	if rp2I2C.buses == nil {
		rp2I2C.buses = make(map[string]drivers.I2C)
	}
	if b, ok := rp2I2C.buses[name]; ok {
		return b
	}

	var hw *machine.I2C
	var cfg machine.I2CConfig
	switch name {
	case "i2c0":
		hw = machine.I2C0
		cfg = machine.I2CConfig{
			Frequency: 400 * machine.KHz,
			SDA:       machine.I2C0_SDA_PIN,
			SCL:       machine.I2C0_SCL_PIN,
		}
	case "i2c1":
		hw = machine.I2C1
		cfg = machine.I2CConfig{
			Frequency: 400 * machine.KHz,
			SDA:       machine.I2C1_SDA_PIN,
			SCL:       machine.I2C1_SCL_PIN,
		}
	default:
		return nil
	}
	if err := hw.Configure(cfg); err != nil {
		println("Warn: platform:", name, "configure failed:", err.Error())
		return nil
	}
	rp2I2C.buses[name] = hw
	return hw
}
