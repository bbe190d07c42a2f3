// services/monitor/source.go
package monitor

import (
	"statusmon-go/errcode"
	"statusmon-go/types"
)

// Source abstracts one binary hardware input. Read returns the logical level
// (inversion already applied) or an I/O error. Implementations must be safe
// to call from the monitor's loop goroutine only.
type Source interface {
	Read() (bool, error)
}

// IRQSource is implemented by sources that can notify on edges. The handler
// runs in interrupt context and must not block.
type IRQSource interface {
	Source
	SetIRQ(edge types.Edge, handler func()) error
	ClearIRQ() error
}

// -----------------------------------------------------------------------------
// GPIO pin source
// -----------------------------------------------------------------------------

// PinSource reads a GPIO input. activeLow inverts the raw level so that
// Read reports the asserted condition (TP4056-class CHRG pins are active low).
type PinSource struct {
	pin       types.GPIOPin
	activeLow bool
}

// NewPinSource configures the pin as an input and wraps it. A configuration
// failure is an init error for the owning domain.
func NewPinSource(pin types.GPIOPin, pull types.Pull, activeLow bool) (*PinSource, error) {
	if pin == nil {
		return nil, errcode.UnknownPin
	}
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "configure_input", Err: err}
	}
	return &PinSource{pin: pin, activeLow: activeLow}, nil
}

func (s *PinSource) Read() (bool, error) {
	lvl := s.pin.Get()
	if s.activeLow {
		lvl = !lvl
	}
	return lvl, nil
}

// SetIRQ arms edge interrupts when the pin supports them.
func (s *PinSource) SetIRQ(edge types.Edge, handler func()) error {
	ip, ok := s.pin.(types.IRQPin)
	if !ok {
		return errcode.Unsupported
	}
	return ip.SetIRQ(edge, handler)
}

func (s *PinSource) ClearIRQ() error {
	ip, ok := s.pin.(types.IRQPin)
	if !ok {
		return nil
	}
	return ip.ClearIRQ()
}

// -----------------------------------------------------------------------------
// Callback source
// -----------------------------------------------------------------------------

// FuncSource wraps a platform query such as "is the link connected". It never
// fails and has no interrupt support; event-driven platforms call the
// monitor's ForceCheck when the underlying state may have changed.
type FuncSource struct {
	query func() bool
}

func NewFuncSource(query func() bool) *FuncSource {
	return &FuncSource{query: query}
}

func (s *FuncSource) Read() (bool, error) {
	if s.query == nil {
		return false, errcode.IOError
	}
	return s.query(), nil
}
