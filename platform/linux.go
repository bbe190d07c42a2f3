//go:build linux && !(rp2040 || rp2350)

package platform

import (
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"statusmon-go/errcode"
	"statusmon-go/types"
)

// LinuxPins serves GPIO lines from a Linux gpiochip character device. Lines
// are requested lazily at configure time, so handing out a pin handle is
// free and only actual use claims the hardware.
type LinuxPins struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	pins map[int]*linuxPin
}

// NewLinuxPins opens the named chip ("gpiochip0" on a Pi).
func NewLinuxPins(chipName string) (*LinuxPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "open_gpiochip", Err: err}
	}
	return &LinuxPins{chip: chip, pins: make(map[int]*linuxPin)}, nil
}

func (f *LinuxPins) ByNumber(n int) (types.GPIOPin, bool) {
	if n < 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &linuxPin{chip: f.chip, n: n}
		f.pins[n] = p
	}
	return p, true
}

// Close reconfigures every claimed line back to input and releases the chip.
func (f *LinuxPins) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pins {
		p.release()
	}
	return f.chip.Close()
}

// linuxPin wraps one requested line. The character device ties edge events
// to the request, so SetIRQ re-requests the line with a handler attached and
// ClearIRQ re-requests it plain.
type linuxPin struct {
	chip *gpiocdev.Chip
	n    int

	mu   sync.Mutex
	line *gpiocdev.Line
	pull types.Pull
	out  bool
}

func pullOption(p types.Pull) gpiocdev.LineReqOption {
	switch p {
	case types.PullUp:
		return gpiocdev.WithPullUp
	case types.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

func (p *linuxPin) ConfigureInput(pull types.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pull = pull
	return p.requestLocked(gpiocdev.AsInput, pullOption(pull))
}

func (p *linuxPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = initial
	v := 0
	if initial {
		v = 1
	}
	return p.requestLocked(gpiocdev.AsOutput(v))
}

func (p *linuxPin) requestLocked(opts ...gpiocdev.LineReqOption) error {
	if p.line != nil {
		_ = p.line.Close()
		p.line = nil
	}
	line, err := p.chip.RequestLine(p.n, opts...)
	if err != nil {
		return &errcode.E{C: errcode.InitFailed, Op: "request_line", Err: err}
	}
	p.line = line
	return nil
}

func (p *linuxPin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return
	}
	p.out = level
	v := 0
	if level {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		println("Warn: platform: gpio", p.n, "set:", err.Error())
	}
}

func (p *linuxPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return false
	}
	v, err := p.line.Value()
	if err != nil {
		println("Warn: platform: gpio", p.n, "read:", err.Error())
		return false
	}
	return v != 0
}

func (p *linuxPin) Toggle() {
	p.mu.Lock()
	next := !p.out
	p.mu.Unlock()
	p.Set(next)
}

func (p *linuxPin) Number() int { return p.n }

func (p *linuxPin) SetIRQ(edge types.Edge, handler func()) error {
	var edgeOpt gpiocdev.LineReqOption
	switch edge {
	case types.EdgeRising:
		edgeOpt = gpiocdev.WithRisingEdge
	case types.EdgeFalling:
		edgeOpt = gpiocdev.WithFallingEdge
	case types.EdgeBoth:
		edgeOpt = gpiocdev.WithBothEdges
	default:
		return errcode.InvalidParams
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestLocked(
		gpiocdev.AsInput,
		pullOption(p.pull),
		edgeOpt,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	)
}

func (p *linuxPin) ClearIRQ() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestLocked(gpiocdev.AsInput, pullOption(p.pull))
}

func (p *linuxPin) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		_ = p.line.Reconfigure(gpiocdev.AsInput)
		_ = p.line.Close()
		p.line = nil
	}
}
