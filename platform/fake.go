package platform

import (
	"sync"

	"statusmon-go/errcode"
	"statusmon-go/types"
)

// FakePin is an in-memory pin for host-side tests. Reads and writes are
// goroutine-safe so a test can flip the input while a sampler loop reads it.
type FakePin struct {
	mu     sync.Mutex
	num    int
	input  bool
	out    bool
	sets   int
	dir    string // "in", "out" or ""
	pull   types.Pull
	failIn bool
}

func NewFakePin(num int) *FakePin { return &FakePin{num: num} }

func (p *FakePin) ConfigureInput(pull types.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failIn {
		return &errcode.E{C: errcode.InitFailed, Msg: "fake pin refuses input mode"}
	}
	p.dir = "in"
	p.pull = pull
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = "out"
	p.out = initial
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.out = level
	p.sets++
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dir == "out" {
		return p.out
	}
	return p.input
}

func (p *FakePin) Toggle() {
	p.mu.Lock()
	p.out = !p.out
	p.sets++
	p.mu.Unlock()
}

func (p *FakePin) Number() int { return p.num }

// SetInput drives the simulated input level.
func (p *FakePin) SetInput(high bool) {
	p.mu.Lock()
	p.input = high
	p.mu.Unlock()
}

// Output reports the last written level.
func (p *FakePin) Output() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// SetCount reports how many times Set or Toggle ran.
func (p *FakePin) SetCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

// FailInput makes ConfigureInput return an error.
func (p *FakePin) FailInput(v bool) {
	p.mu.Lock()
	p.failIn = v
	p.mu.Unlock()
}

// FakeIRQPin extends FakePin with edge interrupt simulation.
type FakeIRQPin struct {
	FakePin
	imu     sync.Mutex
	handler func()
	edge    types.Edge
	failIRQ bool
}

func NewFakeIRQPin(num int) *FakeIRQPin {
	p := &FakeIRQPin{}
	p.num = num
	return p
}

func (p *FakeIRQPin) SetIRQ(edge types.Edge, handler func()) error {
	p.imu.Lock()
	defer p.imu.Unlock()
	if p.failIRQ {
		return &errcode.E{C: errcode.InitFailed, Msg: "fake pin has no interrupt support"}
	}
	p.edge = edge
	p.handler = handler
	return nil
}

func (p *FakeIRQPin) ClearIRQ() error {
	p.imu.Lock()
	p.handler = nil
	p.imu.Unlock()
	return nil
}

// FailIRQ makes SetIRQ return an error, forcing callers into polling.
func (p *FakeIRQPin) FailIRQ(v bool) {
	p.imu.Lock()
	p.failIRQ = v
	p.imu.Unlock()
}

// Fire drives the input to the given level and invokes the handler as a
// hardware edge would.
func (p *FakeIRQPin) Fire(high bool) {
	p.SetInput(high)
	p.imu.Lock()
	fn := p.handler
	p.imu.Unlock()
	if fn != nil {
		fn()
	}
}

// HasHandler reports whether an interrupt handler is currently attached.
func (p *FakeIRQPin) HasHandler() bool {
	p.imu.Lock()
	defer p.imu.Unlock()
	return p.handler != nil
}

// FakePinFactory hands out fakes by number, creating them on demand.
type FakePinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakeIRQPin
}

func NewFakePinFactory() *FakePinFactory {
	return &FakePinFactory{pins: make(map[int]*FakeIRQPin)}
}

func (f *FakePinFactory) ByNumber(n int) (types.GPIOPin, bool) {
	return f.IRQPin(n), true
}

// IRQPin returns the fake for n, creating it if needed. Tests use this to
// reach the simulation controls behind the factory.
func (f *FakePinFactory) IRQPin(n int) *FakeIRQPin {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = NewFakeIRQPin(n)
		f.pins[n] = p
	}
	return p
}

// FakeI2C is a register-file bus fake implementing the drivers.I2C transfer
// shape used by the charger status source.
type FakeI2C struct {
	mu    sync.Mutex
	regs  map[uint16]map[byte]uint16
	fail  bool
	txErr error
}

func NewFakeI2C() *FakeI2C { return &FakeI2C{regs: make(map[uint16]map[byte]uint16)} }

// SetReg stores a 16-bit register value for addr.
func (b *FakeI2C) SetReg(addr uint16, reg byte, val uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.regs[addr]
	if !ok {
		m = make(map[byte]uint16)
		b.regs[addr] = m
	}
	m[reg] = val
}

// Fail makes every Tx return err (or a generic IO error when err is nil).
func (b *FakeI2C) Fail(v bool, err error) {
	b.mu.Lock()
	b.fail = v
	b.txErr = err
	b.mu.Unlock()
}

func (b *FakeI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		if b.txErr != nil {
			return b.txErr
		}
		return &errcode.E{C: errcode.IOError, Msg: "fake i2c bus failure"}
	}
	if len(w) < 1 || len(r) < 2 {
		return &errcode.E{C: errcode.InvalidPayload, Msg: "unexpected transfer shape"}
	}
	val := b.regs[addr][w[0]]
	r[0] = byte(val)
	r[1] = byte(val >> 8)
	return nil
}

// FakePWM records the configuration and every duty written.
type FakePWM struct {
	mu      sync.Mutex
	top     uint16
	duty    uint16
	confErr error
	confCnt int
	dutyLog []uint16
	maxLog  int
}

func NewFakePWM() *FakePWM { return &FakePWM{maxLog: 256} }

func (p *FakePWM) Configure(freqHz uint64, top uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confCnt++
	if p.confErr != nil {
		return p.confErr
	}
	p.top = top
	return nil
}

func (p *FakePWM) Set(duty uint16) {
	p.mu.Lock()
	p.duty = duty
	if len(p.dutyLog) < p.maxLog {
		p.dutyLog = append(p.dutyLog, duty)
	}
	p.mu.Unlock()
}

func (p *FakePWM) Top() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.top
}

// Duty reports the last duty written.
func (p *FakePWM) Duty() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Duties returns a copy of the recorded duty writes.
func (p *FakePWM) Duties() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint16, len(p.dutyLog))
	copy(out, p.dutyLog)
	return out
}

// FailConfigure makes Configure return err.
func (p *FakePWM) FailConfigure(err error) {
	p.mu.Lock()
	p.confErr = err
	p.mu.Unlock()
}

// ConfigureCount reports how many times Configure ran.
func (p *FakePWM) ConfigureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confCnt
}
