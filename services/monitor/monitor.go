// services/monitor/monitor.go
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"statusmon-go/errcode"
	"statusmon-go/types"
	"statusmon-go/x/timex"
)

// Observer receives confirmed state transitions. Callbacks run on the
// monitor's loop goroutine (or the caller's, for the registration fire) and
// must not block.
type Observer interface {
	StateChanged(domain string, s types.LogicalState)
}

// maxObservers bounds the registration list; the pipeline needs two slots
// (coordinator + status service) and leaves room for diagnostics.
const maxObservers = 4

// checkTrigger records why a check ran; interrupt-triggered checks get the
// relaxed debounce treatment.
type checkTrigger uint8

const (
	triggerPoll checkTrigger = iota
	triggerIRQ
	triggerForce
)

// Monitor turns one bouncy binary input into a debounced LogicalState and
// notifies observers exactly once per confirmed transition. One instance per
// monitored domain; all runtime state is owned by the loop goroutine, with
// the published snapshot crossing the boundary under mu.
type Monitor struct {
	domain string
	src    Source
	cfg    types.MonitorConfig
	pol    backoffPolicy

	// Shared snapshot (any goroutine).
	mu          sync.Mutex
	initialized bool
	running     bool
	state       types.LogicalState
	lastChange  int64 // ms
	changeCount uint32
	fault       bool
	consecErrs  uint32
	mode        types.AcquisitionMode
	obs         [maxObservers]Observer
	nObs        int

	// Touched from interrupt context (atomics only).
	interrupts   uint32
	irqDrops     uint32
	lastActivity int64 // ms, atomic

	// Loop ownership.
	irqPending chan struct{} // single-slot pending-event handoff from the ISR
	forceQ     chan struct{}
	timer      *time.Timer

	// Runtime record, loop goroutine only.
	rt samplerRuntime
}

// samplerRuntime is the per-domain working state of the sampling loop.
type samplerRuntime struct {
	pending      types.LogicalState // candidate awaiting debounce; Unknown = none
	pendingSince int64
	idle         bool
	irqFellBack  bool // one-time interrupt -> polling fallback done
	churn        instabilityRing
}

// New builds a monitor for one domain. Call Init before anything else.
func New(domain string, src Source, cfg types.MonitorConfig) *Monitor {
	cfg.Normalize()
	m := &Monitor{
		domain:     domain,
		src:        src,
		cfg:        cfg,
		pol:        backoffPolicy{cfg: cfg},
		irqPending: make(chan struct{}, 1),
		forceQ:     make(chan struct{}, 1),
	}
	m.rt.churn.init(cfg.FaultThreshold)
	return m
}

// Init performs one stable initial read, arms interrupts when the source
// supports them (falling back to polling otherwise), and starts the loop.
// Idempotent: a second call returns nil without re-arming.
func (m *Monitor) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.mu.Unlock()

	now := timex.NowMs()
	atomic.StoreInt64(&m.lastActivity, now)

	// Interrupt mode first, polling as the graceful fallback.
	mode := types.ModePolling
	if is, ok := m.src.(IRQSource); ok {
		if err := is.SetIRQ(types.EdgeBoth, m.isr); err == nil {
			mode = types.ModeInterrupt
		} else {
			println("Warn:", m.domain, "monitor: irq setup failed, polling only:", err.Error())
		}
	}

	// A failed initial read publishes Unknown rather than aborting; the loop
	// keeps retrying at the error interval.
	st := types.StateUnknown
	if raw, stable, err := m.stableRead(); err != nil {
		println("Warn:", m.domain, "monitor: initial read failed:", err.Error())
	} else if stable {
		st = classify(raw)
	}

	m.mu.Lock()
	m.mode = mode
	m.state = st
	m.lastChange = now
	m.running = true
	m.mu.Unlock()

	println("Info:", m.domain, "monitor initialized, state:", st.String(), "mode:", mode.String())

	m.timer = time.NewTimer(m.pol.next(mode, st, 0, false))
	go m.loop(ctx)
	return nil
}

// Register adds an observer and immediately fires it with the current state
// so late subscribers are never left unsynchronized.
func (m *Monitor) Register(o Observer) error {
	if o == nil {
		return errcode.InvalidParams
	}
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return errcode.NotInitialized
	}
	if m.nObs == maxObservers {
		m.mu.Unlock()
		return errcode.NoObserverSlot
	}
	m.obs[m.nObs] = o
	m.nObs++
	st := m.state
	m.mu.Unlock()

	o.StateChanged(m.domain, st)
	return nil
}

// State returns the published snapshot; Unknown before Init.
func (m *Monitor) State() types.LogicalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ForceCheck cancels the pending schedule and samples now. Non-blocking;
// used when the caller knows a change is imminent (e.g. link profile events).
func (m *Monitor) ForceCheck() {
	atomic.StoreInt64(&m.lastActivity, timex.NowMs())
	select {
	case m.forceQ <- struct{}{}:
	default:
	}
}

// Stats returns the diagnostics snapshot.
func (m *Monitor) Stats() types.MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.MonitorStats{
		Domain:            m.domain,
		State:             m.state,
		Mode:              m.mode,
		LastChangeMs:      m.lastChange,
		ChangeCount:       m.changeCount,
		InterruptCount:    atomic.LoadUint32(&m.interrupts),
		IRQDrops:          atomic.LoadUint32(&m.irqDrops),
		ConsecutiveErrors: m.consecErrs,
		HardwareFault:     m.fault,
	}
}

// -----------------------------------------------------------------------------
// Interrupt context
// -----------------------------------------------------------------------------

// isr runs in interrupt context: count, mark activity, hand off. The deferred
// check re-reads the pin, so only the latest pending event matters and a full
// slot is dropped, never waited on.
func (m *Monitor) isr() {
	atomic.AddUint32(&m.interrupts, 1)
	atomic.StoreInt64(&m.lastActivity, timex.NowMs())
	select {
	case m.irqPending <- struct{}{}:
	default:
		atomic.AddUint32(&m.irqDrops, 1)
	}
}

// -----------------------------------------------------------------------------
// Loop
// -----------------------------------------------------------------------------

func (m *Monitor) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-m.irqPending:
			m.check(triggerIRQ)
		case <-m.forceQ:
			m.check(triggerForce)
		case <-m.timer.C:
			m.check(triggerPoll)
		}
	}
}

func (m *Monitor) shutdown() {
	if is, ok := m.src.(IRQSource); ok {
		_ = is.ClearIRQ()
	}
	m.timer.Stop()
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// check is the deferred sampling work: stable read, classify, debounce,
// publish, reschedule. Runs only on the loop goroutine.
func (m *Monitor) check(trigger checkTrigger) {
	now := timex.NowMs()
	idle := m.updateIdle(now)

	raw, stable, err := m.stableRead()
	if err != nil {
		m.onReadError(now, idle)
		return
	}

	m.mu.Lock()
	m.consecErrs = 0
	cur := m.state
	mode := m.mode
	m.mu.Unlock()

	if !stable {
		// Transient bounce inside the settle burst: keep the previous
		// reading and come back soon.
		m.schedule(m.pol.next(mode, cur, 0, idle))
		return
	}

	next := classify(raw)
	if next == cur {
		m.rt.pending = types.StateUnknown
	} else if m.shouldPublish(cur, next, now, trigger) {
		m.publish(next, now)
		cur = next
	}

	m.schedule(m.nextDelay(mode, cur, idle))
}

// shouldPublish applies the debounce window and the min-stable guard.
// Unknown bypasses both in either direction: error recovery is never delayed.
func (m *Monitor) shouldPublish(cur, next types.LogicalState, now int64, trigger checkTrigger) bool {
	if next == types.StateUnknown || cur == types.StateUnknown {
		m.rt.pending = types.StateUnknown
		return true
	}

	if m.rt.pending != next {
		m.rt.pending = next
		m.rt.pendingSince = now
		return false
	}

	debounce := int64(m.cfg.DebounceMs)
	if trigger == triggerIRQ {
		// An edge interrupt is itself evidence of a real transition.
		debounce /= 2
	}
	if now-m.rt.pendingSince < debounce {
		return false
	}

	m.mu.Lock()
	lastChange := m.lastChange
	m.mu.Unlock()
	if now-lastChange < int64(m.cfg.MinStableMs) {
		// Previous state has not itself been stable long enough; suppress
		// oscillation storms without losing the candidate.
		return false
	}

	m.rt.pending = types.StateUnknown
	return true
}

// publish commits a confirmed transition and notifies observers. A confirmed
// transition is activity: it resets the idle clock so a churning domain never
// has its poll interval stretched.
func (m *Monitor) publish(next types.LogicalState, now int64) {
	atomic.StoreInt64(&m.lastActivity, now)
	faulty := m.rt.churn.push(now, int64(m.cfg.FaultWindowMs))

	m.mu.Lock()
	old := m.state
	m.state = next
	m.lastChange = now
	m.changeCount++
	if faulty && !m.fault {
		m.fault = true
		println("Warn:", m.domain, "monitor: transition churn exceeds fault threshold")
	}
	var obs [maxObservers]Observer
	n := m.nObs
	copy(obs[:], m.obs[:n])
	m.mu.Unlock()

	println("Info:", m.domain, "state changed:", old.String(), "->", next.String())
	for i := 0; i < n; i++ {
		obs[i].StateChanged(m.domain, next)
	}
}

// onReadError absorbs an I/O failure: count, back off, and at the cap force
// the published state to Unknown so it is never left stale.
func (m *Monitor) onReadError(now int64, idle bool) {
	faulty := m.rt.churn.push(now, int64(m.cfg.FaultWindowMs))

	m.mu.Lock()
	m.consecErrs++
	errs := m.consecErrs
	cur := m.state
	mode := m.mode
	if faulty && !m.fault {
		m.fault = true
		println("Warn:", m.domain, "monitor: repeated read errors exceed fault threshold")
	}
	m.mu.Unlock()

	if errs >= m.cfg.MaxErrors {
		if cur != types.StateUnknown {
			m.publish(types.StateUnknown, now)
			cur = types.StateUnknown
		}
		if mode == types.ModeInterrupt && !m.rt.irqFellBack {
			m.rt.irqFellBack = true
			if is, ok := m.src.(IRQSource); ok {
				_ = is.ClearIRQ()
			}
			m.mu.Lock()
			m.mode = types.ModePolling
			mode = types.ModePolling
			m.mu.Unlock()
			println("Warn:", m.domain, "monitor: interrupt mode unreliable, falling back to polling")
		}
	}

	m.schedule(m.pol.next(mode, cur, errs, idle))
}

// nextDelay picks the regular reschedule, shortened while a candidate is
// waiting out its debounce window so confirmation is not left to the next
// slow poll.
func (m *Monitor) nextDelay(mode types.AcquisitionMode, cur types.LogicalState, idle bool) time.Duration {
	d := m.pol.next(mode, cur, 0, idle)
	if m.rt.pending != types.StateUnknown {
		remain := time.Duration(m.cfg.DebounceMs)*time.Millisecond - time.Duration(timex.NowMs()-m.rt.pendingSince)*time.Millisecond
		if remain < 10*time.Millisecond {
			remain = 10 * time.Millisecond
		}
		if remain < d {
			d = remain
		}
	}
	return d
}

func (m *Monitor) updateIdle(now int64) bool {
	last := atomic.LoadInt64(&m.lastActivity)
	idle := now-last > int64(m.cfg.IdleTimeoutMs)
	if idle != m.rt.idle {
		m.rt.idle = idle
	}
	return idle
}

func (m *Monitor) schedule(d time.Duration) {
	resetTimer(m.timer, d)
}

// stableRead samples the input SettleReads times with SettleDelay between
// reads. All reads must agree before the value is trusted; a single read is
// never sufficient around connector bounce and charger-chip glitches.
func (m *Monitor) stableRead() (raw bool, stable bool, err error) {
	first, err := m.src.Read()
	if err != nil {
		return false, false, err
	}
	for i := 1; i < m.cfg.SettleReads; i++ {
		if m.cfg.SettleDelayMs > 0 {
			time.Sleep(time.Duration(m.cfg.SettleDelayMs) * time.Millisecond)
		}
		v, err := m.src.Read()
		if err != nil {
			return false, false, err
		}
		if v != first {
			return false, false, nil
		}
	}
	return first, true, nil
}

func classify(raw bool) types.LogicalState {
	if raw {
		return types.StateAsserted
	}
	return types.StateDeasserted
}

// resetTimer safely stops, drains, and resets a timer.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
