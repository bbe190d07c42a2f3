// services/status/status.go
//
// Wiring service: decodes the pipeline config from the bus, builds the
// monitors, coordinator and indicator, and exposes the whole pipeline as
// retained topics plus a small control surface. One loop goroutine owns
// everything it builds.
package status

import (
	"context"
	"encoding/json"
	"time"

	"tinygo.org/x/drivers"

	"statusmon-go/bus"
	"statusmon-go/errcode"
	"statusmon-go/services/coordinator"
	"statusmon-go/services/indicator"
	"statusmon-go/services/monitor"
	"statusmon-go/types"
)

// Deps carries everything the service needs from the platform. Pins is
// required for GPIO-backed domains; the rest is optional and absent pieces
// simply disable the features that need them.
type Deps struct {
	Pins      types.PinFactory
	PWM       func(pin int) types.PWMOutput // optional, ramp pulse support
	I2C       func(name string) drivers.I2C // optional, I2C charger source
	LinkProbe func() bool                   // nil disables the link domain

	// LinkEvents delivers "link profile changed" notifications; each one
	// becomes a ForceCheck on the link monitor.
	LinkEvents <-chan struct{}
}

type service struct {
	conn *bus.Connection
	deps Deps

	configured bool
	coord      *coordinator.Coordinator
	ind        *indicator.Indicator
	monitors   map[string]*monitor.Monitor
}

// Run blocks until ctx is cancelled. The caller provides a dedicated bus
// connection; Run owns its subscriptions.
func Run(ctx context.Context, conn *bus.Connection, deps Deps) {
	s := &service{conn: conn, deps: deps, monitors: make(map[string]*monitor.Monitor)}

	cfgSub := conn.Subscribe(bus.Topic{"config", "status"})
	ctrlSub := conn.Subscribe(bus.Topic{"status", bus.WildcardOne, "control", bus.WildcardOne})
	defer conn.Disconnect()

	println("Info:", conn.ID(), "service: awaiting config")
	s.publishLifecycle("idle", "awaiting config")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case msg := <-cfgSub.Channel():
			s.onConfig(ctx, msg)
		case msg := <-ctrlSub.Channel():
			s.onControl(msg)
		case <-deps.LinkEvents:
			if m := s.monitors[types.DomainLink]; m != nil {
				m.ForceCheck()
			}
		}
	}
}

func (s *service) shutdown() {
	if s.ind != nil {
		s.ind.StopAll()
	}
	s.publishLifecycle("stopped", "")
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

func (s *service) onConfig(ctx context.Context, msg *bus.Message) {
	if s.configured {
		println("Warn: status: already configured, ignoring config update")
		return
	}

	var cfg types.StatusConfig
	if err := decodeJSON(msg.Payload, &cfg); err != nil {
		println("Warn: status: bad config:", err.Error())
		s.publishLifecycle("error", "bad_config")
		return
	}

	// The original firmware waited for the rest of the board to come up
	// before touching the charger pins.
	if cfg.BootDelayMs > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(cfg.BootDelayMs) * time.Millisecond):
		}
	}

	s.build(ctx, &cfg)
	s.configured = true

	if len(s.monitors) == 0 {
		s.publishLifecycle("error", "no_domains")
		return
	}
	s.publishLifecycle("running", "")
	println("Info: status service running,", len(s.monitors), "domain(s)")
}

// build wires the pipeline. Each domain initializes independently; a failure
// disables that domain only.
func (s *service) build(ctx context.Context, cfg *types.StatusConfig) {
	chargePriority := true
	if cfg.ChargePriority != nil {
		chargePriority = *cfg.ChargePriority
	}
	s.coord = coordinator.New(chargePriority, cfg.SlowBlinkMs)

	if cfg.LED != nil {
		s.buildIndicator(cfg.LED)
	}
	s.coord.AddListener(&indicationSink{s: s})

	if cfg.Charge != nil {
		if src := s.chargeSource(cfg.Charge); src != nil {
			s.startDomain(ctx, types.DomainCharge, src, cfg.Charge.Monitor)
		}
	}
	if cfg.Link != nil && s.deps.LinkProbe != nil {
		s.startDomain(ctx, types.DomainLink, monitor.NewFuncSource(s.deps.LinkProbe), cfg.Link.Monitor)
	}
}

func (s *service) buildIndicator(cfg *types.LEDCfg) {
	if s.deps.Pins == nil {
		println("Warn: status: no pin factory, indicator disabled")
		return
	}
	pin, ok := s.deps.Pins.ByNumber(cfg.Pin)
	if !ok {
		println("Warn: status: led pin", cfg.Pin, "unavailable, indicator disabled")
		return
	}
	var pwm types.PWMOutput
	if s.deps.PWM != nil {
		pwm = s.deps.PWM(cfg.Pin)
	}
	ind := indicator.New(pin, cfg.ActiveLow, indicator.ParsePulse(cfg.Pulse), pwm)
	if err := ind.Init(); err != nil {
		println("Warn: status: indicator init failed:", err.Error())
		return
	}
	s.ind = ind
}

func (s *service) chargeSource(cfg *types.ChargeCfg) monitor.Source {
	if cfg.I2CBus != "" {
		if s.deps.I2C == nil {
			println("Warn: status: charge config wants i2c but platform has none")
			return nil
		}
		i2c := s.deps.I2C(cfg.I2CBus)
		if i2c == nil {
			println("Warn: status: i2c bus", cfg.I2CBus, "unavailable")
			return nil
		}
		src, err := monitor.NewI2CSource(i2c, cfg.I2CAddr, cfg.I2CReg, cfg.I2CBit)
		if err != nil {
			println("Warn: status: i2c charge source:", err.Error())
			return nil
		}
		return src
	}

	if s.deps.Pins == nil {
		println("Warn: status: no pin factory, charge domain disabled")
		return nil
	}
	pin, ok := s.deps.Pins.ByNumber(cfg.Pin)
	if !ok {
		println("Warn: status: charge pin", cfg.Pin, "unavailable")
		return nil
	}
	src, err := monitor.NewPinSource(pin, parsePull(cfg.Pull), cfg.ActiveLow)
	if err != nil {
		println("Warn: status: charge source:", err.Error())
		return nil
	}
	return src
}

func (s *service) startDomain(ctx context.Context, domain string, src monitor.Source, cfg types.MonitorConfig) {
	m := monitor.New(domain, src, cfg)
	if err := m.Init(ctx); err != nil {
		println("Warn: status:", domain, "init failed, domain disabled:", err.Error())
		return
	}
	if err := m.Register(s.coord); err != nil {
		println("Warn: status:", domain, "coordinator attach:", err.Error())
	}
	if err := m.Register(&statePublisher{s: s, domain: domain}); err != nil {
		println("Warn: status:", domain, "state publisher attach:", err.Error())
	}
	s.monitors[domain] = m
}

func parsePull(s string) types.Pull {
	switch s {
	case "up":
		return types.PullUp
	case "down":
		return types.PullDown
	default:
		return types.PullNone
	}
}

// -----------------------------------------------------------------------------
// Bus surface
// -----------------------------------------------------------------------------

// stateEvent is the retained per-domain payload.
type stateEvent struct {
	Domain string `json:"domain"`
	State  string `json:"state"`
	Label  string `json:"label"`
	TsMs   int64  `json:"ts_ms"`
}

// statePublisher mirrors confirmed transitions onto the bus. It runs on the
// monitor's loop goroutine; Publish never blocks.
type statePublisher struct {
	s      *service
	domain string
}

func (p *statePublisher) StateChanged(domain string, st types.LogicalState) {
	label := types.ChargeLabel(st)
	if domain == types.DomainLink {
		label = types.LinkLabel(st)
	}
	p.s.conn.Publish(p.s.conn.NewMessage(
		bus.Topic{"status", domain, "state"},
		stateEvent{Domain: domain, State: st.String(), Label: label, TsMs: time.Now().UnixMilli()},
		true,
	))
}

// indicationSink applies coordinator output to the indicator and mirrors it
// onto the bus.
type indicationSink struct {
	s *service
}

func (k *indicationSink) IndicationChanged(ind types.Indication) {
	if k.s.ind != nil {
		if err := k.s.ind.SetState(ind); err != nil {
			println("Warn: status: indicator:", err.Error())
		}
	}
	k.s.conn.Publish(k.s.conn.NewMessage(bus.Topic{"status", "led"}, ind, true))
}

func (s *service) publishLifecycle(state, detail string) {
	payload := map[string]any{"state": state, "ts_ms": time.Now().UnixMilli()}
	if detail != "" {
		payload["detail"] = detail
	}
	s.conn.Publish(s.conn.NewMessage(bus.Topic{"status", "state"}, payload, true))
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

func (s *service) onControl(msg *bus.Message) {
	if len(msg.Topic) != 4 {
		return
	}
	target, method := msg.Topic[1], msg.Topic[3]

	if target == "led" {
		s.ledControl(msg, method)
		return
	}

	m := s.monitors[target]
	if m == nil {
		s.replyErr(msg, errcode.UnknownDomain)
		return
	}
	switch method {
	case "force_check":
		m.ForceCheck()
		s.replyOK(msg, nil)
	case "stats":
		s.replyOK(msg, m.Stats())
	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

func (s *service) ledControl(msg *bus.Message, method string) {
	if s.ind == nil {
		s.replyErr(msg, errcode.NotInitialized)
		return
	}
	switch method {
	case "stop_all":
		s.ind.StopAll()
		s.replyOK(msg, nil)
	case "state":
		s.replyOK(msg, s.ind.State())
	default:
		s.replyErr(msg, errcode.Unsupported)
	}
}

func (s *service) replyOK(req *bus.Message, payload any) {
	if payload == nil {
		payload = map[string]any{"ok": true}
	}
	s.conn.Reply(req, payload, false)
}

func (s *service) replyErr(req *bus.Message, code errcode.Code) {
	s.conn.Reply(req, map[string]any{"error": string(code)}, false)
}

// decodeJSON accepts the payload shapes the bus carries in practice: raw
// bytes or strings from transports, or already-decoded structures from
// in-process publishers.
func decodeJSON(payload, v any) error {
	switch p := payload.(type) {
	case []byte:
		return json.Unmarshal(p, v)
	case string:
		return json.Unmarshal([]byte(p), v)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	}
}
