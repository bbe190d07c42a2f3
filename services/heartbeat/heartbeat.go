// services/heartbeat/heartbeat.go
//
// Periodic liveness beacon. Tracks the retained per-domain states and
// publishes them with uptime and a sequence number, so an external collector
// can tell a healthy-but-quiet pipeline from a dead one.
package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"statusmon-go/bus"
	"statusmon-go/x/timex"
)

const DefaultIntervalMs = 60000

// Beat is the retained heartbeat payload.
type Beat struct {
	Seq      uint32            `json:"seq"`
	UptimeMs int64             `json:"uptime_ms"`
	TsMs     int64             `json:"ts_ms"`
	States   map[string]string `json:"states,omitempty"`
}

type intervalCfg struct {
	IntervalMs uint32 `json:"interval_ms"`
}

// stateEvent mirrors the status service's per-domain payload; only the
// fields the beacon repeats are decoded.
type stateEvent struct {
	Domain string `json:"domain"`
	State  string `json:"state"`
}

// Run blocks until ctx is cancelled. The interval is adjustable at runtime
// over config/heartbeat.
func Run(ctx context.Context, conn *bus.Connection) {
	stateSub := conn.Subscribe(bus.Topic{"status", bus.WildcardOne, "state"})
	cfgSub := conn.Subscribe(bus.Topic{"config", "heartbeat"})
	defer conn.Disconnect()

	println("Info:", conn.ID(), "service: beating every", DefaultIntervalMs, "ms")

	start := timex.NowMs()
	states := make(map[string]string)
	var seq uint32
	interval := time.Duration(DefaultIntervalMs) * time.Millisecond

	beat := func() {
		seq++
		snap := make(map[string]string, len(states))
		for k, v := range states {
			snap[k] = v
		}
		conn.Publish(conn.NewMessage(bus.Topic{"status", "heartbeat"}, Beat{
			Seq:      seq,
			UptimeMs: timex.SinceMs(start),
			TsMs:     timex.NowMs(),
			States:   snap,
		}, true))
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	beat()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-stateSub.Channel():
			var ev stateEvent
			if err := decodeJSON(msg.Payload, &ev); err != nil || ev.Domain == "" {
				continue
			}
			states[ev.Domain] = ev.State
		case msg := <-cfgSub.Channel():
			var cfg intervalCfg
			if err := decodeJSON(msg.Payload, &cfg); err != nil || cfg.IntervalMs == 0 {
				println("Warn: heartbeat: bad interval config")
				continue
			}
			interval = time.Duration(cfg.IntervalMs) * time.Millisecond
			resetTimer(timer, interval)
			println("Info: heartbeat interval now", cfg.IntervalMs, "ms")
		case <-timer.C:
			beat()
			timer.Reset(interval)
		}
	}
}

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

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
