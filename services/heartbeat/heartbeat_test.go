package heartbeat

import (
	"context"
	"testing"
	"time"

	"statusmon-go/bus"
)

func startHeartbeat(t *testing.T) (*bus.Bus, *bus.Connection) {
	t.Helper()
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Run(ctx, b.NewConnection("heartbeat"))
	return b, b.NewConnection("test")
}

func nextBeat(t *testing.T, sub *bus.Subscription, timeout time.Duration) Beat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		beat, ok := m.Payload.(Beat)
		if !ok {
			t.Fatalf("unexpected payload %T", m.Payload)
		}
		return beat
	case <-time.After(timeout):
		t.Fatal("no heartbeat")
		return Beat{}
	}
}

func TestImmediateFirstBeat(t *testing.T) {
	_, conn := startHeartbeat(t)
	sub := conn.Subscribe(bus.Topic{"status", "heartbeat"})
	beat := nextBeat(t, sub, time.Second)
	if beat.Seq != 1 {
		t.Fatal("first seq:", beat.Seq)
	}
}

func TestIntervalReconfiguration(t *testing.T) {
	_, conn := startHeartbeat(t)
	sub := conn.Subscribe(bus.Topic{"status", "heartbeat"})
	nextBeat(t, sub, time.Second) // boot beat

	conn.Publish(conn.NewMessage(bus.Topic{"config", "heartbeat"},
		intervalCfg{IntervalMs: 20}, false))

	// With the interval down from a minute, beats now arrive continuously.
	first := nextBeat(t, sub, time.Second)
	second := nextBeat(t, sub, time.Second)
	if second.Seq != first.Seq+1 {
		t.Fatal("seq gap:", first.Seq, second.Seq)
	}
	if second.UptimeMs < first.UptimeMs {
		t.Fatal("uptime went backwards")
	}
}

func TestBeatCarriesDomainStates(t *testing.T) {
	_, conn := startHeartbeat(t)
	sub := conn.Subscribe(bus.Topic{"status", "heartbeat"})
	nextBeat(t, sub, time.Second)

	conn.Publish(conn.NewMessage(bus.Topic{"status", "charge", "state"},
		map[string]any{"domain": "charge", "state": "asserted"}, true))
	conn.Publish(conn.NewMessage(bus.Topic{"config", "heartbeat"},
		intervalCfg{IntervalMs: 20}, false))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		beat := nextBeat(t, sub, time.Second)
		if beat.States["charge"] == "asserted" {
			return
		}
	}
	t.Fatal("domain state never reached the heartbeat")
}

func TestLifecycleTopicIgnored(t *testing.T) {
	_, conn := startHeartbeat(t)
	sub := conn.Subscribe(bus.Topic{"status", "heartbeat"})
	nextBeat(t, sub, time.Second)

	// Two-element lifecycle topic must not be mistaken for a domain.
	conn.Publish(conn.NewMessage(bus.Topic{"status", "state"},
		map[string]any{"state": "running"}, true))
	conn.Publish(conn.NewMessage(bus.Topic{"config", "heartbeat"},
		intervalCfg{IntervalMs: 20}, false))

	beat := nextBeat(t, sub, time.Second)
	if len(beat.States) != 0 {
		t.Fatalf("states: %+v", beat.States)
	}
}
