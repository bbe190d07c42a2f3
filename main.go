// Host simulation: runs the whole pipeline against fake pins and walks the
// inputs through a plug/charge/unplug cycle so the pattern changes can be
// watched in the logs. Board entrypoints live under cmd/.
package main

import (
	"context"
	"time"

	"statusmon-go/bus"
	"statusmon-go/platform"
	"statusmon-go/services/heartbeat"
	"statusmon-go/services/status"
	"statusmon-go/types"
)

const (
	chargePin = 6
	ledPin    = 25
)

func main() {
	ctx := context.Background()

	println("[sim] bootstrapping bus ...")
	b := bus.NewBus(8)
	pins := platform.NewFakePinFactory()

	linkUp := true
	go status.Run(ctx, b.NewConnection("status"), status.Deps{
		Pins:      pins,
		LinkProbe: func() bool { return linkUp },
	})
	go heartbeat.Run(ctx, b.NewConnection("heartbeat"))

	ui := b.NewConnection("main")
	mon := ui.Subscribe(bus.Topic{"status", bus.WildcardRest})
	go func() {
		for m := range mon.Channel() {
			printTopic("[monitor] <-", m.Topic)
		}
	}()

	fast := types.MonitorConfig{
		DebounceMs:  200,
		MinStableMs: 100,
		PollBusyMs:  250,
		PollIdleMs:  500,
		PollErrorMs: 500,
	}
	cfg := types.StatusConfig{
		Version:     1,
		SlowBlinkMs: 1000,
		Charge: &types.ChargeCfg{
			Pin:       chargePin,
			ActiveLow: true,
			Pull:      "up",
			Monitor:   fast,
		},
		Link: &types.LinkCfg{Monitor: fast},
		LED:  &types.LEDCfg{Pin: ledPin},
	}
	println("[sim] publishing config/status ...")
	ui.Publish(ui.NewMessage(bus.Topic{"config", "status"}, cfg, true))

	charge := pins.IRQPin(chargePin)
	charge.SetInput(true) // active low: idle

	for {
		time.Sleep(5 * time.Second)
		println("[sim] charger plugged in")
		charge.Fire(false) // CHRG sinks: charging

		time.Sleep(5 * time.Second)
		println("[sim] charge complete")
		charge.Fire(true)

		time.Sleep(5 * time.Second)
		println("[sim] link lost")
		linkUp = false

		time.Sleep(5 * time.Second)
		println("[sim] link restored")
		linkUp = true
	}
}

func printTopic(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i, el := range t {
		if i > 0 {
			print("/")
		}
		print(el)
	}
	println()
}
