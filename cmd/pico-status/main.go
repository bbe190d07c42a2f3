//go:build rp2040 || rp2350

// Board entrypoint for Raspberry Pi Pico-class boards: TP4056 CHRG on GP6,
// status LED on GP25, radio modem on uart0.
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
	// Allow USB CDC to enumerate before we print.
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(8)

	deps := status.Deps{
		Pins: platform.Pins(),
		PWM:  platform.PWMForPin,
		I2C:  platform.I2CByName,
	}
	if link, err := platform.NewUARTLink("uart0", 115200, 0, 1); err != nil {
		println("Warn: [main] no uart link, link domain disabled:", err.Error())
	} else {
		link.Start(ctx)
		deps.LinkProbe = link.Connected
		deps.LinkEvents = link.Events()
	}

	println("[main] starting services ...")
	go status.Run(ctx, b.NewConnection("status"), deps)
	go heartbeat.Run(ctx, b.NewConnection("heartbeat"))

	ui := b.NewConnection("main")
	mon := ui.Subscribe(bus.Topic{"status", bus.WildcardRest})
	go func() {
		for m := range mon.Channel() {
			printTopic("[monitor] <-", m.Topic)
		}
	}()

	cfg := types.StatusConfig{
		Version:     1,
		BootDelayMs: 1000,
		Charge: &types.ChargeCfg{
			Pin:       chargePin,
			ActiveLow: true, // CHRG sinks while charging
			Pull:      "up",
		},
		Link: &types.LinkCfg{},
		LED:  &types.LEDCfg{Pin: ledPin, Pulse: "ramp"},
	}
	println("[main] publishing config/status ...")
	ui.Publish(ui.NewMessage(bus.Topic{"config", "status"}, cfg, true))

	select {}
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
