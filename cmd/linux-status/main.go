//go:build linux && !(rp2040 || rp2350)

// Entrypoint for Linux boards (Raspberry Pi class): charger status line and
// LED on gpiochip0, link state taken from a network interface's operstate.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"statusmon-go/bus"
	"statusmon-go/platform"
	"statusmon-go/services/heartbeat"
	"statusmon-go/services/status"
	"statusmon-go/types"
)

const (
	gpioChip  = "gpiochip0"
	chargePin = 17
	ledPin    = 27
	linkIface = "wlan0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pins, err := platform.NewLinuxPins(gpioChip)
	if err != nil {
		println("Warn: [main] gpio unavailable:", err.Error())
		os.Exit(1)
	}
	defer pins.Close()

	println("[main] bootstrapping bus ...")
	b := bus.NewBus(8)

	go status.Run(ctx, b.NewConnection("status"), status.Deps{
		Pins:      pins,
		LinkProbe: ifaceUp,
	})
	go heartbeat.Run(ctx, b.NewConnection("heartbeat"))

	ui := b.NewConnection("main")
	cfg := types.StatusConfig{
		Version: 1,
		Charge: &types.ChargeCfg{
			Pin:       chargePin,
			ActiveLow: true,
			Pull:      "up",
		},
		Link: &types.LinkCfg{},
		LED:  &types.LEDCfg{Pin: ledPin},
	}
	println("[main] publishing config/status ...")
	ui.Publish(ui.NewMessage(bus.Topic{"config", "status"}, cfg, true))

	<-ctx.Done()
	println("[main] shutting down")
}

// ifaceUp is the link probe: operstate of the configured interface.
func ifaceUp() bool {
	b, err := os.ReadFile("/sys/class/net/" + linkIface + "/operstate")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == "up"
}
