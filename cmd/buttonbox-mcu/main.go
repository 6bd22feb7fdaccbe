//go:build tinygo

// Firmware entry point. Build with
//
//	tinygo flash -target=pico -ldflags="-X main.variant=channels4" ./cmd/buttonbox-mcu
package main

import (
	"log/slog"
	"machine"
	"time"

	"github.com/chase3718/lou-buttons/internal/board"
	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/cycle"
)

// variant is set at link time.
var variant = string(config.VariantProgram)

func main() {
	cfg := config.DefaultConfig(config.Variant(variant))
	time.Sleep(cfg.StartupDelay())

	machine.Serial.Configure(machine.UARTConfig{BaudRate: uint32(cfg.Serial.Baud)})
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctrl, err := cycle.Build(cfg, cycle.IO{
		Levels: board.ConfigureButtons(cfg.Buttons),
		LED:    board.LED,
		MIDI:   board.NewUSBMIDI(),
	}, logger)
	if err != nil {
		for {
			logger.Error("controller setup failed", "err", err)
			time.Sleep(time.Second)
		}
	}

	interval := cfg.CycleInterval()
	for {
		ctrl.Loop.Step(time.Now())
		time.Sleep(interval)
	}
}
