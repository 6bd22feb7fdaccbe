package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/cycle"
	"github.com/chase3718/lou-buttons/internal/link"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Tunables --------------------

const MIDI_RESCAN_MS = 1000

// -------------------- Setup helpers --------------------

func listDevices() {
	ports, err := link.Ports()
	if err != nil {
		logger.Error("failed to list serial ports", "err", err)
	}
	fmt.Println("serial ports:")
	for _, p := range ports {
		fmt.Println("  " + p)
	}

	drv, err := rtmididrv.New()
	if err != nil {
		logger.Error("midi driver init failed", "err", err)
		return
	}
	defer drv.Close()
	outs, err := usbmidi.Outputs(drv)
	if err != nil {
		logger.Error("failed to list MIDI outputs", "err", err)
		return
	}
	fmt.Println("midi outputs:")
	for _, o := range outs {
		fmt.Println("  " + o)
	}
}

// pickSerial returns the configured device, or the only one present.
func pickSerial(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	ports, err := link.Ports()
	if err != nil {
		return "", err
	}
	switch len(ports) {
	case 0:
		return "", errors.New("no serial device found")
	case 1:
		logger.Info("serial device auto-selected", "device", ports[0])
		return ports[0], nil
	}
	return "", fmt.Errorf("%d serial devices found, pick one with -serial", len(ports))
}

func ledSlots(cfg *config.Config) int {
	n := 0
	for _, l := range cfg.LEDs {
		n = max(n, l.Slot+1)
	}
	return n
}

// -------------------- Main --------------------

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	cfgPath := flag.String("config", "", "config file (default: user config dir)")
	variant := flag.String("variant", "", "program, channels4 or channels3 (overrides config)")
	serialDev := flag.String("serial", "", "I/O board serial device (overrides config)")
	baud := flag.Int("baud", 0, "serial baud rate (overrides config)")
	transport := flag.String("midi", "", "midi transport: port or link (overrides config)")
	list := flag.Bool("list", false, "list serial devices and MIDI outputs, then exit")
	save := flag.Bool("save", false, "write the effective config and exit")
	flag.Parse()

	initLogger(*debug)

	if *list {
		listDevices()
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *variant != "" {
		cfg.SetVariant(config.Variant(*variant))
	}
	if *serialDev != "" {
		cfg.Serial.Port = *serialDev
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *transport != "" {
		cfg.MIDI.Transport = *transport
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}
	if *save {
		if err := cfg.Save(*cfgPath); err != nil {
			logger.Error("config save failed", "err", err)
			os.Exit(1)
		}
		logger.Info("config saved")
		return
	}

	logger.Info("lou-buttons starting",
		"board", cfg.BoardID,
		"variant", string(cfg.Variant),
		"midi", cfg.MIDI.Transport,
		"startup_delay_ms", cfg.StartupDelayMS,
		"cycle_interval_ms", cfg.CycleIntervalMS,
		"debug", *debug,
	)
	time.Sleep(cfg.StartupDelay())

	dev, err := pickSerial(cfg.Serial.Port)
	if err != nil {
		logger.Error("no I/O board", "err", err)
		os.Exit(1)
	}
	conn, err := link.Open(dev, cfg.Serial.Baud, link.Options{LEDs: ledSlots(cfg), IdleMask: cfg.IdleMask()}, logger)
	if err != nil {
		logger.Error("serial open failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := conn.Listen(ctx); err != nil {
			logger.Error("serial link lost", "err", err)
		}
		stop()
	}()

	var tr usbmidi.Transport = conn
	if cfg.MIDI.Transport == config.TransportPort {
		drv, err := rtmididrv.New()
		if err != nil {
			logger.Error("midi driver init failed", "err", err)
			os.Exit(1)
		}
		watcher := usbmidi.NewWatcher(drv, usbmidi.WatcherOptions{
			Preferred: cfg.MIDI.PreferredPorts,
			Excluded:  cfg.MIDI.ExcludedPorts,
		}, logger)
		defer watcher.Close()
		tr = watcher

		watcher.Tick()
		go func() {
			ticker := time.NewTicker(MIDI_RESCAN_MS * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					watcher.Tick()
				}
			}
		}()
	}

	ctrl, err := cycle.Build(cfg, cycle.IO{Levels: conn, LED: conn.LED, MIDI: tr, Flush: conn.FlushLEDs}, logger)
	if err != nil {
		logger.Error("controller setup failed", "err", err)
		os.Exit(1)
	}

	logger.Info("running", "state", ctrl.Describe())
	if err := ctrl.Loop.Run(ctx, cfg.CycleInterval()); err != nil {
		logger.Error("cycle stopped", "err", err)
	}
	if err := conn.Blackout(); err != nil {
		logger.Warn("led blackout failed", "err", err)
	}
	logger.Info("shut down", "state", ctrl.Describe())
}
