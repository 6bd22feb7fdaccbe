package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/panel"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

// -------------------- Logger --------------------

var logger = slog.Default()

// initLogger sends log records to w; the terminal belongs to the panel.
func initLogger(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
	slog.SetDefault(logger)
}

func defaultLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "buttonsim.log"
	}
	return filepath.Join(dir, "lou-buttons", "buttonsim.log")
}

// -------------------- Main --------------------

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	cfgPath := flag.String("config", "", "config file (default: user config dir)")
	variant := flag.String("variant", "", "program, channels4 or channels3 (overrides config)")
	logPath := flag.String("log", defaultLogPath(), "log file")
	mirror := flag.Bool("midi-out", false, "also send MIDI to the preferred output port")
	interval := flag.Duration("interval", panel.DefaultInterval, "cycle interval")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*logPath), 0755); err != nil {
		fmt.Fprintln(os.Stderr, "log dir:", err)
		os.Exit(1)
	}
	f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log file:", err)
		os.Exit(1)
	}
	defer f.Close()
	initLogger(f, *debug)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *variant != "" {
		cfg.SetVariant(config.Variant(*variant))
	}

	opts := panel.Options{Interval: *interval}
	if *mirror {
		drv, err := rtmididrv.New()
		if err != nil {
			fmt.Fprintln(os.Stderr, "midi driver:", err)
			os.Exit(1)
		}
		w := usbmidi.NewWatcher(drv, usbmidi.WatcherOptions{
			Preferred: cfg.MIDI.PreferredPorts,
			Excluded:  cfg.MIDI.ExcludedPorts,
		}, logger)
		defer w.Close()
		w.Tick()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					w.Tick()
				}
			}
		}()
		opts.MIDI = w
	}

	m, err := panel.New(cfg, opts, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup:", err)
		os.Exit(1)
	}

	logger.Info("simulator starting", "variant", string(cfg.Variant), "log", *logPath)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
