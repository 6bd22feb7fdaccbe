// Package cycle runs the controller's main loop. One Step polls every button,
// then dispatches the events collected during the poll, then runs the
// per-cycle dispatcher checks, then advances every LED, then flushes the
// output sinks.
package cycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/dispatch"
	"github.com/chase3718/lou-buttons/internal/led"
)

// Levels reports the raw electrical level of an input pin.
type Levels interface {
	Level(pin int) bool
}

// LevelsFunc adapts a function to Levels.
type LevelsFunc func(pin int) bool

func (f LevelsFunc) Level(pin int) bool { return f(pin) }

type event struct {
	id button.ID
	ev button.EventType
}

// Loop owns the buttons and LED drivers of one controller.
type Loop struct {
	levels  Levels
	router  *dispatch.Router
	buttons []*button.Button
	leds    []*led.Driver
	sinks   []func() error

	pending []event
	drops   []uint64
	steps   uint64
	log     *slog.Logger
}

func New(levels Levels, router *dispatch.Router, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{levels: levels, router: router, log: log}
}

// AddButton polls b every step. Its handler is replaced: events are queued
// and dispatched after the whole poll.
func (l *Loop) AddButton(b *button.Button) {
	b.SetHandler(l.collect)
	l.buttons = append(l.buttons, b)
	l.drops = append(l.drops, b.Dropped())
}

// AddLED advances d every step.
func (l *Loop) AddLED(d *led.Driver) {
	l.leds = append(l.leds, d)
}

// AddSink runs flush at the end of every step.
func (l *Loop) AddSink(flush func() error) {
	l.sinks = append(l.sinks, flush)
}

func (l *Loop) Buttons() []*button.Button { return l.buttons }
func (l *Loop) LEDs() []*led.Driver       { return l.leds }
func (l *Loop) Steps() uint64             { return l.steps }

func (l *Loop) collect(id button.ID, ev button.EventType, _ bool) {
	l.pending = append(l.pending, event{id: id, ev: ev})
}

// Step runs one cycle at now.
func (l *Loop) Step(now time.Time) {
	for _, b := range l.buttons {
		b.Check(now, l.levels.Level(b.Pin()))
	}
	for i, b := range l.buttons {
		if d := b.Dropped(); d != l.drops[i] {
			l.log.Warn("cycle: button events dropped", "button", b.ID(), "lost", d-l.drops[i])
			l.drops[i] = d
		}
	}

	for _, e := range l.pending {
		l.log.Debug("cycle: event", "button", e.id, "event", e.ev.String())
		l.router.Dispatch(e.id, e.ev)
	}
	l.pending = l.pending[:0]

	l.router.Tick()

	for _, d := range l.leds {
		d.Advance(now)
	}

	for _, flush := range l.sinks {
		if err := flush(); err != nil {
			l.log.Debug("cycle: sink flush", "err", err)
		}
	}
	l.steps++
}

// Run steps the loop every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info("cycle: running", "interval", interval, "buttons", len(l.buttons), "leds", len(l.leds))
	for {
		select {
		case <-ctx.Done():
			l.log.Info("cycle: stopped", "steps", l.steps)
			return nil
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}
