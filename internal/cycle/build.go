package cycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/dispatch"
	"github.com/chase3718/lou-buttons/internal/led"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

// decorativeEffect is shown on the program variant's LEDs that the state
// machine does not own.
var decorativeEffect = led.Breathe(2000 * time.Millisecond).Forever()

// IO is the hardware a controller is wired to.
type IO struct {
	Levels Levels
	// LED returns the duty output of an LED slot.
	LED func(slot int) led.Output
	MIDI usbmidi.Transport
	// Flush, when set, runs at the end of every step to push LED duties out.
	Flush func() error
}

// Controller is a fully wired variant, ready to Step.
type Controller struct {
	Variant config.Variant
	Loop    *Loop
	Router  *dispatch.Router
	Emitter *usbmidi.Emitter

	// Exactly one of Program and Channels is set.
	Program  *dispatch.Program
	Channels *dispatch.ChannelGroup
}

// Build wires the variant selected by cfg onto io.
func Build(cfg *config.Config, io IO, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if io.Levels == nil || io.MIDI == nil {
		return nil, errors.New("cycle: io needs levels and a midi transport")
	}

	drivers := make([]*led.Driver, len(cfg.LEDs))
	for i, lc := range cfg.LEDs {
		var out led.Output
		if io.LED != nil {
			out = io.LED(lc.Slot)
		}
		drivers[i] = led.NewDriver(lc.Name, out)
	}

	em := usbmidi.NewEmitter(io.MIDI, log)
	note := dispatch.Note{Channel: cfg.MIDI.Channel, Pitch: cfg.MIDI.Pitch, Velocity: cfg.MIDI.Velocity}
	c := &Controller{Variant: cfg.Variant, Emitter: em}

	buttons := append([]config.ButtonConfig(nil), cfg.Buttons...)
	sort.Slice(buttons, func(i, j int) bool { return buttons[i].ID < buttons[j].ID })

	switch cfg.Variant {
	case config.VariantProgram:
		c.Program = dispatch.NewProgram(drivers[0], em, dispatch.ProgramOptions{Note: note, StateCC: cfg.MIDI.StateCC}, log)
		for _, d := range drivers[1:] {
			d.Set(decorativeEffect)
		}
		c.Router = dispatch.NewProgramRouter(button.ID(buttons[0].ID), c.Program, log)

	case config.VariantChannels4, config.VariantChannels3:
		cyc := dispatch.Cycle4
		if cfg.Variant == config.VariantChannels3 {
			cyc = dispatch.Cycle3
		}
		c.Channels = dispatch.NewChannelGroup(cyc, log)
		slot := 0
		for _, b := range buttons {
			if button.ID(b.ID) == button.MIDITrigger {
				continue
			}
			c.Channels.Add(button.ID(b.ID), drivers[slot].Name(), drivers[slot])
			slot++
		}
		for _, d := range drivers[slot:] {
			d.Set(led.Off())
		}
		c.Router = dispatch.NewChannelRouter(dispatch.NewTrigger(em, note, log), c.Channels, log)

	default:
		return nil, fmt.Errorf("%w: unknown variant %q", config.ErrInvalid, cfg.Variant)
	}

	c.Loop = New(io.Levels, c.Router, log)
	bc := button.Config{Timing: cfg.Timing(), Features: button.FeatureAll}
	for _, b := range buttons {
		bc.ActiveLow = b.ActiveLow
		c.Loop.AddButton(button.New(button.ID(b.ID), b.Pin, bc, nil))
	}
	for _, d := range drivers {
		c.Loop.AddLED(d)
	}
	c.Loop.AddSink(em.Flush)
	if io.Flush != nil {
		c.Loop.AddSink(io.Flush)
	}

	log.Info("cycle: controller built",
		"variant", string(cfg.Variant), "buttons", len(buttons), "leds", len(drivers), "board", cfg.BoardID)
	return c, nil
}

// LEDStates returns the driver state of every LED in config order.
func (c *Controller) LEDStates() []LEDState {
	out := make([]LEDState, 0, len(c.Loop.leds))
	for _, d := range c.Loop.leds {
		out = append(out, LEDState{Name: d.Name(), Duty: d.Duty(), Effect: d.Effect(), Running: d.IsRunning()})
	}
	return out
}

// LEDState is a snapshot of one LED driver.
type LEDState struct {
	Name    string
	Duty    uint8
	Effect  led.Effect
	Running bool
}

// Describe returns a one-line summary of the dispatcher state.
func (c *Controller) Describe() string {
	if c.Program != nil {
		s := c.Program.State().String()
		if c.Program.AwaitingLED() {
			s += " (release held)"
		}
		return "program " + s
	}
	out := ""
	for i, ch := range c.Channels.Channels() {
		if i > 0 {
			out += "  "
		}
		out += fmt.Sprintf("%s:%s", ch.Name(), ch.State())
	}
	return out
}
