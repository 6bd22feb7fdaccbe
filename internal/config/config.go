package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chase3718/lou-buttons/internal/button"
)

// Variant selects which dispatcher runs.
type Variant string

const (
	VariantProgram   Variant = "program"   // single button, program states
	VariantChannels4 Variant = "channels4" // breathe, flicker, off, on
	VariantChannels3 Variant = "channels3" // breathe, flicker, off
)

// Variants lists every supported variant.
var Variants = []Variant{VariantProgram, VariantChannels4, VariantChannels3}

func (v Variant) Valid() bool {
	for _, k := range Variants {
		if v == k {
			return true
		}
	}
	return false
}

// MIDI transports.
const (
	TransportPort = "port" // host MIDI output port
	TransportLink = "link" // relayed by the I/O board over serial
)

var ErrInvalid = errors.New("invalid config")

// ButtonConfig binds a button identifier to an input pin.
type ButtonConfig struct {
	ID        uint8 `json:"id"`
	Pin       int   `json:"pin"`
	ActiveLow bool  `json:"active_low"`
}

// LEDConfig names an LED and its duty slot.
type LEDConfig struct {
	Name string `json:"name"`
	Slot int    `json:"slot"`
}

// TimingConfig holds the button classification thresholds in milliseconds.
type TimingConfig struct {
	DebounceMS       int `json:"debounce_ms"`
	ClickMS          int `json:"click_ms"`
	DoubleClickMS    int `json:"double_click_ms"`
	LongPressMS      int `json:"long_press_ms"`
	RepeatDelayMS    int `json:"repeat_delay_ms"`
	RepeatIntervalMS int `json:"repeat_interval_ms"`
}

type SerialConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

type MIDIConfig struct {
	Transport      string   `json:"transport"`
	PreferredPorts []string `json:"preferred_ports"`
	ExcludedPorts  []string `json:"excluded_ports"`
	Channel        uint8    `json:"channel"`
	Pitch          uint8    `json:"pitch"`
	Velocity       uint8    `json:"velocity"`
	StateCC        bool     `json:"state_cc"`
}

// Config holds the controller configuration.
type Config struct {
	BoardID         string         `json:"board_id"`
	Variant         Variant        `json:"variant"`
	StartupDelayMS  int            `json:"startup_delay_ms"`
	CycleIntervalMS int            `json:"cycle_interval_ms"`
	Buttons         []ButtonConfig `json:"buttons"`
	LEDs            []LEDConfig    `json:"leds"`
	ButtonTiming    TimingConfig   `json:"button_timing"`
	Serial          SerialConfig   `json:"serial"`
	MIDI            MIDIConfig     `json:"midi"`
}

// DefaultConfig returns the stock wiring for variant with a fresh board ID.
// An unknown variant falls back to the program variant.
func DefaultConfig(v Variant) *Config {
	if !v.Valid() {
		v = VariantProgram
	}
	cfg := &Config{
		BoardID:         uuid.New().String(),
		Variant:         v,
		StartupDelayMS:  2000,
		CycleIntervalMS: 1,
		ButtonTiming: TimingConfig{
			DebounceMS:       20,
			ClickMS:          200,
			DoubleClickMS:    400,
			LongPressMS:      1000,
			RepeatDelayMS:    1000,
			RepeatIntervalMS: 200,
		},
		Serial: SerialConfig{Baud: 115200},
		MIDI: MIDIConfig{
			Transport:      TransportPort,
			PreferredPorts: []string{"Arduino", "Pico", "USB MIDI"},
			ExcludedPorts:  []string{"Midi Through", "Through Port", "Dummy"},
			Channel:        0,
			Pitch:          48,
			Velocity:       10,
		},
	}
	cfg.Buttons, cfg.LEDs = defaultWiring(v)
	return cfg
}

func defaultWiring(v Variant) ([]ButtonConfig, []LEDConfig) {
	if v == VariantProgram {
		return []ButtonConfig{{ID: 0, Pin: 1, ActiveLow: true}},
			[]LEDConfig{{Name: "green", Slot: 0}, {Name: "red", Slot: 1}}
	}
	activeLow := v == VariantChannels4
	buttons := make([]ButtonConfig, 0, 5)
	for id := 0; id <= 4; id++ {
		buttons = append(buttons, ButtonConfig{ID: uint8(id), Pin: 2 + id, ActiveLow: activeLow})
	}
	leds := []LEDConfig{
		{Name: "red", Slot: 0},
		{Name: "green", Slot: 1},
		{Name: "blue", Slot: 2},
		{Name: "yellow", Slot: 3},
	}
	return buttons, leds
}

// SetVariant switches variant, replacing the pin and LED maps with the
// variant's stock wiring when it changes.
func (c *Config) SetVariant(v Variant) {
	if v == c.Variant {
		return
	}
	c.Variant = v
	c.Buttons, c.LEDs = defaultWiring(v)
}

// Timing converts the millisecond thresholds.
func (c *Config) Timing() button.Timing {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	t := c.ButtonTiming
	return button.Timing{
		Debounce:       ms(t.DebounceMS),
		Click:          ms(t.ClickMS),
		DoubleClick:    ms(t.DoubleClickMS),
		LongPress:      ms(t.LongPressMS),
		RepeatDelay:    ms(t.RepeatDelayMS),
		RepeatInterval: ms(t.RepeatIntervalMS),
	}
}

func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelayMS) * time.Millisecond
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMS) * time.Millisecond
}

// IdleMask is the pin mask with every button at rest: active-low pins high.
func (c *Config) IdleMask() uint16 {
	var m uint16
	for _, b := range c.Buttons {
		if b.ActiveLow && b.Pin >= 0 && b.Pin < 16 {
			m |= 1 << uint(b.Pin)
		}
	}
	return m
}

// Validate checks the config for values the controller cannot run with.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !c.Variant.Valid() {
		add("unknown variant %q", c.Variant)
	}
	if c.CycleIntervalMS <= 0 {
		add("cycle_interval_ms must be positive")
	}
	if c.StartupDelayMS < 0 {
		add("startup_delay_ms must not be negative")
	}

	ids := map[uint8]bool{}
	pins := map[int]bool{}
	for _, b := range c.Buttons {
		if ids[b.ID] {
			add("duplicate button id %d", b.ID)
		}
		if pins[b.Pin] {
			add("pin %d used by more than one button", b.Pin)
		}
		if b.Pin < 0 || b.Pin > 15 {
			add("button %d pin %d out of range 0-15", b.ID, b.Pin)
		}
		ids[b.ID] = true
		pins[b.Pin] = true
	}
	slots := map[int]bool{}
	for _, l := range c.LEDs {
		if l.Slot < 0 || slots[l.Slot] {
			add("led %q has bad or duplicate slot %d", l.Name, l.Slot)
		}
		slots[l.Slot] = true
	}

	switch c.Variant {
	case VariantProgram:
		if len(c.Buttons) != 1 {
			add("program variant needs exactly one button, got %d", len(c.Buttons))
		}
		if len(c.LEDs) < 1 {
			add("program variant needs a state led")
		}
	case VariantChannels4, VariantChannels3:
		if !ids[uint8(button.MIDITrigger)] {
			add("channel variants need the midi trigger button %d", button.MIDITrigger)
		}
		for _, b := range c.Buttons {
			if id := button.ID(b.ID); id != button.MIDITrigger && (id < 1 || id > 4) {
				add("channel button id %d out of range 1-4", b.ID)
			}
		}
		if channels := len(c.Buttons) - 1; channels > len(c.LEDs) {
			add("%d channel buttons but only %d leds", channels, len(c.LEDs))
		}
	}

	t := c.ButtonTiming
	for name, v := range map[string]int{
		"debounce_ms": t.DebounceMS, "click_ms": t.ClickMS, "double_click_ms": t.DoubleClickMS,
		"long_press_ms": t.LongPressMS, "repeat_delay_ms": t.RepeatDelayMS, "repeat_interval_ms": t.RepeatIntervalMS,
	} {
		if v <= 0 {
			add("button_timing.%s must be positive", name)
		}
	}
	if c.CycleIntervalMS > 0 && c.CycleIntervalMS >= t.DebounceMS {
		add("cycle_interval_ms must be below button_timing.debounce_ms")
	}

	if c.Serial.Baud <= 0 {
		add("serial.baud must be positive")
	}
	if c.MIDI.Transport != TransportPort && c.MIDI.Transport != TransportLink {
		add("midi.transport must be %q or %q", TransportPort, TransportLink)
	}
	if c.MIDI.Channel > 15 {
		add("midi.channel %d out of range 0-15", c.MIDI.Channel)
	}
	if c.MIDI.Pitch > 127 || c.MIDI.Velocity > 127 {
		add("midi.pitch and midi.velocity must be 0-127")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lou-buttons", "config.json"), nil
}

// Load reads the config at path, or the default path when empty. A missing
// file yields the program defaults. Fields absent from the file keep the
// defaults of the file's variant.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(VariantProgram), nil
	}
	if err != nil {
		return nil, err
	}

	var head struct {
		Variant Variant `json:"variant"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg := DefaultConfig(head.Variant)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.BoardID == "" {
		cfg.BoardID = uuid.New().String()
	}
	return cfg, nil
}

// Save writes the config to path, or the default path when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
