// Package panel is a terminal front panel for the controller: digit keys
// toggle the virtual buttons, LEDs are drawn at their current brightness and
// outgoing MIDI is listed as it is flushed.
package panel

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/cycle"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

const (
	DefaultInterval = 5 * time.Millisecond
	shownPackets    = 8
	barWidth        = 24
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Reverse(true)
	labelStyle  = lipgloss.NewStyle().Width(8)
)

// ledColors maps LED names to their full-brightness color.
var ledColors = map[string][3]uint8{
	"red":    {255, 40, 40},
	"green":  {40, 255, 80},
	"blue":   {60, 120, 255},
	"yellow": {255, 220, 40},
}

// Pins are the virtual input levels, toggled from the keyboard.
type Pins map[int]bool

func (p Pins) Level(pin int) bool { return p[pin] }

type key struct {
	id        uint8
	pin       int
	activeLow bool
}

// Options configures a Model.
type Options struct {
	// Interval between cycle steps. Zero means DefaultInterval.
	Interval time.Duration
	// MIDI, when set, also receives every flushed batch.
	MIDI usbmidi.Transport
}

// Model is the bubbletea model of the simulator.
type Model struct {
	ctrl     *cycle.Controller
	pins     Pins
	keys     []key
	rec      *usbmidi.Recorder
	interval time.Duration
	started  time.Time
	last     time.Time
	quitting bool
}

type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// New builds the controller described by cfg on virtual pins.
func New(cfg *config.Config, opts Options, log *slog.Logger) (Model, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	pins := Pins{}
	keys := make([]key, 0, len(cfg.Buttons))
	for _, b := range cfg.Buttons {
		pins[b.Pin] = b.ActiveLow
		keys = append(keys, key{id: b.ID, pin: b.Pin, activeLow: b.ActiveLow})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })

	rec := &usbmidi.Recorder{Limit: shownPackets}
	var tr usbmidi.Transport = rec
	if opts.MIDI != nil {
		tr = usbmidi.Multi{rec, opts.MIDI}
	}

	ctrl, err := cycle.Build(cfg, cycle.IO{Levels: pins, MIDI: tr}, log)
	if err != nil {
		return Model{}, err
	}
	return Model{ctrl: ctrl, pins: pins, keys: keys, rec: rec, interval: opts.Interval}, nil
}

func (m Model) Controller() *cycle.Controller { return m.ctrl }

func (m Model) Init() tea.Cmd {
	return tick(m.interval)
}

// Pressed reports whether the button with id is held down on the panel.
func (m Model) Pressed(id uint8) bool {
	for _, k := range m.keys {
		if k.id == id {
			return m.pins[k.pin] != k.activeLow
		}
	}
	return false
}

func (m Model) toggle(id uint8) {
	for _, k := range m.keys {
		if k.id == id {
			m.pins[k.pin] = !m.pins[k.pin]
			return
		}
	}
}

func (m Model) releaseAll() {
	for _, k := range m.keys {
		m.pins[k.pin] = k.activeLow
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch s := msg.String(); s {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.releaseAll()
		case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
			m.toggle(s[0] - '0')
		}

	case tickMsg:
		now := time.Time(msg)
		if m.started.IsZero() {
			m.started = now
		}
		m.last = now
		m.ctrl.Loop.Step(now)
		return m, tick(m.interval)
	}
	return m, nil
}

func ledColor(name string, duty uint8) lipgloss.Color {
	base, ok := ledColors[name]
	if !ok {
		base = [3]uint8{255, 255, 255}
	}
	scale := func(c uint8) uint8 { return uint8(uint16(c) * uint16(duty) / 255) }
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", scale(base[0]), scale(base[1]), scale(base[2])))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("lou-buttons  %s  t=%s",
		m.ctrl.Variant, m.last.Sub(m.started).Truncate(time.Millisecond*100))))
	b.WriteString("\n\n")

	for _, s := range m.ctrl.LEDStates() {
		fill := int(s.Duty) * barWidth / 255
		bar := lipgloss.NewStyle().Foreground(ledColor(s.Name, s.Duty)).Render(strings.Repeat("█", fill))
		bar += dimStyle.Render(strings.Repeat("·", barWidth-fill))
		fmt.Fprintf(&b, "%s %s %3d  %s\n", labelStyle.Render(s.Name), bar, s.Duty, dimStyle.Render(s.Effect.String()))
	}

	b.WriteString("\n")
	b.WriteString(m.ctrl.Describe())
	b.WriteString("\n\n")

	for _, k := range m.keys {
		label := fmt.Sprintf(" %d ", k.id)
		if m.Pressed(k.id) {
			b.WriteString(activeStyle.Render(label))
		} else {
			b.WriteString(dimStyle.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render("midi:"))
	b.WriteString("\n")
	for _, p := range m.rec.Packets {
		fmt.Fprintf(&b, "  %s  %s\n", p.String(), p.Message().String())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("0-9:toggle button  r:release all  q:quit"))
	return b.String()
}
