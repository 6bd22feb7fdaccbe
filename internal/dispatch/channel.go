package dispatch

import (
	"log/slog"
	"time"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/led"
)

// ChannelState is the effect state of one LED channel.
type ChannelState uint8

const (
	// ChannelUnknown is the zero value; a channel in it ignores presses.
	ChannelUnknown ChannelState = iota
	ChannelOff
	ChannelOn
	ChannelBreathe
	ChannelFlicker
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOff:
		return "off"
	case ChannelOn:
		return "on"
	case ChannelBreathe:
		return "breathe"
	case ChannelFlicker:
		return "flicker"
	}
	return "unknown"
}

// Cycle is the ordered list of states a channel steps through on press and
// the effect shown in each.
type Cycle struct {
	Name    string
	Order   []ChannelState
	Effects map[ChannelState]led.Effect
}

// Cycle4 is breathe, flicker, off, on with immediate on/off.
var Cycle4 = Cycle{
	Name:  "channels4",
	Order: []ChannelState{ChannelBreathe, ChannelFlicker, ChannelOff, ChannelOn},
	Effects: map[ChannelState]led.Effect{
		ChannelBreathe: led.Breathe(4000 * time.Millisecond).Forever(),
		ChannelFlicker: led.Candle().Forever(),
		ChannelOff:     led.Off(),
		ChannelOn:      led.On(),
	},
}

// Cycle3 is breathe, flicker, off with a single candle burn and a timed
// fade-off.
var Cycle3 = Cycle{
	Name:  "channels3",
	Order: []ChannelState{ChannelBreathe, ChannelFlicker, ChannelOff},
	Effects: map[ChannelState]led.Effect{
		ChannelBreathe: led.Breathe(4000 * time.Millisecond).Forever(),
		ChannelFlicker: led.Candle().Times(1),
		ChannelOff:     led.FadeOff(1000 * time.Millisecond),
	},
}

// Next returns the state following s, or false if s is not in the cycle.
func (c Cycle) Next(s ChannelState) (ChannelState, bool) {
	for i, o := range c.Order {
		if o == s {
			return c.Order[(i+1)%len(c.Order)], true
		}
	}
	return ChannelUnknown, false
}

func (c Cycle) effect(s ChannelState) led.Effect {
	if e, ok := c.Effects[s]; ok {
		return e
	}
	return led.Off()
}

// Channel is one LED channel with its own effect state. Only its own button
// moves it forward; the group may reset it.
type Channel struct {
	id    button.ID
	name  string
	state ChannelState
	led   Effector
	cycle *Cycle
	log   *slog.Logger
}

func (c *Channel) ID() button.ID       { return c.id }
func (c *Channel) Name() string        { return c.name }
func (c *Channel) State() ChannelState { return c.state }

// Advance moves to the next state of the cycle and selects its effect. A
// channel in a state outside the cycle does nothing.
func (c *Channel) Advance() (ChannelState, bool) {
	next, ok := c.cycle.Next(c.state)
	if !ok {
		c.log.Warn("dispatch: channel state not in cycle, no action", "channel", c.name, "state", c.state.String())
		return c.state, false
	}
	c.set(next)
	return next, true
}

func (c *Channel) set(s ChannelState) {
	c.state = s
	c.led.Set(c.cycle.effect(s))
	c.log.Info("dispatch: channel state", "channel", c.name, "state", s.String())
}

// ChannelGroup owns the LED channels of the multi-button controller.
type ChannelGroup struct {
	cycle    Cycle
	channels []*Channel
	log      *slog.Logger
}

func NewChannelGroup(cycle Cycle, log *slog.Logger) *ChannelGroup {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelGroup{cycle: cycle, log: log}
}

// Add creates a channel owned by button id, starting in the first state of
// the cycle.
func (g *ChannelGroup) Add(id button.ID, name string, l Effector) *Channel {
	c := &Channel{id: id, name: name, led: l, cycle: &g.cycle, log: g.log}
	c.set(g.cycle.Order[0])
	g.channels = append(g.channels, c)
	return c
}

func (g *ChannelGroup) Channels() []*Channel { return g.channels }

// States returns the state of every channel in the order they were added.
func (g *ChannelGroup) States() []ChannelState {
	out := make([]ChannelState, len(g.channels))
	for i, c := range g.channels {
		out[i] = c.state
	}
	return out
}

// ResetAll switches every channel to off.
func (g *ChannelGroup) ResetAll() {
	g.log.Info("dispatch: reset all channels")
	for _, c := range g.channels {
		c.set(ChannelOff)
	}
}

// Handler returns the event handler of channel c: a press advances c, a long
// press resets the whole group.
func (g *ChannelGroup) Handler(c *Channel) Handler {
	return channelHandler{g: g, c: c}
}

type channelHandler struct {
	g *ChannelGroup
	c *Channel
}

func (h channelHandler) HandleEvent(id button.ID, ev button.EventType) {
	switch ev {
	case button.EventPressed:
		h.c.Advance()
	case button.EventLongPressed:
		h.g.ResetAll()
	default:
		h.g.log.Debug("dispatch: channel event ignored", "channel", h.c.name, "button", id, "event", ev.String())
	}
}

// Trigger is the dedicated MIDI button: press plays the note, release ends
// it. It never touches channel state.
type Trigger struct {
	midi NoteSender
	note Note
	log  *slog.Logger
}

func NewTrigger(m NoteSender, note Note, log *slog.Logger) *Trigger {
	if log == nil {
		log = slog.Default()
	}
	return &Trigger{midi: m, note: note, log: log}
}

func (t *Trigger) HandleEvent(id button.ID, ev button.EventType) {
	switch ev {
	case button.EventPressed:
		t.midi.NoteOn(t.note.Channel, t.note.Pitch, t.note.Velocity)
		t.log.Info("dispatch: trigger pressed", "button", id)
	case button.EventReleased:
		t.midi.NoteOff(t.note.Channel, t.note.Pitch, t.note.Velocity)
		t.log.Info("dispatch: trigger released", "button", id)
	default:
		t.log.Info("dispatch: trigger event, no action", "button", id, "event", ev.String())
		return
	}
	flush(t.midi, t.log)
}
