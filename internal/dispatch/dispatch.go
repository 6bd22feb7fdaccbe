// Package dispatch turns classified button events into state transitions,
// LED effect selections and MIDI notes.
//
// Two shapes exist. Program drives one global program state from a single
// button. ChannelGroup cycles the effect of four LED channels, each owned by
// its own button, next to a dedicated MIDI Trigger button. A Router maps
// button identifiers to the handler owning them.
package dispatch

import (
	"log/slog"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/led"
)

// Effector is the part of an LED driver the dispatcher uses. It only selects
// effects and observes completion; animation phase belongs to the driver.
type Effector interface {
	Set(e led.Effect)
	IsRunning() bool
}

// NoteSender queues MIDI messages and flushes them onto the transport.
type NoteSender interface {
	NoteOn(channel, pitch, velocity uint8)
	NoteOff(channel, pitch, velocity uint8)
	ControlChange(channel, control, value uint8)
	Flush() error
}

// Note is the fixed note a button plays.
type Note struct {
	Channel  uint8
	Pitch    uint8
	Velocity uint8
}

// DefaultNote is channel 0, middle C (48), velocity 10.
var DefaultNote = Note{Channel: 0, Pitch: 48, Velocity: 10}

// Handler reacts to the events of the buttons routed to it.
type Handler interface {
	HandleEvent(id button.ID, ev button.EventType)
}

// Ticker is run once per cycle after all events have been dispatched.
type Ticker interface {
	Tick()
}

// Router looks up the handler of a button identifier.
type Router struct {
	routes  map[button.ID]Handler
	tickers []Ticker
	log     *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{routes: make(map[button.ID]Handler), log: log}
}

// Route binds id to h, replacing any previous binding.
func (r *Router) Route(id button.ID, h Handler) {
	r.routes[id] = h
}

// AddTicker registers a per-cycle check.
func (r *Router) AddTicker(t Ticker) {
	r.tickers = append(r.tickers, t)
}

// Lookup returns the handler bound to id.
func (r *Router) Lookup(id button.ID) (Handler, bool) {
	h, ok := r.routes[id]
	return h, ok
}

// Dispatch delivers one classified event. Events from unrouted buttons are
// logged and dropped.
func (r *Router) Dispatch(id button.ID, ev button.EventType) {
	h, ok := r.routes[id]
	if !ok {
		r.log.Warn("dispatch: no route for button", "button", id, "event", ev.String())
		return
	}
	h.HandleEvent(id, ev)
}

// Tick runs every registered per-cycle check in registration order.
func (r *Router) Tick() {
	for _, t := range r.tickers {
		t.Tick()
	}
}

func flush(m NoteSender, log *slog.Logger) {
	if err := m.Flush(); err != nil {
		log.Debug("dispatch: midi flush", "err", err)
	}
}

// NewProgramRouter routes button id to p and runs its LED check every cycle.
func NewProgramRouter(id button.ID, p *Program, log *slog.Logger) *Router {
	r := NewRouter(log)
	r.Route(id, p)
	r.AddTicker(p)
	return r
}

// NewChannelRouter routes the MIDI trigger button to t and every channel of g
// to its own button.
func NewChannelRouter(t *Trigger, g *ChannelGroup, log *slog.Logger) *Router {
	r := NewRouter(log)
	r.Route(button.MIDITrigger, t)
	for _, c := range g.Channels() {
		r.Route(c.ID(), g.Handler(c))
	}
	return r
}
