package dispatch

import (
	"log/slog"
	"time"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/led"
)

// ProgramState is the global state of the single-button controller.
type ProgramState uint8

const (
	Ready ProgramState = iota
	Started
	Running
	Stopping
	Stopped
)

func (s ProgramState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Started:
		return "started"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Valid reports whether s is one of the five program states.
func (s ProgramState) Valid() bool { return s <= Stopped }

// programEffects is the LED effect selected on entering each state.
var programEffects = [...]led.Effect{
	Ready:    led.Breathe(5000 * time.Millisecond).Forever(),
	Started:  led.Breathe(1000 * time.Millisecond).Times(3),
	Running:  led.Breathe(2000 * time.Millisecond).Forever(),
	Stopping: led.Blink(5000*time.Millisecond, 5000*time.Millisecond).Times(1),
	Stopped:  led.Breathe(10000 * time.Millisecond).Forever(),
}

// EffectFor returns the LED effect shown in state s.
func EffectFor(s ProgramState) led.Effect {
	if !s.Valid() {
		return led.Off()
	}
	return programEffects[s]
}

type programRule struct {
	from ProgramState
	on   button.EventType
	to   ProgramState
	// awaitLED holds the transition until the current LED effect finished.
	awaitLED bool
}

var programRules = []programRule{
	{Ready, button.EventLongPressed, Started, false},
	{Started, button.EventReleased, Running, false},
	{Running, button.EventReleased, Stopping, false},
	{Stopping, button.EventReleased, Stopped, true},
	{Stopped, button.EventDoubleClicked, Ready, false},
}

// Transition returns the state reached from s on ev. changed is set when the
// state changes now; held is set when a rule matched but waits for the LED
// effect to stop running, in which case next is the state to enter later.
func Transition(s ProgramState, ev button.EventType, ledRunning bool) (next ProgramState, changed, held bool) {
	for _, r := range programRules {
		if r.from != s || r.on != ev {
			continue
		}
		if r.awaitLED && ledRunning {
			return r.to, false, true
		}
		return r.to, true, false
	}
	return s, false, false
}

// StateControl is the controller number carrying the program state when
// state reporting is enabled.
const StateControl = 20

// ProgramOptions configures a Program.
type ProgramOptions struct {
	Note Note
	// StateCC emits a control change with the state ordinal on every entry.
	StateCC bool
}

// Program is the single-button program-state dispatcher. Every press plays a
// note-on and every release a note-off, independent of the state table.
type Program struct {
	state    ProgramState
	awaiting bool
	heldFor  ProgramState

	led  Effector
	midi NoteSender
	opts ProgramOptions
	log  *slog.Logger
}

// NewProgram returns a program in Ready with the ready effect selected.
func NewProgram(l Effector, m NoteSender, opts ProgramOptions, log *slog.Logger) *Program {
	if log == nil {
		log = slog.Default()
	}
	p := &Program{state: Ready, led: l, midi: m, opts: opts, log: log}
	l.Set(EffectFor(Ready))
	log.Info("dispatch: state entered", "state", Ready.String())
	return p
}

func (p *Program) State() ProgramState { return p.state }

// AwaitingLED reports whether a transition is held until the LED effect ends.
func (p *Program) AwaitingLED() bool { return p.awaiting }

// HandleEvent reacts to one classified event of the program button.
func (p *Program) HandleEvent(id button.ID, ev button.EventType) {
	p.log.Debug("dispatch: current state", "state", p.state.String(), "button", id, "event", ev.String())

	switch ev {
	case button.EventPressed:
		p.midi.NoteOn(p.opts.Note.Channel, p.opts.Note.Pitch, p.opts.Note.Velocity)
		p.log.Info("dispatch: pressed")
	case button.EventReleased:
		p.midi.NoteOff(p.opts.Note.Channel, p.opts.Note.Pitch, p.opts.Note.Velocity)
		p.log.Info("dispatch: released")
		if !p.fire(ev) {
			p.log.Info("dispatch: invalid action", "state", p.state.String())
		}
	case button.EventDoubleClicked:
		p.log.Info("dispatch: double clicked")
		p.fire(ev)
	case button.EventLongPressed:
		p.fire(ev)
		p.log.Info("dispatch: long pressed")
	default:
		p.log.Debug("dispatch: event ignored", "event", ev.String())
	}

	flush(p.midi, p.log)
}

// Tick completes a held transition once the LED effect it waits for has
// stopped running. It never blocks; an unfinished effect is checked again on
// the next cycle.
func (p *Program) Tick() {
	if !p.awaiting || p.led.IsRunning() {
		return
	}
	p.enter(p.heldFor)
	flush(p.midi, p.log)
}

// fire applies the transition for ev. It reports whether a rule matched,
// including a rule held on the LED.
func (p *Program) fire(ev button.EventType) bool {
	next, changed, held := Transition(p.state, ev, p.led.IsRunning())
	switch {
	case changed:
		p.enter(next)
	case held:
		p.log.Debug("dispatch: transition waits for led", "from", p.state.String(), "to", next.String())
		p.awaiting = true
		p.heldFor = next
	default:
		return false
	}
	return true
}

// enter switches to s and runs its entry actions once.
func (p *Program) enter(s ProgramState) {
	if s == p.state {
		return
	}
	p.state = s
	p.awaiting = false
	p.led.Set(EffectFor(s))
	if p.opts.StateCC {
		p.midi.ControlChange(p.opts.Note.Channel, StateControl, uint8(s))
	}
	p.log.Info("dispatch: state entered", "state", s.String())
}
