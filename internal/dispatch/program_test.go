package dispatch

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/led"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

// journal records LED and MIDI calls in the order they happen.
type journal struct{ entries []string }

type fakeLED struct {
	j       *journal
	name    string
	running bool
	effects []led.Effect
}

func (f *fakeLED) Set(e led.Effect) {
	f.effects = append(f.effects, e)
	if f.j != nil {
		f.j.entries = append(f.j.entries, fmt.Sprintf("led %s %s", f.name, e.Shape))
	}
}

func (f *fakeLED) IsRunning() bool { return f.running }

func (f *fakeLED) last() led.Effect { return f.effects[len(f.effects)-1] }

type journalMIDI struct {
	*usbmidi.Emitter
	j *journal
}

func (m journalMIDI) NoteOn(c, p, v uint8) {
	m.j.entries = append(m.j.entries, "midi note-on")
	m.Emitter.NoteOn(c, p, v)
}

func (m journalMIDI) NoteOff(c, p, v uint8) {
	m.j.entries = append(m.j.entries, "midi note-off")
	m.Emitter.NoteOff(c, p, v)
}

type programRig struct {
	p   *Program
	led *fakeLED
	rec *usbmidi.Recorder
	j   *journal
}

func newProgramRig(opts ProgramOptions) *programRig {
	j := &journal{}
	rec := &usbmidi.Recorder{}
	l := &fakeLED{j: j, name: "green"}
	m := journalMIDI{Emitter: usbmidi.NewEmitter(rec, nil), j: j}
	if opts.Note == (Note{}) {
		opts.Note = DefaultNote
	}
	return &programRig{p: NewProgram(l, m, opts, nil), led: l, rec: rec, j: j}
}

func (r *programRig) send(evs ...button.EventType) {
	for _, ev := range evs {
		r.p.HandleEvent(0, ev)
	}
}

// reach drives the program into s, with the LED reported idle.
func (r *programRig) reach(s ProgramState) {
	path := []button.EventType{button.EventLongPressed, button.EventReleased, button.EventReleased, button.EventReleased}
	for i := 0; i < int(s); i++ {
		r.send(path[i])
	}
}

func TestProgramStartsReady(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	assert.Equal(t, Ready, r.p.State())
	assert.Equal(t, EffectFor(Ready), r.led.last())
	assert.Empty(t, r.rec.Packets)
}

func TestProgramEndToEnd(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	var seen []ProgramState
	seen = append(seen, r.p.State())

	r.send(button.EventLongPressed)
	seen = append(seen, r.p.State())
	assert.Equal(t, led.Breathe(EffectFor(Started).Period).Times(3), r.led.last())

	r.send(button.EventReleased)
	seen = append(seen, r.p.State())
	assert.True(t, r.led.last().Endless())

	r.send(button.EventReleased)
	seen = append(seen, r.p.State())
	assert.Equal(t, led.ShapeBlink, r.led.last().Shape)

	// the blink is still animating: the release is held
	r.led.running = true
	r.send(button.EventReleased)
	assert.Equal(t, Stopping, r.p.State())
	assert.True(t, r.p.AwaitingLED())

	r.p.Tick()
	assert.Equal(t, Stopping, r.p.State(), "rechecked on every cycle")

	r.led.running = false
	r.p.Tick()
	seen = append(seen, r.p.State())

	assert.Equal(t, []ProgramState{Ready, Started, Running, Stopping, Stopped}, seen)
	assert.False(t, r.p.AwaitingLED())
	assert.Equal(t, EffectFor(Stopped), r.led.last())

	// every release plays a note-off
	offs := 0
	for _, p := range r.rec.Packets {
		if p.CIN() == usbmidi.CINNoteOff {
			offs++
		}
	}
	assert.Equal(t, 3, offs)
}

func TestProgramReleaseWhenStoppedIsInvalid(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	r.reach(Stopped)
	effects := len(r.led.effects)

	r.send(button.EventReleased)
	assert.Equal(t, Stopped, r.p.State())
	assert.Len(t, r.led.effects, effects, "no transition")
	require.NotEmpty(t, r.rec.Packets)
	assert.Equal(t, usbmidi.CINNoteOff, r.rec.Packets[len(r.rec.Packets)-1].CIN(), "the note-off still plays")
}

func TestProgramStopsImmediatelyWhenBlinkDone(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	r.reach(Stopping)
	r.led.running = false
	r.send(button.EventReleased)
	assert.Equal(t, Stopped, r.p.State())
}

func TestProgramPressAndReleaseAlwaysPlay(t *testing.T) {
	for s := Ready; s <= Stopped; s++ {
		t.Run(s.String(), func(t *testing.T) {
			r := newProgramRig(ProgramOptions{})
			r.reach(s)
			r.rec.Reset()

			r.send(button.EventPressed)
			require.Len(t, r.rec.Packets, 1)
			assert.Equal(t, usbmidi.Packet{0x09, 0x90, 48, 10}, r.rec.Packets[0])

			r.send(button.EventReleased)
			require.Len(t, r.rec.Packets, 2)
			assert.Equal(t, usbmidi.Packet{0x08, 0x80, 48, 10}, r.rec.Packets[1])
			assert.Equal(t, 2, r.rec.Batches, "flushed after every event")
		})
	}
}

func TestReleaseSendsNoteOffBeforeTransition(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	r.reach(Started)
	r.j.entries = nil

	r.send(button.EventReleased)
	assert.Equal(t, []string{"midi note-off", "led green breathe"}, r.j.entries)
	assert.Equal(t, Running, r.p.State())
}

func TestDoubleClickOnlyLeavesStopped(t *testing.T) {
	for s := Ready; s <= Stopped; s++ {
		t.Run(s.String(), func(t *testing.T) {
			r := newProgramRig(ProgramOptions{})
			r.reach(s)
			n := len(r.led.effects)
			r.send(button.EventDoubleClicked)
			if s == Stopped {
				assert.Equal(t, Ready, r.p.State())
				assert.Equal(t, EffectFor(Ready), r.led.last())
				return
			}
			assert.Equal(t, s, r.p.State())
			assert.Len(t, r.led.effects, n, "no entry action on a no-op")
		})
	}
}

func TestLongPressOnlyLeavesReady(t *testing.T) {
	for s := Started; s <= Stopped; s++ {
		r := newProgramRig(ProgramOptions{})
		r.reach(s)
		r.send(button.EventLongPressed)
		assert.Equal(t, s, r.p.State())
	}
}

func TestIgnoredEvents(t *testing.T) {
	r := newProgramRig(ProgramOptions{})
	r.send(button.EventClicked, button.EventRepeatPressed, button.EventType(99))
	assert.Equal(t, Ready, r.p.State())
	assert.Empty(t, r.rec.Packets)
}

func TestStateControlChange(t *testing.T) {
	r := newProgramRig(ProgramOptions{StateCC: true})
	r.send(button.EventLongPressed)
	require.Len(t, r.rec.Packets, 1)
	assert.Equal(t, usbmidi.Packet{0x0B, 0xB0, StateControl, byte(Started)}, r.rec.Packets[0])
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    ProgramState
		ev      button.EventType
		running bool
		next    ProgramState
		changed bool
		held    bool
	}{
		{Ready, button.EventLongPressed, false, Started, true, false},
		{Ready, button.EventReleased, false, Ready, false, false},
		{Started, button.EventReleased, true, Running, true, false},
		{Running, button.EventReleased, true, Stopping, true, false},
		{Stopping, button.EventReleased, true, Stopped, false, true},
		{Stopping, button.EventReleased, false, Stopped, true, false},
		{Stopped, button.EventReleased, false, Stopped, false, false},
		{Stopped, button.EventDoubleClicked, false, Ready, true, false},
		{Running, button.EventDoubleClicked, false, Running, false, false},
	}
	for _, tt := range tests {
		next, changed, held := Transition(tt.from, tt.ev, tt.running)
		assert.Equal(t, tt.next, next, "%s on %s", tt.from, tt.ev)
		assert.Equal(t, tt.changed, changed, "%s on %s", tt.from, tt.ev)
		assert.Equal(t, tt.held, held, "%s on %s", tt.from, tt.ev)
	}
}

func TestRandomEventSequencesStayValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := newProgramRig(ProgramOptions{})
	events := []button.EventType{
		button.EventPressed, button.EventReleased, button.EventClicked,
		button.EventDoubleClicked, button.EventLongPressed, button.EventRepeatPressed,
	}
	for i := 0; i < 10000; i++ {
		r.led.running = rng.Intn(2) == 0
		before := r.p.State()
		ev := events[rng.Intn(len(events))]
		r.send(ev)
		if ev == button.EventDoubleClicked && before != Stopped {
			require.Equal(t, before, r.p.State())
		}
		r.p.Tick()
		require.True(t, r.p.State().Valid())
	}
}
