package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chase3718/lou-buttons/internal/button"
	"github.com/chase3718/lou-buttons/internal/led"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

type channelRig struct {
	g      *ChannelGroup
	leds   []*fakeLED
	router *Router
	rec    *usbmidi.Recorder
}

func newChannelRig(cycle Cycle) *channelRig {
	rec := &usbmidi.Recorder{}
	g := NewChannelGroup(cycle, nil)
	var leds []*fakeLED
	for i, name := range []string{"red", "green", "blue", "yellow"} {
		l := &fakeLED{name: name}
		leds = append(leds, l)
		g.Add(button.ID(i+1), name, l)
	}
	trig := NewTrigger(usbmidi.NewEmitter(rec, nil), DefaultNote, nil)
	return &channelRig{g: g, leds: leds, router: NewChannelRouter(trig, g, nil), rec: rec}
}

func (r *channelRig) press(id button.ID) {
	r.router.Dispatch(id, button.EventPressed)
	r.router.Dispatch(id, button.EventReleased)
}

func TestCycle4(t *testing.T) {
	r := newChannelRig(Cycle4)
	red := r.g.Channels()[0]
	seen := []ChannelState{red.State()}
	for i := 0; i < 4; i++ {
		r.press(1)
		seen = append(seen, red.State())
	}
	assert.Equal(t, []ChannelState{ChannelBreathe, ChannelFlicker, ChannelOff, ChannelOn, ChannelBreathe}, seen)

	shapes := make([]led.Shape, 0, len(r.leds[0].effects))
	for _, e := range r.leds[0].effects {
		shapes = append(shapes, e.Shape)
	}
	assert.Equal(t, []led.Shape{led.ShapeBreathe, led.ShapeCandle, led.ShapeOff, led.ShapeOn, led.ShapeBreathe}, shapes)
}

func TestCycle3WrapsAfterThree(t *testing.T) {
	r := newChannelRig(Cycle3)
	green := r.g.Channels()[1]
	seen := []ChannelState{green.State()}
	for i := 0; i < 3; i++ {
		r.press(2)
		seen = append(seen, green.State())
	}
	assert.Equal(t, []ChannelState{ChannelBreathe, ChannelFlicker, ChannelOff, ChannelBreathe}, seen)
	assert.Equal(t, led.ShapeFadeOff, r.leds[1].effects[2].Shape)
}

func TestNPressesReturnToStart(t *testing.T) {
	for _, cycle := range []Cycle{Cycle3, Cycle4} {
		r := newChannelRig(cycle)
		for id := button.ID(1); id <= 4; id++ {
			// move each channel to a different starting point first
			for i := 0; i < int(id); i++ {
				r.press(id)
			}
			start := r.g.Channels()[id-1].State()
			for i := 0; i < len(cycle.Order); i++ {
				r.press(id)
			}
			assert.Equal(t, start, r.g.Channels()[id-1].State(), "%s channel %d", cycle.Name, id)
		}
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	r := newChannelRig(Cycle4)
	r.press(3)
	assert.Equal(t, []ChannelState{ChannelBreathe, ChannelBreathe, ChannelFlicker, ChannelBreathe}, r.g.States())
}

func TestLongPressResetsAllChannels(t *testing.T) {
	for id := button.ID(1); id <= 4; id++ {
		r := newChannelRig(Cycle4)
		r.press(1)
		r.press(2)
		r.press(2)
		r.press(4)
		r.press(4)
		r.press(4)

		r.router.Dispatch(id, button.EventLongPressed)

		assert.Equal(t, []ChannelState{ChannelOff, ChannelOff, ChannelOff, ChannelOff}, r.g.States())
		for _, l := range r.leds {
			assert.Equal(t, led.ShapeOff, l.last().Shape, l.name)
		}
	}
}

func TestOtherChannelEventsAreIgnored(t *testing.T) {
	r := newChannelRig(Cycle4)
	for _, ev := range []button.EventType{button.EventReleased, button.EventClicked, button.EventDoubleClicked, button.EventRepeatPressed} {
		r.router.Dispatch(1, ev)
	}
	assert.Equal(t, ChannelBreathe, r.g.Channels()[0].State())
	assert.Len(t, r.leds[0].effects, 1)
	assert.Empty(t, r.rec.Packets)
}

func TestTriggerPlaysFixedNote(t *testing.T) {
	r := newChannelRig(Cycle4)
	for i := 0; i < 3; i++ {
		r.press(button.MIDITrigger)
	}
	require.Len(t, r.rec.Packets, 6)
	for i, p := range r.rec.Packets {
		if i%2 == 0 {
			assert.Equal(t, usbmidi.Packet{0x09, 0x90, 48, 10}, p)
		} else {
			assert.Equal(t, usbmidi.Packet{0x08, 0x80, 48, 10}, p)
		}
	}
	assert.Equal(t, 6, r.rec.Batches)
	assert.Equal(t, []ChannelState{ChannelBreathe, ChannelBreathe, ChannelBreathe, ChannelBreathe}, r.g.States())
}

func TestTriggerOtherEventsAreNoOps(t *testing.T) {
	r := newChannelRig(Cycle4)
	for _, ev := range []button.EventType{button.EventClicked, button.EventDoubleClicked, button.EventLongPressed, button.EventRepeatPressed} {
		r.router.Dispatch(button.MIDITrigger, ev)
	}
	assert.Empty(t, r.rec.Packets)
	assert.Equal(t, []ChannelState{ChannelBreathe, ChannelBreathe, ChannelBreathe, ChannelBreathe}, r.g.States())
}

func TestUnknownStateDoesNothing(t *testing.T) {
	r := newChannelRig(Cycle4)
	c := r.g.Channels()[0]
	c.state = ChannelUnknown

	next, ok := c.Advance()
	assert.False(t, ok)
	assert.Equal(t, ChannelUnknown, next)
	assert.Len(t, r.leds[0].effects, 1)

	// 3-state cycle has no "on"
	_, ok = Cycle3.Next(ChannelOn)
	assert.False(t, ok)
}

func TestRouting(t *testing.T) {
	r := newChannelRig(Cycle4)
	for id := button.ID(0); id <= 4; id++ {
		_, ok := r.router.Lookup(id)
		assert.True(t, ok, "button %d", id)
	}
	_, ok := r.router.Lookup(5)
	assert.False(t, ok)

	// unrouted buttons are dropped
	r.router.Dispatch(9, button.EventPressed)
	assert.Empty(t, r.rec.Packets)
}

func TestProgramRouter(t *testing.T) {
	l := &fakeLED{name: "green"}
	rec := &usbmidi.Recorder{}
	p := NewProgram(l, usbmidi.NewEmitter(rec, nil), ProgramOptions{Note: DefaultNote}, nil)
	r := NewProgramRouter(0, p, nil)

	r.Dispatch(0, button.EventLongPressed)
	r.Dispatch(0, button.EventReleased)
	r.Dispatch(0, button.EventReleased)
	l.running = true
	r.Dispatch(0, button.EventReleased)
	require.Equal(t, Stopping, p.State())

	l.running = false
	r.Tick()
	assert.Equal(t, Stopped, p.State())
}
