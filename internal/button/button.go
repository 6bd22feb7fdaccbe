// Package button turns raw digital pin samples into debounced, classified
// button events (pressed, released, clicked, double-clicked, long-pressed,
// repeat-pressed).
package button

import (
	"fmt"
	"time"
)

// ID identifies a physical button for the lifetime of the process.
type ID uint8

// MIDITrigger is the identifier reserved for the dedicated MIDI button.
const MIDITrigger ID = 0

// EventType is a classified button interaction.
type EventType uint8

const (
	EventPressed EventType = iota
	EventReleased
	EventClicked
	EventDoubleClicked
	EventLongPressed
	EventRepeatPressed
)

func (e EventType) String() string {
	switch e {
	case EventPressed:
		return "pressed"
	case EventReleased:
		return "released"
	case EventClicked:
		return "clicked"
	case EventDoubleClicked:
		return "double clicked"
	case EventLongPressed:
		return "long pressed"
	case EventRepeatPressed:
		return "repeat pressed"
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// Feature enables optional event classes. Pressed and Released are always
// reported.
type Feature uint8

const (
	FeatureClick Feature = 1 << iota
	FeatureDoubleClick
	FeatureLongPress
	FeatureRepeatPress

	FeatureAll = FeatureClick | FeatureDoubleClick | FeatureLongPress | FeatureRepeatPress
)

// Timing holds the classification thresholds.
type Timing struct {
	Debounce       time.Duration
	Click          time.Duration // max hold for a click
	DoubleClick    time.Duration // max gap between the two clicks
	LongPress      time.Duration
	RepeatDelay    time.Duration
	RepeatInterval time.Duration
}

// DefaultTiming returns the thresholds used by the firmware.
func DefaultTiming() Timing {
	return Timing{
		Debounce:       20 * time.Millisecond,
		Click:          200 * time.Millisecond,
		DoubleClick:    400 * time.Millisecond,
		LongPress:      1000 * time.Millisecond,
		RepeatDelay:    1000 * time.Millisecond,
		RepeatInterval: 200 * time.Millisecond,
	}
}

// Config describes how a button is sampled and classified.
type Config struct {
	Timing    Timing
	Features  Feature
	ActiveLow bool // pressed when the pin reads low (pull-up wiring)
}

// Handler receives classified events. pressed is the debounced state of the
// button at delivery time.
type Handler func(id ID, ev EventType, pressed bool)

const queueSize = 4

// Button classifies the samples of one pin.
type Button struct {
	id      ID
	pin     int
	cfg     Config
	handler Handler

	sampled  bool
	raw      bool
	rawSince time.Time
	pressed  bool

	// armed is set by a debounced press; a button held since the first
	// sample is never classified beyond its release.
	armed        bool
	pressedAt    time.Time
	lastClickAt  time.Time
	clickPending bool
	longFired    bool
	repeating    bool
	lastRepeatAt time.Time

	queue   [queueSize]EventType
	head    int
	count   int
	dropped uint64
}

// New returns a button bound to pin. The handler may be nil and set later
// with SetHandler.
func New(id ID, pin int, cfg Config, h Handler) *Button {
	return &Button{id: id, pin: pin, cfg: cfg, handler: h}
}

func (b *Button) ID() ID        { return b.id }
func (b *Button) Pin() int      { return b.pin }
func (b *Button) Pressed() bool { return b.pressed }

// Dropped returns how many events were lost to a full queue.
func (b *Button) Dropped() uint64 { return b.dropped }

// SetHandler replaces the event handler.
func (b *Button) SetHandler(h Handler) { b.handler = h }

// Check samples the pin level at now and delivers at most one classified
// event to the handler. Events produced together (a release followed by a
// click) are delivered on consecutive calls.
func (b *Button) Check(now time.Time, level bool) {
	p := level != b.cfg.ActiveLow

	if !b.sampled {
		// The initial level is the resting state, not a transition.
		b.sampled = true
		b.raw = p
		b.rawSince = now
		b.pressed = p
		b.pressedAt = now
	} else {
		if p != b.raw {
			b.raw = p
			b.rawSince = now
		}
		if b.raw != b.pressed && now.Sub(b.rawSince) >= b.cfg.Timing.Debounce {
			b.pressed = b.raw
			if b.pressed {
				b.onPress(now)
			} else {
				b.onRelease(now)
			}
		}
		if b.pressed && b.armed {
			b.onHeld(now)
		}
	}

	b.deliver()
}

func (b *Button) enabled(f Feature) bool { return b.cfg.Features&f != 0 }

func (b *Button) onPress(now time.Time) {
	b.push(EventPressed)
	b.armed = true
	b.pressedAt = now
	b.longFired = false
	b.repeating = false
}

func (b *Button) onRelease(now time.Time) {
	b.push(EventReleased)
	if !b.armed {
		return
	}
	b.armed = false

	held := now.Sub(b.pressedAt)
	if held >= b.cfg.Timing.Click || !b.enabled(FeatureClick|FeatureDoubleClick) {
		b.clickPending = false
		return
	}

	if b.enabled(FeatureDoubleClick) && b.clickPending && now.Sub(b.lastClickAt) < b.cfg.Timing.DoubleClick {
		b.push(EventDoubleClicked)
		b.clickPending = false
		return
	}

	if b.enabled(FeatureClick) {
		b.push(EventClicked)
	}
	b.clickPending = true
	b.lastClickAt = now
}

func (b *Button) onHeld(now time.Time) {
	held := now.Sub(b.pressedAt)

	if b.enabled(FeatureLongPress) && !b.longFired && held >= b.cfg.Timing.LongPress {
		b.push(EventLongPressed)
		b.longFired = true
	}

	if !b.enabled(FeatureRepeatPress) {
		return
	}
	switch {
	case !b.repeating && held >= b.cfg.Timing.RepeatDelay:
		b.push(EventRepeatPressed)
		b.repeating = true
		b.lastRepeatAt = now
	case b.repeating && now.Sub(b.lastRepeatAt) >= b.cfg.Timing.RepeatInterval:
		b.push(EventRepeatPressed)
		b.lastRepeatAt = now
	}
}

// push drops the event when the queue is full; the queue only overflows if
// Check is called far less often than the debounce interval.
func (b *Button) push(ev EventType) {
	if b.count == queueSize {
		b.dropped++
		return
	}
	b.queue[(b.head+b.count)%queueSize] = ev
	b.count++
}

func (b *Button) deliver() {
	if b.count == 0 {
		return
	}
	ev := b.queue[b.head]
	b.head = (b.head + 1) % queueSize
	b.count--
	if b.handler != nil {
		b.handler(b.id, ev, b.pressed)
	}
}
