package button

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 5 * time.Millisecond

type recorder struct {
	events  []EventType
	pressed []bool
}

func (r *recorder) handle(_ ID, ev EventType, pressed bool) {
	r.events = append(r.events, ev)
	r.pressed = append(r.pressed, pressed)
}

type sampler struct {
	b *Button
	t time.Time
}

func newSampler(cfg Config) (*sampler, *recorder) {
	rec := &recorder{}
	return &sampler{
		b: New(1, 3, cfg, rec.handle),
		t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}, rec
}

func (s *sampler) hold(level bool, d time.Duration) {
	end := s.t.Add(d)
	for s.t.Before(end) {
		s.b.Check(s.t, level)
		s.t = s.t.Add(step)
	}
}

func activeLow() Config {
	return Config{Timing: DefaultTiming(), Features: FeatureAll, ActiveLow: true}
}

func TestClick(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 100*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{EventPressed, EventReleased, EventClicked}, rec.events)
	assert.Equal(t, []bool{true, false, false}, rec.pressed)
}

func TestBounceIsFiltered(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 10*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Empty(t, rec.events)
	assert.False(t, s.b.Pressed())
}

func TestDoubleClick(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 60*time.Millisecond)
	s.hold(true, 60*time.Millisecond)
	s.hold(false, 60*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{
		EventPressed, EventReleased, EventClicked,
		EventPressed, EventReleased, EventDoubleClicked,
	}, rec.events)
}

func TestSlowSecondClickIsNotDoubleClick(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 60*time.Millisecond)
	s.hold(true, 600*time.Millisecond)
	s.hold(false, 60*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{
		EventPressed, EventReleased, EventClicked,
		EventPressed, EventReleased, EventClicked,
	}, rec.events)
}

func TestLongPressAndRepeat(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 1300*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{
		EventPressed, EventLongPressed, EventRepeatPressed, EventRepeatPressed, EventReleased,
	}, rec.events)
}

func TestActiveHigh(t *testing.T) {
	cfg := activeLow()
	cfg.ActiveLow = false
	s, rec := newSampler(cfg)
	s.hold(false, 50*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	require.NotEmpty(t, rec.events)
	assert.Equal(t, EventPressed, rec.events[0])
	assert.True(t, s.b.Pressed())
}

func TestFeaturesDisabled(t *testing.T) {
	cfg := activeLow()
	cfg.Features = 0
	s, rec := newSampler(cfg)
	s.hold(true, 50*time.Millisecond)
	s.hold(false, 1200*time.Millisecond)
	s.hold(true, 100*time.Millisecond)
	s.hold(false, 60*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{EventPressed, EventReleased, EventPressed, EventReleased}, rec.events)
}

func TestHeldAtStartupIsNotAPress(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(false, 1500*time.Millisecond)
	s.hold(true, 100*time.Millisecond)

	assert.Equal(t, []EventType{EventReleased}, rec.events)
}

func TestHeldAtStartupStaysQuiet(t *testing.T) {
	s, rec := newSampler(activeLow())
	s.hold(false, 2*step)
	assert.Empty(t, rec.events)

	// a short hold past boot must not read as a click
	s.hold(true, 50*time.Millisecond)
	assert.Equal(t, []EventType{EventReleased}, rec.events)

	s.hold(false, 50*time.Millisecond)
	s.hold(true, 50*time.Millisecond)
	assert.Equal(t, []EventType{EventReleased, EventPressed, EventReleased, EventClicked}, rec.events)
}

func TestFullQueueCountsDrops(t *testing.T) {
	rec := &recorder{}
	b := New(1, 3, Config{Features: FeatureAll, ActiveLow: true, Timing: Timing{Click: time.Second}}, rec.handle)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Check(t0, true)
	b.Check(t0.Add(1*time.Millisecond), false)
	b.Check(t0.Add(2*time.Millisecond), true)
	assert.Zero(t, b.Dropped())

	// press, long-press and repeat land on a queue still holding three events
	b.Check(t0.Add(3*time.Millisecond), false)
	assert.Equal(t, uint64(2), b.Dropped())
	assert.Equal(t, []EventType{EventPressed, EventLongPressed, EventRepeatPressed}, rec.events)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "double clicked", EventDoubleClicked.String())
	assert.Equal(t, "event(42)", EventType(42).String())
}
