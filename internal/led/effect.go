// Package led drives animated LED outputs. An Effect describes what to show;
// a Driver plays one Effect at a time and writes a PWM duty to its Output once
// per cycle.
package led

import (
	"fmt"
	"time"
)

// Shape is the brightness curve of an effect.
type Shape uint8

const (
	ShapeOff Shape = iota
	ShapeOn
	ShapeBreathe
	ShapeCandle
	ShapeFadeOn
	ShapeFadeOff
	ShapeBlink
)

func (s Shape) String() string {
	switch s {
	case ShapeOff:
		return "off"
	case ShapeOn:
		return "on"
	case ShapeBreathe:
		return "breathe"
	case ShapeCandle:
		return "candle"
	case ShapeFadeOn:
		return "fade-on"
	case ShapeFadeOff:
		return "fade-off"
	case ShapeBlink:
		return "blink"
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// Forever is the repeat count of an effect that never finishes.
const Forever = -1

// Effect is a declarative LED animation.
type Effect struct {
	Shape  Shape
	Period time.Duration // one iteration; the on-time for ShapeBlink
	Off    time.Duration // off-time for ShapeBlink
	Repeat int           // iterations, or Forever
}

const (
	solidPeriod  = time.Millisecond
	candlePeriod = 5 * time.Second
)

func Off() Effect { return Effect{Shape: ShapeOff, Period: solidPeriod, Repeat: 1} }
func On() Effect  { return Effect{Shape: ShapeOn, Period: solidPeriod, Repeat: 1} }

func Breathe(period time.Duration) Effect {
	return Effect{Shape: ShapeBreathe, Period: period, Repeat: 1}
}

// Candle flickers like a candle flame.
func Candle() Effect {
	return Effect{Shape: ShapeCandle, Period: candlePeriod, Repeat: 1}
}

func FadeOn(d time.Duration) Effect  { return Effect{Shape: ShapeFadeOn, Period: d, Repeat: 1} }
func FadeOff(d time.Duration) Effect { return Effect{Shape: ShapeFadeOff, Period: d, Repeat: 1} }

// Blink is on for on, then off for off.
func Blink(on, off time.Duration) Effect {
	return Effect{Shape: ShapeBlink, Period: on, Off: off, Repeat: 1}
}

// Times returns e repeated n times.
func (e Effect) Times(n int) Effect {
	e.Repeat = n
	return e
}

// Forever returns e repeated without end.
func (e Effect) Forever() Effect {
	e.Repeat = Forever
	return e
}

// Endless reports whether e never finishes.
func (e Effect) Endless() bool { return e.Repeat < 0 }

func (e Effect) cycle() time.Duration {
	c := e.Period
	if e.Shape == ShapeBlink {
		c += e.Off
	}
	if c <= 0 {
		c = solidPeriod
	}
	return c
}

// Duration is the total play time, zero for endless effects.
func (e Effect) Duration() time.Duration {
	if e.Endless() {
		return 0
	}
	n := e.Repeat
	if n < 1 {
		n = 1
	}
	return e.cycle() * time.Duration(n)
}

func (e Effect) String() string {
	rep := "forever"
	if !e.Endless() {
		rep = fmt.Sprintf("x%d", e.Repeat)
	}
	if e.Shape == ShapeBlink {
		return fmt.Sprintf("%s(%s/%s) %s", e.Shape, e.Period, e.Off, rep)
	}
	return fmt.Sprintf("%s(%s) %s", e.Shape, e.Period, rep)
}
