package led

import (
	"hash/fnv"
	"math"
	"time"
)

// Output receives the PWM duty computed for an LED.
type Output interface {
	SetDuty(duty uint8)
}

// OutputFunc adapts a function to Output.
type OutputFunc func(duty uint8)

func (f OutputFunc) SetDuty(duty uint8) { f(duty) }

const candleStep = 50 * time.Millisecond

// Driver plays one effect on one LED. It is advanced by the main cycle and
// never blocks.
type Driver struct {
	name string
	out  Output

	effect  Effect
	start   time.Time
	restart bool
	running bool
	duty    uint8

	rng        uint32
	candleSlot int64
	candleDuty uint8
}

// NewDriver returns a driver showing Off. out may be nil.
func NewDriver(name string, out Output) *Driver {
	h := fnv.New32a()
	h.Write([]byte(name))
	seed := h.Sum32()
	if seed == 0 {
		seed = 1
	}
	return &Driver{
		name:       name,
		out:        out,
		effect:     Off(),
		restart:    true,
		running:    true,
		rng:        seed,
		candleSlot: -1,
	}
}

func (d *Driver) Name() string   { return d.name }
func (d *Driver) Effect() Effect { return d.effect }
func (d *Driver) Duty() uint8    { return d.duty }

// Set replaces the current effect. It starts playing on the next Advance and
// the driver reports running from now on.
func (d *Driver) Set(e Effect) {
	d.effect = e
	d.restart = true
	d.running = true
	d.candleSlot = -1
}

// IsRunning reports whether the current effect is still animating. Endless
// effects are always running.
func (d *Driver) IsRunning() bool { return d.running }

// Advance computes the duty for now and writes it to the output.
func (d *Driver) Advance(now time.Time) uint8 {
	if d.restart {
		d.start = now
		d.restart = false
	}

	e := d.effect
	cycle := e.cycle()
	elapsed := now.Sub(d.start)
	if elapsed < 0 {
		elapsed = 0
	}

	var pos time.Duration
	if !e.Endless() && elapsed >= e.Duration() {
		d.running = false
		pos = cycle
	} else {
		pos = elapsed % cycle
	}

	d.duty = d.level(e, pos, cycle)
	if d.out != nil {
		d.out.SetDuty(d.duty)
	}
	return d.duty
}

func (d *Driver) level(e Effect, pos, cycle time.Duration) uint8 {
	finished := pos >= cycle
	switch e.Shape {
	case ShapeOn:
		return 255
	case ShapeBreathe:
		phase := float64(pos) / float64(cycle)
		return uint8(math.Round(127.5 * (1 - math.Cos(2*math.Pi*phase))))
	case ShapeFadeOn:
		return ramp(pos, cycle)
	case ShapeFadeOff:
		return 255 - ramp(pos, cycle)
	case ShapeBlink:
		if pos < e.Period {
			return 255
		}
		return 0
	case ShapeCandle:
		if finished {
			return 0
		}
		return d.candle(pos)
	}
	return 0
}

func ramp(pos, total time.Duration) uint8 {
	if pos >= total {
		return 255
	}
	return uint8(int64(pos) * 255 / int64(total))
}

// candle holds a random brightness for candleStep, then picks another.
func (d *Driver) candle(pos time.Duration) uint8 {
	slot := int64(pos / candleStep)
	if slot != d.candleSlot {
		d.candleSlot = slot
		// xorshift32
		x := d.rng
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		d.rng = x
		d.candleDuty = uint8(100 + x%156)
	}
	return d.candleDuty
}
