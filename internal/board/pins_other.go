//go:build tinygo && !rp2040

package board

import "machine"

// Boards without a known PWM map switch their LEDs on and off.
var ledPins = []ledPin{
	{pin: machine.Pin(12)},
	{pin: machine.Pin(10)},
	{pin: machine.Pin(14)},
	{pin: machine.Pin(16)},
}
