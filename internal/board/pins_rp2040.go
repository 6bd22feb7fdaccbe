//go:build tinygo && rp2040

package board

import "machine"

// ledPins are the LED outputs by duty slot. On the RP2040 GPIO n belongs to
// PWM slice (n/2)%8.
var ledPins = []ledPin{
	{pin: machine.GPIO12, pwm: machine.PWM6},
	{pin: machine.GPIO10, pwm: machine.PWM5},
	{pin: machine.GPIO14, pwm: machine.PWM7},
	{pin: machine.GPIO16, pwm: machine.PWM0},
}
