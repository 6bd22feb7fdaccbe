//go:build tinygo

// Package board binds the controller to the microcontroller: GPIO inputs for
// the buttons, PWM channels for the LEDs and the native USB-MIDI port.
package board

import (
	"io"
	"machine"
	"machine/usb/adc/midi"

	"github.com/chase3718/lou-buttons/internal/config"
	"github.com/chase3718/lou-buttons/internal/led"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

const pwmPeriod = 1e9 / 1000 // 1 kHz, in ns

type pwmGroup interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// ledPin is one PWM-capable LED output.
type ledPin struct {
	pin machine.Pin
	pwm pwmGroup
}

// Levels reads button pins directly.
type Levels struct{}

func (Levels) Level(pin int) bool { return machine.Pin(pin).Get() }

// ConfigureButtons sets every button pin as an input, pulled towards its
// resting level.
func ConfigureButtons(buttons []config.ButtonConfig) Levels {
	for _, b := range buttons {
		mode := machine.PinInputPulldown
		if b.ActiveLow {
			mode = machine.PinInputPullup
		}
		machine.Pin(b.Pin).Configure(machine.PinConfig{Mode: mode})
	}
	return Levels{}
}

type pwmOutput struct {
	pwm pwmGroup
	ch  uint8
}

func (o pwmOutput) SetDuty(duty uint8) {
	o.pwm.Set(o.ch, o.pwm.Top()*uint32(duty)/255)
}

type pinOutput machine.Pin

func (p pinOutput) SetDuty(duty uint8) { machine.Pin(p).Set(duty >= 128) }

// LED returns the output of duty slot. Slots without PWM fall back to on/off
// at half duty; unknown slots are discarded.
func LED(slot int) led.Output {
	if slot < 0 || slot >= len(ledPins) {
		return led.OutputFunc(func(uint8) {})
	}
	lp := ledPins[slot]
	if lp.pwm != nil {
		if err := lp.pwm.Configure(machine.PWMConfig{Period: pwmPeriod}); err == nil {
			if ch, err := lp.pwm.Channel(lp.pin); err == nil {
				return pwmOutput{pwm: lp.pwm, ch: ch}
			}
		}
	}
	lp.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return pinOutput(lp.pin)
}

// USBMIDI writes packets to the native USB-MIDI endpoint.
type USBMIDI struct {
	port io.Writer
}

func NewUSBMIDI() *USBMIDI {
	return &USBMIDI{port: midi.Port()}
}

func (u *USBMIDI) WritePackets(pkts []usbmidi.Packet) error {
	for _, p := range pkts {
		if _, err := u.port.Write(p[:]); err != nil {
			return err
		}
	}
	return nil
}
