// Package usbmidi frames MIDI channel messages as 4-byte USB-MIDI event
// packets, queues them and flushes them onto a transport.
package usbmidi

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Packet is a USB-MIDI event packet:
//
//	[cable<<4 | code index number][status][data1][data2]
type Packet [4]byte

// Code index numbers for the channel messages the controller emits.
const (
	CINNoteOff       byte = 0x08
	CINNoteOn        byte = 0x09
	CINControlChange byte = 0x0B
)

var ErrUnsupported = errors.New("usbmidi: unsupported message")

// FromMessage converts a three-byte channel voice message into a packet on the
// given virtual cable.
func FromMessage(cable uint8, msg midi.Message) (Packet, error) {
	b := msg.Bytes()
	if len(b) != 3 {
		return Packet{}, fmt.Errorf("%w: %v", ErrUnsupported, msg)
	}
	status := b[0]
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
	default:
		return Packet{}, fmt.Errorf("%w: status 0x%02X", ErrUnsupported, status)
	}
	return Packet{(cable&0x0F)<<4 | status>>4, status, b[1], b[2]}, nil
}

func (p Packet) CIN() byte     { return p[0] & 0x0F }
func (p Packet) Cable() uint8  { return p[0] >> 4 }
func (p Packet) Channel() byte { return p[1] & 0x0F }

// Message returns the MIDI message carried by the packet.
func (p Packet) Message() midi.Message {
	return midi.Message{p[1], p[2], p[3]}
}

func (p Packet) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X", p[0], p[1], p[2], p[3])
}
