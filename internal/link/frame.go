// Package link talks to the I/O board over a serial port. The board reports
// raw pin levels; the host sends LED duties and USB-MIDI packets back.
package link

import (
	"errors"
	"fmt"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdLEDDuty  = 0x10 // host -> board: duty per LED slot, then seq
	CmdPinState = 0x20 // board -> host: pin mask lo, hi, seq
	CmdMIDI     = 0x30 // host -> board: whole USB-MIDI packets

	MaxPayload = 64
)

var (
	ErrChecksum    = errors.New("link: checksum mismatch")
	ErrFrameLength = errors.New("link: bad frame length")
)

// Frame is one command with its payload.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD and payload; CKS is the XOR of LEN, CMD and the payload.
func (f Frame) Encode() []byte {
	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out
}

// PinState is the pin level snapshot sent by the board.
type PinState struct {
	Mask uint16 // bit N set = pin N high
	Seq  byte
}

func (p PinState) Frame() Frame {
	return Frame{Cmd: CmdPinState, Payload: []byte{byte(p.Mask), byte(p.Mask >> 8), p.Seq}}
}

// ParsePinState decodes a CmdPinState frame.
func ParsePinState(f Frame) (PinState, error) {
	if f.Cmd != CmdPinState || len(f.Payload) != 3 {
		return PinState{}, fmt.Errorf("%w: cmd 0x%02X with %d bytes", ErrFrameLength, f.Cmd, len(f.Payload))
	}
	return PinState{Mask: uint16(f.Payload[0]) | uint16(f.Payload[1])<<8, Seq: f.Payload[2]}, nil
}

// LEDFrame is a full snapshot of every LED duty.
type LEDFrame struct {
	Duty []byte
	Seq  byte
}

func (l LEDFrame) Frame() Frame {
	payload := make([]byte, 0, len(l.Duty)+1)
	payload = append(payload, l.Duty...)
	payload = append(payload, l.Seq)
	return Frame{Cmd: CmdLEDDuty, Payload: payload}
}

type decodeState uint8

const (
	stSOF0 decodeState = iota
	stSOF1
	stLen
	stCmd
	stPayload
	stCks
)

// Decoder reassembles frames from a byte stream and resynchronises on the
// start-of-frame marker after garbage or a corrupt frame.
type Decoder struct {
	state  decodeState
	length byte
	cmd    byte
	cks    byte
	buf    []byte
}

// Feed consumes one byte. It returns a frame when one completes, or an error
// when a corrupt frame was discarded.
func (d *Decoder) Feed(b byte) (Frame, bool, error) {
	switch d.state {
	case stSOF0:
		if b == SOF0 {
			d.state = stSOF1
		}
	case stSOF1:
		switch b {
		case SOF1:
			d.state = stLen
		case SOF0:
		default:
			d.state = stSOF0
		}
	case stLen:
		if b < 1 || int(b)-1 > MaxPayload {
			d.state = stSOF0
			return Frame{}, false, fmt.Errorf("%w: %d", ErrFrameLength, b)
		}
		d.length = b
		d.cks = b
		d.buf = d.buf[:0]
		d.state = stCmd
	case stCmd:
		d.cmd = b
		d.cks ^= b
		if d.length == 1 {
			d.state = stCks
		} else {
			d.state = stPayload
		}
	case stPayload:
		d.buf = append(d.buf, b)
		d.cks ^= b
		if len(d.buf) == int(d.length)-1 {
			d.state = stCks
		}
	case stCks:
		d.state = stSOF0
		if b != d.cks {
			return Frame{}, false, fmt.Errorf("%w: cmd 0x%02X", ErrChecksum, d.cmd)
		}
		return Frame{Cmd: d.cmd, Payload: append([]byte(nil), d.buf...)}, true, nil
	}
	return Frame{}, false, nil
}
