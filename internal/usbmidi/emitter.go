package usbmidi

import (
	"errors"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
)

// Transport delivers a batch of packets onto the wire.
type Transport interface {
	WritePackets(pkts []Packet) error
}

// ErrNotConnected is returned by transports that currently have no device.
var ErrNotConnected = errors.New("usbmidi: not connected")

const (
	maxChannel = 15
	maxData    = 127
	maxControl = 119 // 120-127 are channel mode messages
)

// Emitter queues note and control packets until Flush. It is used from the
// main cycle only.
type Emitter struct {
	tr    Transport
	cable uint8
	queue []Packet
	log   *slog.Logger
}

// NewEmitter returns an emitter writing to tr on cable 0.
func NewEmitter(tr Transport, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{tr: tr, queue: make([]Packet, 0, 8), log: log}
}

func (e *Emitter) NoteOn(channel, pitch, velocity uint8) {
	if !e.valid("note-on", channel, pitch, velocity, maxData) {
		return
	}
	e.enqueue(midi.NoteOn(channel, pitch, velocity))
}

// NoteOff sends a note-off carrying a release velocity.
func (e *Emitter) NoteOff(channel, pitch, velocity uint8) {
	if !e.valid("note-off", channel, pitch, velocity, maxData) {
		return
	}
	e.enqueue(midi.NoteOffVelocity(channel, pitch, velocity))
}

func (e *Emitter) ControlChange(channel, control, value uint8) {
	if !e.valid("control-change", channel, control, value, maxControl) {
		return
	}
	e.enqueue(midi.ControlChange(channel, control, value))
}

// Pending returns the number of queued packets.
func (e *Emitter) Pending() int { return len(e.queue) }

// Flush writes all queued packets to the transport. The queue is emptied even
// when the write fails; packets are never retried.
func (e *Emitter) Flush() error {
	if len(e.queue) == 0 {
		return nil
	}
	n := len(e.queue)
	err := e.tr.WritePackets(e.queue)
	e.queue = e.queue[:0]
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			e.log.Debug("usbmidi: no device, packets dropped", "count", n)
		} else {
			e.log.Warn("usbmidi: flush failed", "count", n, "err", err)
		}
		return fmt.Errorf("flush %d packets: %w", n, err)
	}
	e.log.Debug("usbmidi: flushed", "count", n)
	return nil
}

func (e *Emitter) valid(kind string, channel, data1, data2, max1 uint8) bool {
	if channel > maxChannel || data1 > max1 || data2 > maxData {
		e.log.Warn("usbmidi: value out of range, message dropped",
			"kind", kind, "channel", channel, "data1", data1, "data2", data2)
		return false
	}
	return true
}

func (e *Emitter) enqueue(msg midi.Message) {
	p, err := FromMessage(e.cable, msg)
	if err != nil {
		e.log.Warn("usbmidi: cannot frame message", "msg", msg.String(), "err", err)
		return
	}
	e.log.Debug("usbmidi: queued", "msg", msg.String(), "packet", p.String())
	e.queue = append(e.queue, p)
}
