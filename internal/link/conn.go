package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/chase3718/lou-buttons/internal/led"
	"github.com/chase3718/lou-buttons/internal/usbmidi"
)

const readTimeout = 100 * time.Millisecond

// Options configures a Conn.
type Options struct {
	LEDs int // number of LED duty slots
	// IdleMask is reported until the first pin frame arrives, so buttons
	// start at rest.
	IdleMask uint16
}

// Conn is a serial connection to the I/O board. Listen runs the reader in its
// own goroutine; everything else is called from the main cycle.
type Conn struct {
	port io.ReadWriteCloser
	log  *slog.Logger

	mask   atomic.Uint32
	frames atomic.Uint64

	wmu   sync.Mutex
	duty  []byte
	sent  []byte
	dirty bool
	seq   byte
}

// Open opens the named serial device at the given baud rate.
func Open(name string, baud int, opts Options, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	log.Info("link: port opened", "device", name, "baud", baud)
	return NewConn(p, opts, log), nil
}

// Ports lists the serial devices present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// NewConn wraps an already open port.
func NewConn(port io.ReadWriteCloser, opts Options, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		port:  port,
		log:   log,
		duty:  make([]byte, opts.LEDs),
		dirty: true,
	}
	c.mask.Store(uint32(opts.IdleMask))
	return c
}

// Listen reads pin frames until ctx is done or the port is closed.
func (c *Conn) Listen(ctx context.Context) error {
	var dec Decoder
	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			f, ok, ferr := dec.Feed(b)
			if ferr != nil {
				c.log.Warn("link: frame dropped", "err", ferr)
				continue
			}
			if ok {
				c.handle(f)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("link: read: %w", err)
		}
	}
}

func (c *Conn) handle(f Frame) {
	if f.Cmd != CmdPinState {
		c.log.Debug("link: unexpected frame", "cmd", f.Cmd)
		return
	}
	ps, err := ParsePinState(f)
	if err != nil {
		c.log.Warn("link: bad pin frame", "err", err)
		return
	}
	c.mask.Store(uint32(ps.Mask))
	c.frames.Add(1)
}

// Level returns the last reported level of pin.
func (c *Conn) Level(pin int) bool {
	if pin < 0 || pin > 15 {
		return false
	}
	return c.mask.Load()&(1<<uint(pin)) != 0
}

// Frames returns the number of pin frames received.
func (c *Conn) Frames() uint64 { return c.frames.Load() }

// LED returns the output writing into duty slot.
func (c *Conn) LED(slot int) led.Output {
	return led.OutputFunc(func(v uint8) {
		if slot < 0 || slot >= len(c.duty) {
			return
		}
		if c.duty[slot] != v {
			c.duty[slot] = v
			c.dirty = true
		}
	})
}

// FlushLEDs sends the LED frame if any duty changed since the last one.
func (c *Conn) FlushLEDs() error {
	if !c.dirty && bytes.Equal(c.duty, c.sent) {
		return nil
	}
	f := LEDFrame{Duty: c.duty, Seq: c.seq}
	if err := c.write(f.Frame()); err != nil {
		return err
	}
	c.sent = append(c.sent[:0], c.duty...)
	c.dirty = false
	c.seq++
	return nil
}

// Blackout turns every LED off immediately.
func (c *Conn) Blackout() error {
	for i := range c.duty {
		c.duty[i] = 0
	}
	c.dirty = true
	return c.FlushLEDs()
}

// WritePackets forwards USB-MIDI packets to the board, which relays them on
// its native USB port.
func (c *Conn) WritePackets(pkts []usbmidi.Packet) error {
	const perFrame = MaxPayload / 4
	for len(pkts) > 0 {
		n := min(len(pkts), perFrame)
		payload := make([]byte, 0, n*4)
		for _, p := range pkts[:n] {
			payload = append(payload, p[:]...)
		}
		if err := c.write(Frame{Cmd: CmdMIDI, Payload: payload}); err != nil {
			return err
		}
		pkts = pkts[n:]
	}
	return nil
}

func (c *Conn) write(f Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	data := f.Encode()
	n, err := c.port.Write(data)
	if err != nil {
		return fmt.Errorf("link: write: %w", err)
	}
	c.log.Debug("link: frame sent", "cmd", f.Cmd, "bytes", n)
	return nil
}

// Close closes the underlying port.
func (c *Conn) Close() error {
	c.log.Info("link: closing port")
	return c.port.Close()
}
