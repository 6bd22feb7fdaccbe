package usbmidi

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultPreferred are output ports picked first when present.
var DefaultPreferred = []string{"Arduino", "Pico", "USB MIDI"}

// DefaultExcluded are virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

const rescanInterval = 1000 * time.Millisecond

// WatcherOptions selects which output port the watcher connects to.
type WatcherOptions struct {
	Preferred []string
	Excluded  []string
}

// Watcher keeps a connection to the preferred MIDI output port and forwards
// packets to it. It handles hot-plug (port appears) and hot-unplug (port
// disappears); while no port is connected packets are dropped.
//
// Tick is driven from a slow ticker; WritePackets is called by the main
// cycle. Both are safe to call concurrently.
type Watcher struct {
	mu           sync.Mutex
	drv          drivers.Driver
	out          drivers.Out
	connected    bool
	selectedName string
	lastRescanAt time.Time

	opts WatcherOptions
	log  *slog.Logger
	now  func() time.Time
}

// NewWatcher creates a watcher on drv. Call Close when done; it closes drv.
func NewWatcher(drv drivers.Driver, opts WatcherOptions, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.Preferred == nil {
		opts.Preferred = DefaultPreferred
	}
	if opts.Excluded == nil {
		opts.Excluded = DefaultExcluded
	}
	return &Watcher{drv: drv, opts: opts, log: log, now: time.Now}
}

// Close shuts down the active connection and the driver.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeConn()
	if err := w.drv.Close(); err != nil {
		w.log.Warn("midi: driver close failed", "err", err)
	}
}

// Connected returns the selected port name, if any.
func (w *Watcher) Connected() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}

// Tick scans for ports at most once per rescan interval, auto-connects to a
// preferred one and detects disappearances.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < rescanInterval {
		return
	}
	w.lastRescanAt = now

	outputs := w.listOutputs()

	if w.connected {
		for _, n := range outputs {
			if n == w.selectedName {
				return
			}
		}
		w.log.Warn("midi: output disappeared", "device", w.selectedName)
		w.closeConn()
		w.lastRescanAt = time.Time{} // rescan immediately next tick
		return
	}

	if len(outputs) == 0 {
		return
	}
	cand, ok := w.pickPreferred(outputs)
	if !ok {
		w.log.Debug("midi: no preferred output", "available", strings.Join(outputs, ", "))
		return
	}
	if err := w.openByName(cand); err != nil {
		w.log.Error("midi: connect failed", "device", cand, "err", err)
	}
}

// WritePackets sends every packet to the connected port.
func (w *Watcher) WritePackets(pkts []Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.connected {
		return ErrNotConnected
	}
	for _, p := range pkts {
		if err := w.out.Send(p.Message()); err != nil {
			w.log.Warn("midi: send failed, dropping connection", "device", w.selectedName, "err", err)
			w.closeConn()
			w.lastRescanAt = time.Time{}
			return fmt.Errorf("send to %q: %w", w.selectedName, err)
		}
	}
	return nil
}

// Outputs lists the output ports visible to drv, excluded ports included.
func Outputs(drv drivers.Driver) ([]string, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outs))
	for _, o := range outs {
		names = append(names, o.String())
	}
	return names, nil
}

// -------------------- internal --------------------

func (w *Watcher) listOutputs() []string {
	all, err := Outputs(w.drv)
	if err != nil {
		w.log.Error("midi: list outputs failed", "err", err)
		return nil
	}
	var names []string
	for _, name := range all {
		if matchesAny(name, w.opts.Excluded) {
			w.log.Debug("midi: output excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	w.log.Debug("midi: outputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func (w *Watcher) pickPreferred(outputs []string) (string, bool) {
	for _, pat := range w.opts.Preferred {
		for _, name := range outputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(outputs) == 1 {
		return outputs[0], true
	}
	return "", false
}

func (w *Watcher) closeConn() {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	w.connected = false
	w.selectedName = ""
}

func (w *Watcher) openByName(name string) error {
	outs, err := w.drv.Outs()
	if err != nil {
		return err
	}
	var found drivers.Out
	for _, o := range outs {
		if o.String() == name {
			found = o
			break
		}
	}
	if found == nil {
		return fmt.Errorf("output %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	w.out = found
	w.connected = true
	w.selectedName = name
	w.log.Info("midi: connected", "device", name)
	return nil
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
