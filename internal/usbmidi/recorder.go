package usbmidi

// Recorder is a Transport that keeps the most recent packets in memory. The
// simulator renders from it and tests assert on it.
type Recorder struct {
	Packets []Packet
	Limit   int // 0 keeps everything
	Batches int
	Err     error
}

func (r *Recorder) WritePackets(pkts []Packet) error {
	if r.Err != nil {
		return r.Err
	}
	r.Batches++
	r.Packets = append(r.Packets, pkts...)
	if r.Limit > 0 && len(r.Packets) > r.Limit {
		r.Packets = append(r.Packets[:0], r.Packets[len(r.Packets)-r.Limit:]...)
	}
	return nil
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.Packets = r.Packets[:0]
	r.Batches = 0
}

// Multi writes every batch to each transport in turn. All transports are
// attempted; the first error is returned.
type Multi []Transport

func (m Multi) WritePackets(pkts []Packet) error {
	var first error
	for _, t := range m {
		if err := t.WritePackets(pkts); err != nil && first == nil {
			first = err
		}
	}
	return first
}
