package protocol

// maxCarry caps the framer's carry-over buffer. Anything beyond this is
// stale noise; the oldest bytes are discarded so a jammed line can never
// grow the buffer without bound.
const maxCarry = 8 * PacketLen

// Framer recovers aligned packets from an unsynchronized byte stream. Feed
// it chunks as they arrive from the port; partial packets are carried over
// between calls and corrupt bytes are skipped one at a time until the
// stream realigns.
//
// Framer is not safe for concurrent use; the acquisition loop is its only
// caller.
type Framer struct {
	carry        []byte
	framed       uint64
	droppedBytes uint64
}

// NewFramer returns an empty framer.
func NewFramer() *Framer {
	return &Framer{carry: make([]byte, 0, maxCarry)}
}

// Feed appends data to the carry-over buffer and returns every validated
// packet that can be framed from it. Malformed bytes are dropped silently;
// they are visible only through Dropped.
func (f *Framer) Feed(data []byte) []Packet {
	f.carry = append(f.carry, data...)
	if excess := len(f.carry) - maxCarry; excess > 0 {
		f.carry = f.carry[excess:]
		f.droppedBytes += uint64(excess)
	}

	var pkts []Packet
	for {
		start := f.findStart()
		if start < 0 {
			break
		}
		if start > 0 {
			f.carry = f.carry[start:]
			f.droppedBytes += uint64(start)
		}
		if len(f.carry) < PacketLen {
			break
		}
		if bad := validateIndices(f.carry); bad < PacketLen {
			// The start byte was a false marker or the packet is
			// truncated. Drop up to the offending byte and rescan;
			// bad >= 1 so progress is guaranteed.
			f.carry = f.carry[bad:]
			f.droppedBytes += uint64(bad)
			continue
		}
		var p Packet
		copy(p.raw[:], f.carry[:PacketLen])
		f.carry = f.carry[PacketLen:]
		f.framed++
		pkts = append(pkts, p)
	}
	return pkts
}

// findStart returns the offset of the next start marker in the carry
// buffer, or -1 if none is present. Bytes before the marker are noise.
func (f *Framer) findStart() int {
	for i, b := range f.carry {
		if b == StartByte {
			return i
		}
	}
	// No marker at all: everything buffered is noise.
	f.droppedBytes += uint64(len(f.carry))
	f.carry = f.carry[:0]
	return -1
}

// Pending returns the number of carried-over bytes awaiting more input.
func (f *Framer) Pending() int {
	return len(f.carry)
}

// Framed returns the total number of packets emitted.
func (f *Framer) Framed() uint64 {
	return f.framed
}

// Dropped returns the total number of bytes discarded during
// resynchronization.
func (f *Framer) Dropped() uint64 {
	return f.droppedBytes
}
