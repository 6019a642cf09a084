package meter

import (
	"sync"
	"time"

	"github.com/bm-tools/bm257s/pkg/measurement"
)

// Buffer holds the most recent measurements inside a trailing time window.
// With a zero window only the single latest measurement is kept. One writer
// (the read loop) appends; any number of readers take snapshots. Every
// append bumps a sequence number, which Wait uses as an edge-triggered
// "new data since" signal that cannot be cleared by a racing reader.
type Buffer struct {
	mu      sync.Mutex
	window  time.Duration
	entries []measurement.Measurement
	seq     uint64
	closed  bool
	notify  chan struct{}
}

// NewBuffer returns an empty buffer retaining measurements for window
// (0 = latest-only).
func NewBuffer(window time.Duration) *Buffer {
	return &Buffer{
		window: window,
		notify: make(chan struct{}),
	}
}

// Append adds m and evicts entries that fall outside the window relative to
// m's capture time.
func (b *Buffer) Append(m measurement.Measurement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.window <= 0 {
		b.entries = b.entries[:0]
		b.entries = append(b.entries, m)
	} else {
		b.entries = append(b.entries, m)
		cutoff := m.Timestamp.Add(-b.window)
		i := 0
		for i < len(b.entries)-1 && b.entries[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			b.entries = append(b.entries[:0], b.entries[i:]...)
		}
	}

	b.seq++
	b.wake()
}

// Latest returns the newest measurement and the sequence number it was
// observed at. ok is false while the buffer is empty.
func (b *Buffer) Latest() (m measurement.Measurement, seq uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return measurement.Measurement{}, b.seq, false
	}
	return b.entries[len(b.entries)-1], b.seq, true
}

// Snapshot returns a copy of the retained measurements, oldest first, plus
// the sequence number of the snapshot. The buffer is not cleared; the
// window slides on its own.
func (b *Buffer) Snapshot() ([]measurement.Measurement, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]measurement.Measurement, len(b.entries))
	copy(out, b.entries)
	return out, b.seq
}

// Len returns the number of retained measurements.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Seq returns the current sequence number.
func (b *Buffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// WaitAfter blocks until the sequence number exceeds seen, the buffer is
// closed, or the timeout elapses (timeout <= 0 waits indefinitely). It
// returns true only when newer data is present.
func (b *Buffer) WaitAfter(seen uint64, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		b.mu.Lock()
		if b.seq > seen {
			b.mu.Unlock()
			return true
		}
		if b.closed {
			b.mu.Unlock()
			return false
		}
		ch := b.notify
		b.mu.Unlock()

		select {
		case <-ch:
		case <-deadline:
			return false
		}
	}
}

// Close wakes all waiters permanently; subsequent WaitAfter calls that see
// no newer data return false immediately.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.wake()
}

// wake must be called with the lock held.
func (b *Buffer) wake() {
	close(b.notify)
	b.notify = make(chan struct{})
}
