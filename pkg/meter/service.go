package meter

import (
	"fmt"
	"log"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/bm-tools/bm257s/pkg/interpreter"
	"github.com/bm-tools/bm257s/pkg/measurement"
	"github.com/bm-tools/bm257s/pkg/protocol"
)

// BaudRate is fixed by the BM257s: 9600 8N1.
const BaudRate = 9600

// readChunkSize is how many bytes the loop requests per source read; a few
// packets' worth keeps latency low without hammering the port.
const readChunkSize = 4 * protocol.PacketLen

// NewReader wraps an already-open byte source. The reader takes ownership
// of the source: Stop closes it.
func NewReader(src Source, cfg Config) *Reader {
	return &Reader{
		src:    src,
		cfg:    cfg,
		framer: protocol.NewFramer(),
		buf:    NewBuffer(cfg.Window),
		done:   make(chan struct{}),
	}
}

// Open opens the serial device the meter is attached to and returns a
// reader for it. ReadTimeout bounds each blocking read on the port.
func Open(device string, cfg Config) (*Reader, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	options := serial.OpenOptions{
		PortName:              device,
		BaudRate:              BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: uint(cfg.ReadTimeout.Milliseconds()),
		MinimumReadSize:       0,
	}
	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return NewReader(port, cfg), nil
}

// Start launches the background read loop. A reader runs at most once:
// starting while running returns ErrAlreadyRunning, and a stopped reader
// cannot be restarted because Stop releases the source.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrNotStartable
	}
	r.state = StateRunning
	go r.run()
	return nil
}

// Stop signals the loop to exit, force-closes the source to unblock any
// pending read, waits for the loop to finish and wakes all blocked Wait
// callers. It is idempotent; stopping a never-started reader just releases
// the source.
func (r *Reader) Stop() {
	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	wasRunning := r.state == StateRunning
	r.state = StateStopped
	r.stopping = true
	r.mu.Unlock()

	r.closeSource()
	if wasRunning {
		<-r.done
	}
	r.buf.Close()
}

func (r *Reader) closeSource() {
	r.closeOnce.Do(func() {
		r.src.Close()
	})
}

// Close is an alias for Stop, satisfying io.Closer for scoped use with
// defer.
func (r *Reader) Close() error {
	r.Stop()
	return nil
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the source error that terminated the loop, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readErr
}

// Dropped returns the number of stream bytes discarded during framing
// resynchronization.
func (r *Reader) Dropped() uint64 {
	return r.framer.Dropped()
}

// run is the background loop: read a chunk, frame, decode, buffer, repeat
// until stopped or the source fails.
func (r *Reader) run() {
	defer close(r.done)

	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.src.Read(chunk)
		if n > 0 {
			for _, pkt := range r.framer.Feed(chunk[:n]) {
				now := time.Now()
				if r.cfg.Capture != nil {
					if werr := r.cfg.Capture.WritePacket(pkt, now); werr != nil {
						log.Printf("capture write failed: %v", werr)
					}
				}
				r.buf.Append(interpreter.Decode(pkt, now))
			}
		}
		if err != nil {
			r.mu.Lock()
			if !r.stopping {
				// Disconnect or hard port failure: terminal for
				// the engine, visible once through Err/State.
				r.readErr = fmt.Errorf("source read failed: %w", err)
				r.state = StateStopped
				log.Printf("meter source read failed, stopping: %v", err)
			}
			r.mu.Unlock()
			r.closeSource()
			r.buf.Close()
			return
		}
		// n == 0 with a nil error is a read timeout on a quiet line;
		// loop around so a stop request is noticed promptly.
	}
}

// Wait blocks until a measurement newer than the caller's last Read/ReadAll
// arrives, the reader stops, or the timeout elapses (timeout <= 0 waits
// indefinitely). It returns true only when new data is available.
func (r *Reader) Wait(timeout time.Duration) bool {
	r.mu.Lock()
	seen := r.observed
	r.mu.Unlock()
	return r.buf.WaitAfter(seen, timeout)
}

// Read returns the most recent measurement without blocking or consuming
// it. ok is false while nothing has been decoded yet.
func (r *Reader) Read() (m measurement.Measurement, ok bool) {
	latest, seq, ok := r.buf.Latest()
	if !ok {
		return measurement.Measurement{}, false
	}
	r.markObserved(seq)
	return latest, true
}

// ReadAll returns a snapshot of every measurement retained in the window,
// oldest first. The buffer is not consumed; successive calls overlap as
// the window slides.
func (r *Reader) ReadAll() []measurement.Measurement {
	ms, seq := r.buf.Snapshot()
	r.markObserved(seq)
	return ms
}

// Latest is Read without advancing the Wait cursor, for observers that
// should not disturb a Wait/Read consumer loop.
func (r *Reader) Latest() (m measurement.Measurement, ok bool) {
	latest, _, ok := r.buf.Latest()
	return latest, ok
}

// Snapshot is ReadAll without advancing the Wait cursor.
func (r *Reader) Snapshot() []measurement.Measurement {
	ms, _ := r.buf.Snapshot()
	return ms
}

func (r *Reader) markObserved(seq uint64) {
	r.mu.Lock()
	if seq > r.observed {
		r.observed = seq
	}
	r.mu.Unlock()
}
