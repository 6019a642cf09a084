// Package meter runs the acquisition loop against a BM257s byte source and
// serves the decoded measurements to consumers. One background goroutine
// owns the source; consumers use Wait/Read/ReadAll and never perform I/O.
package meter

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bm-tools/bm257s/pkg/capture"
	"github.com/bm-tools/bm257s/pkg/protocol"
)

var (
	ErrAlreadyRunning = errors.New("meter: reader already running")
	ErrNotStartable   = errors.New("meter: reader already stopped")
)

// Source is the byte stream the meter transmits on. Close must unblock a
// concurrent Read; serial ports and net connections both behave this way.
type Source interface {
	io.Reader
	io.Closer
}

// State tracks the reader lifecycle.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config controls acquisition behavior.
type Config struct {
	// Window is how long measurements are retained for ReadAll.
	// Zero keeps only the most recent measurement.
	Window time.Duration
	// ReadTimeout caps each blocking source read so the loop can notice
	// a stop request even on a quiet line.
	ReadTimeout time.Duration
	// Capture, when set, receives every validated raw packet.
	Capture *capture.Writer
}

// Reader drives the read/frame/decode loop. The zero value is not usable;
// construct with NewReader or Open.
type Reader struct {
	src    Source
	cfg    Config
	framer *protocol.Framer
	buf    *Buffer

	mu       sync.Mutex
	state    State
	stopping bool
	readErr  error
	// observed is the sequence number last returned to a consumer via
	// Read or ReadAll; Wait reports new data relative to it.
	observed uint64

	// closeOnce guards src.Close: both Stop and the read loop's error path
	// release the source, whichever comes first.
	closeOnce sync.Once
	done      chan struct{}
}
