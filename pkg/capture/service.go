// Package capture records the raw packet stream to an append-only log and
// replays such logs as a byte source. The log is line-oriented: capture
// time in unix milliseconds, the packet as hex, and a CRC16/ARC of the
// packet bytes so truncated or corrupted lines can be rejected on replay.
package capture

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sigurn/crc16"

	"github.com/bm-tools/bm257s/pkg/protocol"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Writer appends packets to a capture log.
type Writer struct {
	f *os.File
}

// NewWriter opens (or creates) the capture log at path for appending.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture log: %w", err)
	}
	return &Writer{f: f}, nil
}

// WritePacket appends one packet captured at ts.
func (w *Writer) WritePacket(p protocol.Packet, ts time.Time) error {
	raw := p.Raw()
	sum := crc16.Checksum(raw[:], crcTable)
	_, err := fmt.Fprintf(w.f, "%d %s %04x\n", ts.UnixMilli(), hex.EncodeToString(raw[:]), sum)
	return err
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Record is one replayed log entry.
type Record struct {
	Time   time.Time
	Packet protocol.Packet
}

// parseLine decodes one log line. It returns false for blank, truncated or
// checksum-failing lines.
func parseLine(line string) (Record, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Record{}, false
	}
	ms, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Record{}, false
	}
	raw, err := hex.DecodeString(fields[1])
	if err != nil || len(raw) != protocol.PacketLen {
		return Record{}, false
	}
	sum, err := strconv.ParseUint(fields[2], 16, 16)
	if err != nil || uint16(sum) != crc16.Checksum(raw, crcTable) {
		return Record{}, false
	}
	pkt, ok := protocol.PacketFromBytes(raw)
	if !ok {
		return Record{}, false
	}
	return Record{Time: time.UnixMilli(ms), Packet: pkt}, true
}

// ReadFile loads every intact record from a capture log, skipping damaged
// lines. skipped reports how many lines were rejected.
func ReadFile(path string) (records []Record, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open capture log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return records, skipped, nil
}

// Replay presents a capture log as a byte source: the raw bytes of every
// intact packet, in capture order. It satisfies the meter package's Source
// so recorded sessions can be decoded offline or used in tests. Close may
// race a concurrent Read, the way a serial port's does.
type Replay struct {
	mu     sync.Mutex
	data   []byte
	offset int
	closed bool
}

// OpenReplay loads a capture log for replay.
func OpenReplay(path string) (*Replay, error) {
	records, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(records)*protocol.PacketLen)
	for _, rec := range records {
		raw := rec.Packet.Raw()
		data = append(data, raw[:]...)
	}
	return &Replay{data: data}, nil
}

func (r *Replay) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
