package capture

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bm-tools/bm257s/pkg/protocol"
)

// Captured transmissions: 513.6 V AC, 1.002 kOhm.
const (
	hexACVoltage  = "021a203c47506a788f9fa7b0c0d0e5"
	hexResistance = "021820304a5f6b7e8b9aadb1c4d0e1"
)

func testPacket(t *testing.T, s string) protocol.Packet {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	p, ok := protocol.PacketFromBytes(data)
	require.True(t, ok)
	return p
}

func TestCaptureRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.log")
	t0 := time.UnixMilli(1723400000123)
	t1 := t0.Add(250 * time.Millisecond)

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(testPacket(t, hexACVoltage), t0))
	require.NoError(t, w.WritePacket(testPacket(t, hexResistance), t1))
	require.NoError(t, w.Close())

	records, skipped, err := ReadFile(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, t0, records[0].Time)
	assert.Equal(t, t1, records[1].Time)
	assert.Equal(t, testPacket(t, hexResistance), records[1].Packet)
}

func TestCaptureAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.log")
	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.WritePacket(testPacket(t, hexACVoltage), time.UnixMilli(int64(i))))
		require.NoError(t, w.Close())
	}

	records, skipped, err := ReadFile(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Len(t, records, 2)
}

func TestReadFileSkipsDamagedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(testPacket(t, hexACVoltage), time.UnixMilli(1)))
	require.NoError(t, w.Close())

	// Simulate a crash mid-write plus stray corruption.
	damage := "1 " + hexResistance + "\n" + // missing checksum field
		"2 " + hexResistance + " ffff\n" + // wrong checksum
		"garbage\n" +
		"3 " + hexResistance[:10] + " 0000\n" // truncated packet
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(damage)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, skipped, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, testPacket(t, hexACVoltage), records[0].Packet)
}

func TestReplayAsByteSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(testPacket(t, hexACVoltage), time.UnixMilli(1)))
	require.NoError(t, w.WritePacket(testPacket(t, hexResistance), time.UnixMilli(2)))
	require.NoError(t, w.Close())

	r, err := OpenReplay(path)
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, data, 2*protocol.PacketLen)

	f := protocol.NewFramer()
	pkts := f.Feed(data)
	require.Len(t, pkts, 2)
	assert.Equal(t, testPacket(t, hexACVoltage), pkts[0])

	// Exhausted and closed replays both report EOF.
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())
}

func TestReplayConcurrentClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.log")
	w, err := NewWriter(path)
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		require.NoError(t, w.WritePacket(testPacket(t, hexACVoltage), time.UnixMilli(int64(i))))
	}
	require.NoError(t, w.Close())

	r, err := OpenReplay(path)
	require.NoError(t, err)

	// A reader loop races Close, as the acquisition engine's Stop does
	// against its read goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 7)
		for {
			if _, err := r.Read(buf); err != nil {
				return
			}
		}
	}()

	require.NoError(t, r.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not observe Close")
	}

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
