package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bm-tools/bm257s/pkg/measurement"
)

func reading(ts time.Time, v float64) measurement.Measurement {
	m := measurement.FromDisplay(measurement.Voltage, measurement.UnitVolt, measurement.PrefixNone, false, v, true)
	m.Timestamp = ts
	return m
}

func TestBufferLatestOnly(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0)
	base := time.Now()
	b.Append(reading(base, 1))
	b.Append(reading(base.Add(time.Second), 2))
	b.Append(reading(base.Add(2*time.Second), 3))

	assert.Equal(t, 1, b.Len())
	m, seq, ok := b.Latest()
	require.True(t, ok)
	assert.InDelta(t, 3.0, m.Value, 1e-9)
	assert.Equal(t, uint64(3), seq)
}

func TestBufferWindowEviction(t *testing.T) {
	t.Parallel()

	b := NewBuffer(time.Second)
	base := time.Now()
	b.Append(reading(base, 1))
	b.Append(reading(base.Add(500*time.Millisecond), 2))
	b.Append(reading(base.Add(1200*time.Millisecond), 3))

	ms, _ := b.Snapshot()
	require.Len(t, ms, 2)
	assert.InDelta(t, 2.0, ms[0].Value, 1e-9)
	assert.InDelta(t, 3.0, ms[1].Value, 1e-9)
}

func TestBufferKeepsNewestOutsideWindow(t *testing.T) {
	t.Parallel()

	// A long gap between readings must never empty the buffer; the newest
	// reading is always retained.
	b := NewBuffer(time.Second)
	base := time.Now()
	b.Append(reading(base, 1))
	b.Append(reading(base.Add(time.Hour), 2))

	ms, _ := b.Snapshot()
	require.Len(t, ms, 1)
	assert.InDelta(t, 2.0, ms[0].Value, 1e-9)
}

func TestBufferEmpty(t *testing.T) {
	t.Parallel()

	b := NewBuffer(time.Second)
	_, seq, ok := b.Latest()
	assert.False(t, ok)
	assert.Zero(t, seq)
	ms, _ := b.Snapshot()
	assert.Empty(t, ms)
}

func TestBufferWaitAfter(t *testing.T) {
	t.Parallel()

	t.Run("times out without new data", func(t *testing.T) {
		t.Parallel()
		b := NewBuffer(time.Second)
		assert.False(t, b.WaitAfter(b.Seq(), 20*time.Millisecond))
	})

	t.Run("returns immediately when newer data exists", func(t *testing.T) {
		t.Parallel()
		b := NewBuffer(time.Second)
		b.Append(reading(time.Now(), 1))
		assert.True(t, b.WaitAfter(0, 20*time.Millisecond))
	})

	t.Run("wakes on append", func(t *testing.T) {
		t.Parallel()
		b := NewBuffer(time.Second)
		seen := b.Seq()

		done := make(chan bool, 1)
		go func() {
			done <- b.WaitAfter(seen, 5*time.Second)
		}()

		time.Sleep(10 * time.Millisecond)
		b.Append(reading(time.Now(), 1))

		select {
		case ok := <-done:
			assert.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("WaitAfter did not wake on append")
		}
	})

	t.Run("close wakes waiters with false", func(t *testing.T) {
		t.Parallel()
		b := NewBuffer(time.Second)

		done := make(chan bool, 1)
		go func() {
			done <- b.WaitAfter(b.Seq(), 0)
		}()

		time.Sleep(10 * time.Millisecond)
		b.Close()

		select {
		case ok := <-done:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("WaitAfter did not wake on close")
		}
	})
}
