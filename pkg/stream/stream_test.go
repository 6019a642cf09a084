package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bm-tools/bm257s/pkg/measurement"
)

func TestWireMeasurementRoundtrip(t *testing.T) {
	t.Parallel()

	m := measurement.FromDisplay(measurement.Resistance, measurement.UnitOhm, measurement.PrefixKilo, false, 1.002, true)
	m.Timestamp = time.UnixMilli(1723400000123).UTC()
	m.Flags.AutoRange = true

	data := FromMeasurement(m).ToJsonBytes()
	require.NotNil(t, data)

	w := MeasurementFromJsonBytes(data)
	require.NotNil(t, w)
	got := w.Measurement()

	assert.Equal(t, m.Kind, got.Kind)
	assert.Equal(t, m.Unit, got.Unit)
	assert.Equal(t, m.Prefix, got.Prefix)
	assert.True(t, got.Valid)
	assert.InDelta(t, m.Value, got.Value, 1e-9)
	assert.InDelta(t, m.DisplayValue, got.DisplayValue, 1e-9)
	assert.True(t, got.Timestamp.Equal(m.Timestamp))
	assert.True(t, got.Flags.AutoRange)
}

func TestWireMeasurementOverloadHasNullValue(t *testing.T) {
	t.Parallel()

	m := measurement.FromDisplay(measurement.Resistance, measurement.UnitOhm, measurement.PrefixNone, false, 0, false)

	w := FromMeasurement(m)
	assert.Nil(t, w.Value)
	assert.Nil(t, w.DisplayValue)

	got := MeasurementFromJsonBytes(w.ToJsonBytes())
	require.NotNil(t, got)
	assert.False(t, got.Measurement().Valid)
}

func TestMeasurementFromJsonBytesRejectsGarbage(t *testing.T) {
	t.Parallel()

	assert.Nil(t, MeasurementFromJsonBytes([]byte("not json")))
}
