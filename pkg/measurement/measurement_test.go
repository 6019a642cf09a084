package measurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDisplay(t *testing.T) {
	t.Parallel()

	t.Run("prefix scales to base unit", func(t *testing.T) {
		t.Parallel()
		m := FromDisplay(Resistance, UnitOhm, PrefixKilo, false, 1.002, true)
		assert.InDelta(t, 1002.0, m.Value, 1e-6)
		assert.InDelta(t, 1.002, m.DisplayValue, 1e-9)
		assert.Equal(t, "kΩ", m.DisplayUnit())
	})

	t.Run("fahrenheit converts affinely", func(t *testing.T) {
		t.Parallel()
		m := FromDisplay(Temperature, UnitCelsius, PrefixNone, true, 67, true)
		assert.InDelta(t, 19.4444, m.Value, 1e-4)
		assert.InDelta(t, 67.0, m.DisplayValue, 1e-9)
		assert.Equal(t, "°F", m.DisplayUnit())
	})

	t.Run("invalid reading carries no value", func(t *testing.T) {
		t.Parallel()
		m := FromDisplay(Resistance, UnitOhm, PrefixMega, false, 123, false)
		assert.False(t, m.Valid)
		assert.Zero(t, m.Value)
		assert.Zero(t, m.DisplayValue)
	})
}

func TestMeasurementString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "150mV",
		FromDisplay(Voltage, UnitVolt, PrefixMilli, false, 150, true).String())
	assert.Equal(t, "OL",
		FromDisplay(Resistance, UnitOhm, PrefixNone, false, 0, false).String())
	assert.Equal(t, "---°C",
		FromDisplay(Temperature, UnitCelsius, PrefixNone, false, 0, false).String())
}

func TestAverage(t *testing.T) {
	t.Parallel()

	volts := func(v float64) Measurement {
		return FromDisplay(Voltage, UnitVolt, PrefixNone, false, v, true)
	}

	t.Run("empty input yields empty average", func(t *testing.T) {
		t.Parallel()
		avg, err := Average(nil)
		require.NoError(t, err)
		assert.False(t, avg.Valid)
		assert.Empty(t, avg.Values)
	})

	t.Run("mean of base values", func(t *testing.T) {
		t.Parallel()
		avg, err := Average([]Measurement{volts(1), volts(3)})
		require.NoError(t, err)
		require.True(t, avg.Valid)
		assert.InDelta(t, 2.0, avg.Value, 1e-9)
		assert.Equal(t, []float64{1, 3}, avg.Values)
	})

	t.Run("invalid readings are skipped", func(t *testing.T) {
		t.Parallel()
		overload := FromDisplay(Voltage, UnitVolt, PrefixNone, false, 0, false)
		avg, err := Average([]Measurement{volts(1), overload, volts(3)})
		require.NoError(t, err)
		require.True(t, avg.Valid)
		assert.InDelta(t, 2.0, avg.Value, 1e-9)
		assert.Len(t, avg.Values, 2)
	})

	t.Run("only invalid readings yield no value", func(t *testing.T) {
		t.Parallel()
		overload := FromDisplay(Voltage, UnitVolt, PrefixNone, false, 0, false)
		avg, err := Average([]Measurement{overload, overload})
		require.NoError(t, err)
		assert.False(t, avg.Valid)
		assert.Empty(t, avg.Values)
	})

	t.Run("mixed kinds are rejected", func(t *testing.T) {
		t.Parallel()
		ohms := FromDisplay(Resistance, UnitOhm, PrefixNone, false, 10, true)
		_, err := Average([]Measurement{volts(1), ohms})
		assert.ErrorIs(t, err, ErrKindMismatch)
	})

	t.Run("ac and dc volts are incompatible", func(t *testing.T) {
		t.Parallel()
		ac := FromDisplay(Voltage, UnitVoltRMS, PrefixNone, false, 230, true)
		_, err := Average([]Measurement{volts(1), ac})
		assert.ErrorIs(t, err, ErrKindMismatch)
	})

	t.Run("display value follows the newest range", func(t *testing.T) {
		t.Parallel()
		// 100 mV and 300 mV average to 0.2 V base, shown as 200 on the
		// millivolt range.
		mv := func(v float64) Measurement {
			return FromDisplay(Voltage, UnitVolt, PrefixMilli, false, v, true)
		}
		avg, err := Average([]Measurement{mv(100), mv(300)})
		require.NoError(t, err)
		assert.InDelta(t, 0.2, avg.Value, 1e-9)
		assert.InDelta(t, 200.0, avg.DisplayValue, 1e-9)
		assert.Equal(t, "mV", avg.DisplayUnit())
	})
}
