package measurement

import "errors"

// ErrKindMismatch is returned by Average when the input mixes physical
// quantities or incompatible units. Averaging volts against ohms is a
// caller bug, not a stream condition to recover from.
var ErrKindMismatch = errors.New("measurement: cannot average mixed kinds or units")

// Averaged is a measurement whose value is the mean of a source set.
// Values preserves the individual contributing base values in order.
type Averaged struct {
	Measurement
	Values []float64
}

// Average combines measurements of one kind into a single averaged
// measurement. Invalid (overload / open-circuit) readings are skipped: they
// contribute neither to the mean nor to Values, but they do not fail the
// call. An empty input yields an Averaged with no value and empty Values,
// since a quiet window is a normal condition. The display value is
// recomputed from the averaged base value rather than averaged separately,
// so mixed display ranges (e.g. mV and V) cannot drift apart.
func Average(ms []Measurement) (Averaged, error) {
	avg := Averaged{Values: []float64{}}
	if len(ms) == 0 {
		return avg, nil
	}

	// The newest measurement supplies kind, unit, range and timestamp.
	avg.Measurement = ms[len(ms)-1]
	avg.Valid = false
	avg.Value = 0
	avg.DisplayValue = 0

	sum := 0.0
	for _, m := range ms {
		if m.Kind != avg.Kind || m.Unit != avg.Unit {
			return Averaged{Values: []float64{}}, ErrKindMismatch
		}
		if !m.Valid {
			continue
		}
		avg.Values = append(avg.Values, m.Value)
		sum += m.Value
	}
	if len(avg.Values) > 0 {
		avg.SetBaseValue(sum / float64(len(avg.Values)))
	}
	return avg, nil
}
