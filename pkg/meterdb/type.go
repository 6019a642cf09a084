package meterdb

// MeterDbMeasurement is a single decoded reading as stored.
// Value and DisplayValue are NULL for overload / open-circuit readings.
type MeterDbMeasurement struct {
	TimestampMs  int64    `db:"timestamp_ms"`
	Kind         string   `db:"kind"`
	Unit         string   `db:"unit"`
	Value        *float64 `db:"value"`
	DisplayValue *float64 `db:"display_value"`
	DisplayUnit  string   `db:"display_unit"`
}

// AggregateMeasurementHourly is a computed per-hour summary of the raw
// readings, grouped by kind and unit. AvgValue is in base units.
type AggregateMeasurementHourly struct {
	HourStart   int64   `db:"hour_start"`
	Kind        string  `db:"kind"`
	Unit        string  `db:"unit"`
	AvgValue    float64 `db:"avg_value"`
	MinValue    float64 `db:"min_value"`
	MaxValue    float64 `db:"max_value"`
	SampleCount uint32  `db:"sample_count"`
}
