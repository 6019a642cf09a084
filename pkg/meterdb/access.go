package meterdb

import (
	"github.com/bm-tools/bm257s/pkg/measurement"
	"github.com/bm-tools/bm257s/pkg/stream"
)

func InsertMeasurement(reading *MeterDbMeasurement) error {
	db := GetDB()

	_, err := db.Exec(
		"INSERT INTO measurements (timestamp_ms, kind, unit, value, display_value, display_unit) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		reading.TimestampMs,
		reading.Kind,
		reading.Unit,
		reading.Value,
		reading.DisplayValue,
		reading.DisplayUnit,
	)
	if err != nil {
		return err
	}
	return nil
}

// MeasurementToDbRow converts a decoded measurement to its stored form.
// Unsupported readings are not stored; the caller should skip them.
func MeasurementToDbRow(m measurement.Measurement) *MeterDbMeasurement {
	w := stream.FromMeasurement(m)
	return &MeterDbMeasurement{
		TimestampMs:  m.Timestamp.UnixMilli(),
		Kind:         w.Kind,
		Unit:         w.Unit,
		Value:        w.Value,
		DisplayValue: w.DisplayValue,
		DisplayUnit:  w.DisplayUnit,
	}
}
