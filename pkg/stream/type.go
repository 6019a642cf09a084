// Package stream carries measurements between processes over websockets:
// the hub broadcasts readings from the acquisition service, the listener
// consumes them with automatic reconnection.
package stream

import (
	"encoding/json"
	"log"
	"time"

	"github.com/bm-tools/bm257s/pkg/measurement"
)

// WireMeasurement is the JSON form of a measurement on the websocket.
// Value and DisplayValue are null for overload / open-circuit readings.
type WireMeasurement struct {
	Timestamp    time.Time         `json:"timestamp"`
	Kind         string            `json:"kind"`
	Unit         string            `json:"unit"`
	Prefix       string            `json:"prefix,omitempty"`
	Fahrenheit   bool              `json:"fahrenheit,omitempty"`
	Value        *float64          `json:"value"`
	DisplayValue *float64          `json:"display_value"`
	DisplayUnit  string            `json:"display_unit"`
	Flags        measurement.Flags `json:"flags"`
}

// FromMeasurement converts a decoded measurement to its wire form.
func FromMeasurement(m measurement.Measurement) WireMeasurement {
	w := WireMeasurement{
		Timestamp:   m.Timestamp,
		Kind:        m.Kind.String(),
		Unit:        string(m.Unit),
		Prefix:      string(m.Prefix),
		Fahrenheit:  m.Fahrenheit,
		DisplayUnit: m.DisplayUnit(),
		Flags:       m.Flags,
	}
	if m.Valid {
		v := m.Value
		dv := m.DisplayValue
		w.Value = &v
		w.DisplayValue = &dv
	}
	return w
}

// Measurement converts the wire form back to a measurement.
func (w WireMeasurement) Measurement() measurement.Measurement {
	m := measurement.Measurement{
		Kind:       measurement.KindFromString(w.Kind),
		Unit:       measurement.Unit(w.Unit),
		Prefix:     measurement.Prefix(w.Prefix),
		Fahrenheit: w.Fahrenheit,
		Timestamp:  w.Timestamp,
		Flags:      w.Flags,
	}
	if w.Value != nil {
		m.Valid = true
		m.Value = *w.Value
		if w.DisplayValue != nil {
			m.DisplayValue = *w.DisplayValue
		}
	}
	return m
}

// ToJsonBytes serializes the wire measurement, or nil on failure.
func (w WireMeasurement) ToJsonBytes() []byte {
	data, err := json.Marshal(w)
	if err != nil {
		log.Printf("Failed to marshal measurement: %v", err)
		return nil
	}
	return data
}

// MeasurementFromJsonBytes parses a wire measurement, or nil on failure.
func MeasurementFromJsonBytes(data []byte) *WireMeasurement {
	var w WireMeasurement
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	return &w
}
