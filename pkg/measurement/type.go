// Package measurement defines the typed readings produced from decoded
// meter packets, and the averaging used when monitoring over a time window.
package measurement

import (
	"fmt"
	"math"
	"time"
)

// Kind is the physical quantity a measurement describes.
type Kind uint8

const (
	// Unsupported marks a structurally valid packet whose measuring mode
	// this library does not decode (current, capacitance, setup screens).
	Unsupported Kind = iota
	Voltage
	Resistance
	Temperature
	Frequency
	// Diode is a voltage reading taken in diode test mode.
	Diode
)

func (k Kind) String() string {
	switch k {
	case Voltage:
		return "Voltage"
	case Resistance:
		return "Resistance"
	case Temperature:
		return "Temperature"
	case Frequency:
		return "Frequency"
	case Diode:
		return "Diode"
	default:
		return "Unsupported"
	}
}

// KindFromString is the inverse of Kind.String; unknown names map to
// Unsupported.
func KindFromString(s string) Kind {
	switch s {
	case "Voltage":
		return Voltage
	case "Resistance":
		return Resistance
	case "Temperature":
		return Temperature
	case "Frequency":
		return Frequency
	case "Diode":
		return Diode
	default:
		return Unsupported
	}
}

// Unit is a base unit readings are normalized to. AC quantities carry their
// own unit so that AC and DC readings are never averaged together.
type Unit string

const (
	UnitNone    Unit = ""
	UnitVolt    Unit = "V"
	UnitVoltRMS Unit = "Vrms"
	UnitOhm     Unit = "Ω"
	UnitCelsius Unit = "°C"
	UnitHertz   Unit = "Hz"
)

// Prefix is the metric prefix shown on the meter's range indicator.
type Prefix string

const (
	PrefixNone  Prefix = ""
	PrefixKilo  Prefix = "k"
	PrefixMega  Prefix = "M"
	PrefixMilli Prefix = "m"
	PrefixMicro Prefix = "u"
	PrefixNano  Prefix = "n"
)

var prefixFactors = map[Prefix]float64{
	PrefixNone:  1.0,
	PrefixKilo:  1.0e3,
	PrefixMega:  1.0e6,
	PrefixMilli: 1.0e-3,
	PrefixMicro: 1.0e-6,
	PrefixNano:  1.0e-9,
}

// Factor returns the multiplier from displayed magnitude to base unit.
func (p Prefix) Factor() float64 {
	if f, ok := prefixFactors[p]; ok {
		return f
	}
	return 1.0
}

// displayPrecision bounds rounding when a display value is recomputed from
// a base value. The BM257s is a 6000-count meter.
const displayPrecision = 4

// Flags carries the secondary annunciators attached to a reading.
type Flags struct {
	AutoRange  bool `json:"auto_range"`
	Relative   bool `json:"relative"`
	Hold       bool `json:"hold"`
	Recording  bool `json:"recording"`
	Min        bool `json:"min"`
	Max        bool `json:"max"`
	Crest      bool `json:"crest"`
	LowBattery bool `json:"low_battery"`
}

// Measurement is one decoded reading. Value/Unit are in the quantity's base
// unit; DisplayValue carries the magnitude exactly as shown on the meter in
// the scaled range unit. Valid is false when the meter shows an overload or
// open-circuit glyph ("0.L", "---"): the kind and unit still apply but no
// numeric value does.
type Measurement struct {
	Kind   Kind
	Unit   Unit
	Prefix Prefix
	// Fahrenheit marks a temperature displayed in °F; the base value is
	// always °C.
	Fahrenheit bool

	Value        float64
	DisplayValue float64
	Valid        bool

	Timestamp time.Time
	Flags     Flags
}

// FromDisplay builds a measurement from the magnitude shown on the meter,
// deriving the base value through the prefix scale factor, or the affine
// Fahrenheit conversion for temperatures.
func FromDisplay(kind Kind, unit Unit, prefix Prefix, fahrenheit bool, display float64, valid bool) Measurement {
	m := Measurement{
		Kind:       kind,
		Unit:       unit,
		Prefix:     prefix,
		Fahrenheit: fahrenheit,
		Valid:      valid,
	}
	if valid {
		m.DisplayValue = display
		m.Value = displayToBase(display, prefix, fahrenheit)
	}
	return m
}

// DisplayUnit returns the scaled unit string as shown on the meter,
// e.g. "kΩ", "mV" or "°F".
func (m Measurement) DisplayUnit() string {
	if m.Kind == Temperature {
		if m.Fahrenheit {
			return "°F"
		}
		return "°C"
	}
	return string(m.Prefix) + string(m.Unit)
}

// SetBaseValue replaces the base value and recomputes the display value
// through the same conversion used at decode time.
func (m *Measurement) SetBaseValue(v float64) {
	m.Value = v
	m.Valid = true
	m.DisplayValue = roundTo(baseToDisplay(v, m.Prefix, m.Fahrenheit), displayPrecision)
}

func (m Measurement) String() string {
	if !m.Valid {
		switch m.Kind {
		case Temperature:
			return "---" + m.DisplayUnit()
		default:
			return "OL"
		}
	}
	return fmt.Sprintf("%v%s", m.DisplayValue, m.DisplayUnit())
}

func displayToBase(v float64, p Prefix, fahrenheit bool) float64 {
	if fahrenheit {
		return (v - 32.0) * 5.0 / 9.0
	}
	return v * p.Factor()
}

func baseToDisplay(v float64, p Prefix, fahrenheit bool) float64 {
	if fahrenheit {
		return v*9.0/5.0 + 32.0
	}
	return v / p.Factor()
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
