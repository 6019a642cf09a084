// Package interpreter turns validated protocol packets into typed
// measurements. Decoding is total: a packet whose mode or digit pattern is
// not recognized yields an Unsupported measurement instead of an error,
// since the meter routinely transmits screens this library does not cover
// (current, capacitance, setup text).
package interpreter

import (
	"strconv"
	"strings"
	"time"

	"github.com/bm-tools/bm257s/pkg/measurement"
	"github.com/bm-tools/bm257s/pkg/protocol"
)

// prefixSymbols lists the range annunciators in resolution priority order.
var prefixSymbols = []struct {
	sym    protocol.Symbol
	prefix measurement.Prefix
}{
	{protocol.SymbolKilo, measurement.PrefixKilo},
	{protocol.SymbolMega, measurement.PrefixMega},
	{protocol.SymbolMilli, measurement.PrefixMilli},
	{protocol.SymbolMicro, measurement.PrefixMicro},
	{protocol.SymbolNano, measurement.PrefixNano},
}

// Decode maps one packet to a measurement captured at ts.
func Decode(pkg protocol.Packet, ts time.Time) measurement.Measurement {
	syms := pkg.Symbols()
	flags := decodeFlags(syms)

	prefix, ok := resolvePrefix(syms)
	if !ok {
		return unsupported(ts, flags)
	}

	var m measurement.Measurement
	switch {
	case syms.Has(protocol.SymbolVolt):
		m, ok = decodeVoltage(pkg, syms, prefix)
	case syms.Has(protocol.SymbolAmpere), syms.Has(protocol.SymbolFarad):
		// Current and capacitance modes are recognized but not decoded.
		return unsupported(ts, flags)
	case syms.Has(protocol.SymbolHz):
		// Checked before ohm: frequency screens light both annunciators.
		m, ok = decodeScaled(pkg, measurement.Frequency, measurement.UnitHertz, prefix)
	case syms.Has(protocol.SymbolOhm):
		m, ok = decodeScaled(pkg, measurement.Resistance, measurement.UnitOhm, prefix)
	case syms.Has(protocol.SymbolLoZ):
		// Low-impedance text screens ("Auto" etc).
		return unsupported(ts, flags)
	default:
		m, ok = decodeTemperature(pkg)
	}
	if !ok {
		return unsupported(ts, flags)
	}
	m.Timestamp = ts
	m.Flags = flags
	return m
}

func unsupported(ts time.Time, flags measurement.Flags) measurement.Measurement {
	return measurement.Measurement{
		Kind:      measurement.Unsupported,
		Timestamp: ts,
		Flags:     flags,
	}
}

// resolvePrefix picks the active range prefix. More than one lit prefix
// annunciator has no defined meaning in the protocol reference, so such
// packets are treated as unsupported rather than guessed at.
func resolvePrefix(syms protocol.SymbolSet) (measurement.Prefix, bool) {
	prefix := measurement.PrefixNone
	found := 0
	for _, p := range prefixSymbols {
		if syms.Has(p.sym) {
			if found == 0 {
				prefix = p.prefix
			}
			found++
		}
	}
	if found > 1 {
		return measurement.PrefixNone, false
	}
	return prefix, true
}

func decodeFlags(syms protocol.SymbolSet) measurement.Flags {
	minSet := syms.Has(protocol.SymbolMin)
	maxSet := syms.Has(protocol.SymbolMax)
	return measurement.Flags{
		AutoRange:  syms.Has(protocol.SymbolAuto),
		Relative:   syms.Has(protocol.SymbolRel),
		Hold:       syms.Has(protocol.SymbolHold),
		Recording:  minSet && maxSet,
		Min:        minSet && !maxSet,
		Max:        maxSet && !minSet,
		Crest:      syms.Has(protocol.SymbolCrest),
		LowBattery: syms.Has(protocol.SymbolBattery),
	}
}

// decodeVoltage handles DC and AC voltage as well as diode test, which
// shows volts without a coupling annunciator.
func decodeVoltage(pkg protocol.Packet, syms protocol.SymbolSet, prefix measurement.Prefix) (measurement.Measurement, bool) {
	text, ok := pkg.DigitString(0, 3, true, true)
	if !ok {
		return measurement.Measurement{}, false
	}

	kind := measurement.Diode
	unit := measurement.UnitVolt
	switch {
	case syms.Has(protocol.SymbolAC):
		kind, unit = measurement.Voltage, measurement.UnitVoltRMS
	case syms.Has(protocol.SymbolDC):
		kind, unit = measurement.Voltage, measurement.UnitVolt
	}

	// ".0L" is the open-loop glyph, seen in diode test.
	if strings.Contains(text, "0L") {
		return measurement.FromDisplay(kind, unit, prefix, false, 0, false), true
	}
	value, err := parseMagnitude(text)
	if err != nil {
		return measurement.Measurement{}, false
	}
	return measurement.FromDisplay(kind, unit, prefix, false, value, true), true
}

// decodeScaled handles the plain prefix-scaled quantities.
func decodeScaled(pkg protocol.Packet, kind measurement.Kind, unit measurement.Unit, prefix measurement.Prefix) (measurement.Measurement, bool) {
	text, ok := pkg.DigitString(0, 3, true, true)
	if !ok {
		return measurement.Measurement{}, false
	}
	// "0.L" is open loop, "0L." is the continuity test variant.
	if strings.Contains(text, "0.L") || strings.Contains(text, "0L.") {
		return measurement.FromDisplay(kind, unit, prefix, false, 0, false), true
	}
	value, err := parseMagnitude(text)
	if err != nil {
		return measurement.Measurement{}, false
	}
	return measurement.FromDisplay(kind, unit, prefix, false, value, true), true
}

// decodeTemperature handles the symbol-free temperature display, whose last
// digit shows the unit as C or F. "---" means no probe is attached.
func decodeTemperature(pkg protocol.Packet) (measurement.Measurement, bool) {
	text, ok := pkg.DigitString(0, 3, true, true)
	if !ok {
		return measurement.Measurement{}, false
	}

	var fahrenheit bool
	switch text[len(text)-1] {
	case 'C':
		fahrenheit = false
	case 'F':
		fahrenheit = true
	default:
		// Transient 4-digit readings appear while the thermocouple is
		// being attached; nothing meaningful can be read from them.
		return measurement.Measurement{}, false
	}

	body := text[:len(text)-1]
	if strings.ReplaceAll(body, " ", "") == "---" {
		return measurement.FromDisplay(measurement.Temperature, measurement.UnitCelsius, measurement.PrefixNone, fahrenheit, 0, false), true
	}
	value, err := parseMagnitude(body)
	if err != nil {
		return measurement.Measurement{}, false
	}
	return measurement.FromDisplay(measurement.Temperature, measurement.UnitCelsius, measurement.PrefixNone, fahrenheit, value, true), true
}

// parseMagnitude reads the numeric magnitude from a digit string. Blank
// digits are legal padding on the LCD and are ignored.
func parseMagnitude(text string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(text, " ", ""), 64)
}
