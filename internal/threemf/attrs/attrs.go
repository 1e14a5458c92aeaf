// Package attrs provides case-sensitive attribute lookup over the flat
// xml.Attr list encoding/xml hands a StartElement, plus the length-unit
// resolver (spec.md §4.2).
package attrs

import (
	"encoding/xml"
	"strconv"
)

// String returns the value of attr key, or "" if absent.
func String(attrs []xml.Attr, key string) string {
	for _, a := range attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}

// Int returns the value of attr key parsed as an int, or 0 if absent or
// unparsable.
func Int(attrs []xml.Attr, key string) int {
	v := String(attrs, key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Float returns the value of attr key parsed as a float64, or 0 if
// absent or unparsable.
func Float(attrs []xml.Attr, key string) float64 {
	v := String(attrs, key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// Bool returns the value of attr key as a boolean, defaulting to true
// when the attribute is absent — this preserves 3MF's default-printable
// semantics (spec.md §4.2, §6).
//
// Compatibility note (spec.md §9 Open Question, preserved deliberately):
// the value is parsed as an integer and cast to bool, the way
// PrusaSlicer's get_attribute_value_bool does ((bool)::atoi(text)).
// Textual "true"/"false" are NOT recognized — "true" parses as 0 (atoi
// stops at the first non-digit) and yields false. This is a known
// compatibility risk inherited from the format's origin, not a bug to
// silently "fix".
func Bool(attrs []xml.Attr, key string) bool {
	v := String(attrs, key)
	if v == "" {
		return true
	}
	n, _ := strconv.Atoi(v) // non-numeric text parses as 0, matching atoi
	return n != 0
}

// unitFactors maps a 3MF `unit` attribute value to its millimeter scale
// factor (spec.md §4.2, §6). Unknown values, including the empty string,
// default to millimeter (1.0) per the 3MF core specification.
var unitFactors = map[string]float64{
	"micron":      0.001,
	"millimeter":  1.0,
	"centimeter":  10.0,
	"inch":        25.4,
	"foot":        304.8,
	"meter":       1000.0,
}

// UnitFactor returns the millimeter scale factor for a 3MF unit string.
func UnitFactor(unit string) float64 {
	if f, ok := unitFactors[unit]; ok {
		return f
	}
	return 1.0
}
