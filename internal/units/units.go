// Package units parses and formats the frequency quantities entered by
// operators, such as "100MHz", "2.4 GHz" or a bare "500" (Hz).
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit suffixes, lower case. Matching is case-insensitive.
const (
	Hz  = "hz"
	KHz = "khz"
	MHz = "mhz"
	GHz = "ghz"
)

// ValidUnits lists the accepted suffixes in matching priority order. Hz must
// come last because every other suffix also ends in "hz".
var ValidUnits = []string{GHz, MHz, KHz, Hz}

var multipliers = map[string]float64{
	GHz: 1e9,
	MHz: 1e6,
	KHz: 1e3,
	Hz:  1,
}

// ErrNotFrequency is wrapped by FormatError when the numeric part parses but
// is not a usable frequency (negative, NaN or infinite).
var ErrNotFrequency = errors.New("not a non-negative finite frequency")

// FormatError reports frequency text that could not be parsed. It is raised
// before any instrument I/O takes place.
type FormatError struct {
	Input string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid frequency %q: %v", e.Input, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Multiplier returns the scale factor to Hz for a unit suffix.
func Multiplier(unit string) (float64, bool) {
	m, ok := multipliers[strings.ToLower(unit)]
	return m, ok
}

// ParseFrequency converts text such as "2.4GHz" into Hz. A missing suffix
// means Hz. Whitespace around the text and between number and unit is
// ignored.
func ParseFrequency(text string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	multiplier := 1.0
	for _, unit := range ValidUnits {
		if strings.HasSuffix(s, unit) {
			multiplier, _ = Multiplier(unit)
			s = strings.TrimSuffix(s, unit)
			break
		}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &FormatError{Input: text, Err: err}
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{Input: text, Err: ErrNotFrequency}
	}
	return v * multiplier, nil
}

// MustParseFrequency is ParseFrequency for constants and tests; it panics on
// malformed input.
func MustParseFrequency(text string) float64 {
	v, err := ParseFrequency(text)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatFrequency renders hz with the largest unit that keeps the value at or
// above one, e.g. 2.4e9 -> "2.4GHz". The output parses back with
// ParseFrequency.
func FormatFrequency(hz float64) string {
	abs := math.Abs(hz)
	switch {
	case abs >= 1e9:
		return strconv.FormatFloat(hz/1e9, 'f', -1, 64) + "GHz"
	case abs >= 1e6:
		return strconv.FormatFloat(hz/1e6, 'f', -1, 64) + "MHz"
	case abs >= 1e3:
		return strconv.FormatFloat(hz/1e3, 'f', -1, 64) + "kHz"
	default:
		return strconv.FormatFloat(hz, 'f', -1, 64) + "Hz"
	}
}
