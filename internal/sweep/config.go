package sweep

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/sweeper/internal/units"
)

// Config holds the parameters of one sweep. It is read-only to the engine for
// the duration of a run.
type Config struct {
	StartHz float64 `json:"start_hz"`
	StopHz  float64 `json:"stop_hz"`
	// Points is the number of linearly spaced points. Zero selects Halton
	// sampling with DefaultHaltonPoints interior points. Continuous mode
	// ignores it.
	Points   int     `json:"points"`
	RBWHz    float64 `json:"rbw_hz"`
	PowerDBm float64 `json:"power_dbm"`
	// OffsetHz is added to every analyzer center frequency and, unless
	// tracking is disabled, to every generator frequency.
	OffsetHz         int64 `json:"offset_hz"`
	TrackingDisabled bool  `json:"tracking_disabled"`
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"start", c.StartHz}, {"stop", c.StopHz}, {"rbw", c.RBWHz}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%s frequency must be a non-negative finite value, got %v", f.name, f.v)
		}
	}
	if c.RBWHz == 0 {
		return errors.New("rbw must be greater than zero")
	}
	if c.Points < 0 {
		return fmt.Errorf("point count must not be negative, got %d", c.Points)
	}
	if math.IsNaN(c.PowerDBm) || math.IsInf(c.PowerDBm, 0) {
		return fmt.Errorf("generator power must be finite, got %v", c.PowerDBm)
	}
	if float64(c.OffsetHz)+math.Min(c.StartHz, c.StopHz) < 0 {
		return fmt.Errorf("offset %d Hz moves the sweep below 0 Hz", c.OffsetHz)
	}
	return nil
}

// ParseMode accepts "finite" or "continuous", case-insensitively. An empty
// string selects finite mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFinite:
		return ModeFinite, nil
	case ModeContinuous:
		return ModeContinuous, nil
	default:
		return "", fmt.Errorf("unknown sweep mode %q: expected %q or %q", s, ModeFinite, ModeContinuous)
	}
}

// Request is a sweep as an operator enters it, with frequencies as text such
// as "100MHz" or "3kHz".
type Request struct {
	Mode             string  `json:"mode" mapstructure:"mode"`
	Start            string  `json:"start" mapstructure:"start"`
	Stop             string  `json:"stop" mapstructure:"stop"`
	Points           int     `json:"points" mapstructure:"points"`
	RBW              string  `json:"rbw" mapstructure:"rbw"`
	PowerDBm         float64 `json:"power_dbm" mapstructure:"power_dbm"`
	OffsetHz         int64   `json:"offset_hz" mapstructure:"offset_hz"`
	TrackingDisabled bool    `json:"tracking_disabled" mapstructure:"tracking_disabled"`
}

// ParseRequest converts r into a validated Config. Malformed frequency text
// yields a *units.FormatError.
func ParseRequest(r Request) (Config, Mode, error) {
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return Config{}, "", err
	}

	var cfg Config
	for _, f := range []struct {
		name string
		text string
		dst  *float64
	}{
		{"start", r.Start, &cfg.StartHz},
		{"stop", r.Stop, &cfg.StopHz},
		{"rbw", r.RBW, &cfg.RBWHz},
	} {
		v, err := units.ParseFrequency(f.text)
		if err != nil {
			return Config{}, "", fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	cfg.Points = r.Points
	cfg.PowerDBm = r.PowerDBm
	cfg.OffsetHz = r.OffsetHz
	cfg.TrackingDisabled = r.TrackingDisabled

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, mode, nil
}
