package sweep

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweeper/internal/units"
)

func validConfig() Config {
	return Config{StartHz: 1e6, StopHz: 1e9, Points: 101, RBWHz: 1e5, PowerDBm: -10}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative start", func(c *Config) { c.StartHz = -1 }},
		{"NaN stop", func(c *Config) { c.StopHz = math.NaN() }},
		{"infinite stop", func(c *Config) { c.StopHz = math.Inf(1) }},
		{"zero rbw", func(c *Config) { c.RBWHz = 0 }},
		{"negative points", func(c *Config) { c.Points = -5 }},
		{"infinite power", func(c *Config) { c.PowerDBm = math.Inf(-1) }},
		{"offset below zero", func(c *Config) { c.OffsetHz = -2e6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeFinite, "finite": ModeFinite, "Continuous": ModeContinuous} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("forever")
	assert.Error(t, err)
}

func TestParseRequest(t *testing.T) {
	cfg, mode, err := ParseRequest(Request{
		Mode:     "continuous",
		Start:    "100MHz",
		Stop:     "2.4GHz",
		RBW:      "3kHz",
		PowerDBm: -20,
		OffsetHz: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, ModeContinuous, mode)
	assert.Equal(t, Config{StartHz: 1e8, StopHz: 2.4e9, RBWHz: 3e3, PowerDBm: -20, OffsetHz: 1000}, cfg)
}

func TestParseRequestFormatError(t *testing.T) {
	_, _, err := ParseRequest(Request{Start: "ten MHz", Stop: "1GHz", RBW: "1kHz"})
	require.Error(t, err)

	var fe *units.FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "start")
}

func TestParseRequestInvalidConfig(t *testing.T) {
	_, _, err := ParseRequest(Request{Start: "1MHz", Stop: "1GHz", RBW: "0"})
	assert.Error(t, err)
	_, _, err = ParseRequest(Request{Mode: "sideways", Start: "1MHz", Stop: "1GHz", RBW: "1kHz"})
	assert.Error(t, err)
}
