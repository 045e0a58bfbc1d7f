// Package config loads the station configuration: how the bus adapter is
// reached, where the instruments sit on the bus, and the default sweep.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/sweeper/internal/gpib"
	"github.com/banshee-data/sweeper/internal/instrument"
	"github.com/banshee-data/sweeper/internal/sweep"
)

// EnvPrefix prefixes environment overrides, e.g. SWEEPER_SERIAL_BAUD_RATE.
const EnvPrefix = "SWEEPER"

// Defaults used when a key is absent from both the file and the environment.
const (
	DefaultAnalyzerAddress  = 18
	DefaultGeneratorAddress = 19
	DefaultDBPath           = "sweeper.db"
	DefaultSettleDelay      = "100ms"
	DefaultLogLevel         = "info"
)

// StationConfig is the configuration of one measurement station.
type StationConfig struct {
	// Port is the serial device of the GPIB adapter, e.g. /dev/ttyUSB0.
	Port             string           `mapstructure:"port"`
	Serial           gpib.PortOptions `mapstructure:"serial"`
	AnalyzerAddress  int              `mapstructure:"analyzer_address"`
	GeneratorAddress int              `mapstructure:"generator_address"`
	GeneratorModel   string           `mapstructure:"generator_model"`
	DBPath           string           `mapstructure:"db_path"`
	// Listen is the HTTP listen address. Empty runs a single sweep without
	// serving the API.
	Listen      string        `mapstructure:"listen"`
	SettleDelay string        `mapstructure:"settle_delay"` // duration string like "100ms"
	LogLevel    string        `mapstructure:"log_level"`
	Sweep       sweep.Request `mapstructure:"sweep"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "")
	v.SetDefault("serial.baud_rate", gpib.DefaultBaudRate)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.read_timeout", gpib.DefaultReadTimeout)
	v.SetDefault("analyzer_address", DefaultAnalyzerAddress)
	v.SetDefault("generator_address", DefaultGeneratorAddress)
	v.SetDefault("generator_model", instrument.ModelHP8673B)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("listen", "")
	v.SetDefault("settle_delay", DefaultSettleDelay)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("sweep.mode", string(sweep.ModeFinite))
	v.SetDefault("sweep.start", "100MHz")
	v.SetDefault("sweep.stop", "1GHz")
	v.SetDefault("sweep.points", 0)
	v.SetDefault("sweep.rbw", "3kHz")
	v.SetDefault("sweep.power_dbm", -10.0)
	v.SetDefault("sweep.offset_hz", 0)
	v.SetDefault("sweep.tracking_disabled", false)
}

// DefaultStationConfig returns the configuration used when no file or
// environment override is present.
func DefaultStationConfig() *StationConfig {
	cfg, err := load(viper.New(), "")
	if err != nil {
		// Only reachable if the built-in defaults are inconsistent.
		panic(err)
	}
	return cfg
}

// Load reads the configuration file at path (JSON, YAML or TOML, by
// extension) and applies SWEEPER_* environment overrides. An empty path uses
// defaults plus the environment.
func Load(path string) (*StationConfig, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*StationConfig, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg StationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration values are valid. The default
// sweep is only checked for a known mode; its frequencies are parsed when a
// sweep is started so that a bad default does not stop the API from serving.
func (c *StationConfig) Validate() error {
	var errs []error
	if _, err := c.Serial.Normalize(); err != nil {
		errs = append(errs, fmt.Errorf("serial: %w", err))
	}
	for _, a := range []struct {
		name string
		addr int
	}{{"analyzer_address", c.AnalyzerAddress}, {"generator_address", c.GeneratorAddress}} {
		if a.addr < 0 || a.addr > gpib.MaxAddress {
			errs = append(errs, fmt.Errorf("%s must be between 0 and %d, got %d", a.name, gpib.MaxAddress, a.addr))
		}
	}
	if c.AnalyzerAddress == c.GeneratorAddress {
		errs = append(errs, fmt.Errorf("analyzer and generator share GPIB address %d", c.AnalyzerAddress))
	}
	if c.GeneratorModel != "" && !validGeneratorModel(c.GeneratorModel) {
		errs = append(errs, fmt.Errorf("unknown generator_model %q: expected one of %v", c.GeneratorModel, instrument.ValidGeneratorModels))
	}
	if c.SettleDelay != "" {
		if d, err := time.ParseDuration(c.SettleDelay); err != nil {
			errs = append(errs, fmt.Errorf("invalid settle_delay '%s': %w", c.SettleDelay, err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("settle_delay must be non-negative, got %s", d))
		}
	}
	if _, err := sweep.ParseMode(c.Sweep.Mode); err != nil {
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	return errors.Join(errs...)
}

func validGeneratorModel(model string) bool {
	for _, m := range instrument.ValidGeneratorModels {
		if strings.EqualFold(strings.TrimSpace(model), m) {
			return true
		}
	}
	return false
}

// GetSettleDelay parses and returns the SettleDelay as a time.Duration.
func (c *StationConfig) GetSettleDelay() time.Duration {
	if c.SettleDelay == "" {
		return sweep.DefaultSettleDelay
	}
	d, err := time.ParseDuration(c.SettleDelay)
	if err != nil {
		return sweep.DefaultSettleDelay
	}
	return d
}

// GetGeneratorModel returns the generator model or the default.
func (c *StationConfig) GetGeneratorModel() string {
	if c.GeneratorModel == "" {
		return instrument.ModelHP8673B
	}
	return c.GeneratorModel
}

// GetDBPath returns the database path or the default.
func (c *StationConfig) GetDBPath() string {
	if c.DBPath == "" {
		return DefaultDBPath
	}
	return c.DBPath
}

// GetLogLevel returns the log level or the default.
func (c *StationConfig) GetLogLevel() string {
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.LogLevel
}
