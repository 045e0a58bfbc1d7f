// Package monitoring holds the diagnostic logger shared by the sweep, bus and
// storage layers.
package monitoring

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logger behind Logf. Commands may replace it, for
// example to switch to JSON output when running under a service manager.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// Logf is the package-level diagnostic logger. It defaults to writing through
// Logger but may be replaced by SetLogger. Tests or production code can
// redirect or mute it.
var Logf func(format string, v ...interface{}) = defaultLogf

func defaultLogf(format string, v ...interface{}) {
	Logger.Info().Msgf(format, v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLevel adjusts the minimum level written by the default logger.
// Unknown level names leave the level unchanged and return the parse error.
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return err
	}
	Logger = Logger.Level(lvl)
	return nil
}
