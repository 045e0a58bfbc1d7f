// Package instrument defines the capability contracts the sweep engine drives
// and the concrete drivers for the bench instruments: HP 8563A and HP 8593EM
// spectrum analyzers and the HP 8673B synthesized signal generator.
//
// Every call is synchronous. A call returns once the command has been written
// (or the query answered) on the bus; there is no asynchronous completion
// beyond what WaitDone guarantees. Failures are reported as *DeviceError.
package instrument

import (
	"errors"
	"fmt"
)

// Conn is a command channel to one instrument, usually a GPIB address behind
// a bus controller. Commands and replies are ASCII without terminators.
type Conn interface {
	Write(cmd string) error
	Query(cmd string) (string, error)
	Close() error
}

// SpectrumAnalyzer is the capability set the sweep engine needs from an
// analyzer.
type SpectrumAnalyzer interface {
	SetSingleSweepMode() error
	SetResolutionBandwidth(hz float64) error
	SetZeroSpan() error
	SetCenterFrequency(hz float64) error
	TakeSweep() error
	// WaitDone blocks until the sweep started by TakeSweep has completed.
	WaitDone() error
	// MarkerPower returns the measured level in dBm.
	MarkerPower() (float64, error)
}

// SignalGenerator is the capability set the sweep engine needs from a
// generator.
type SignalGenerator interface {
	SetPower(dbm float64) error
	EnableRF(on bool) error
	SetFrequency(hz float64) error
}

// Identifier reports the identification string of a connected instrument.
type Identifier interface {
	ID() (string, error)
}

// Analyzer is a connected analyzer driver.
type Analyzer interface {
	SpectrumAnalyzer
	Identifier
	Close() error
}

// Generator is a connected generator driver.
type Generator interface {
	SignalGenerator
	Identifier
	Close() error
}

// ErrUnsupportedDevice is returned when an identification string or model
// name does not match any driver.
var ErrUnsupportedDevice = errors.New("unsupported device")

// DeviceError wraps a communication fault (timeout, bus error, malformed
// reply) raised while talking to an instrument.
type DeviceError struct {
	Device string // model name, e.g. "HP8563A"
	Op     string // command or query that failed
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err came from the instrument layer.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
