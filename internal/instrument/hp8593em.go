package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HP8593EM drives an HP 8593EM EMC analyzer. It carries a tracking generator
// and reads levels from the trace rather than a marker.
type HP8593EM struct {
	driver
}

// NewHP8593EM wraps an open connection to an 8593EM.
func NewHP8593EM(conn Conn) *HP8593EM {
	return &HP8593EM{driver: newDriver(conn, "HP8593EM")}
}

func (a *HP8593EM) ID() (string, error) {
	return a.query("ID?")
}

// Reset resets the analyzer into EMC mode with auto ranging and dBm units,
// clearing the signal list and disabling the automatic detectors.
func (a *HP8593EM) Reset() error {
	if err := a.write("*RST"); err != nil {
		return err
	}
	a.pause(time.Second)
	if err := a.write("MODE EMC"); err != nil {
		return err
	}
	a.pause(time.Second)
	return a.writeAll(
		"AT AUTO",
		"ARNG ON",
		"AUNITS DBM",
		"SIGLIST ON",
		"SIGDEL ALL",
		"AUTOQPD OFF",
		"AUTOAVG OFF",
	)
}

func (a *HP8593EM) SetSingleSweepMode() error { return a.write("CONTSWP OFF") }

func (a *HP8593EM) SetCenterFrequency(f float64) error { return a.write("CF " + hz(f) + "Hz") }

func (a *HP8593EM) SetSpan(span float64) error { return a.write("SP " + hz(span) + "Hz") }

func (a *HP8593EM) SetZeroSpan() error { return a.SetSpan(0) }

func (a *HP8593EM) SetStartFrequency(f float64) error { return a.write("FA " + hz(f) + "Hz") }

func (a *HP8593EM) SetStopFrequency(f float64) error { return a.write("FB " + hz(f) + "Hz") }

func (a *HP8593EM) StartFrequency() (float64, error) { return a.queryFloat("FA?") }

func (a *HP8593EM) StopFrequency() (float64, error) { return a.queryFloat("FB?") }

func (a *HP8593EM) SetResolutionBandwidth(rbw float64) error { return a.write("RB " + hz(rbw) + "Hz") }

// MarkerPower reads the trace in parameter units and returns its first point.
// In zero span every trace point sits at the center frequency.
func (a *HP8593EM) MarkerPower() (float64, error) {
	if err := a.write("TDF P"); err != nil {
		return 0, err
	}
	trace, err := a.query("TRA?")
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(trace, ",")
	v, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, &DeviceError{Device: a.model, Op: "TRA?", Err: fmt.Errorf("malformed trace %q: %w", first, err)}
	}
	return v, nil
}

func (a *HP8593EM) TakeSweep() error { return a.write("TS") }

// WaitDone blocks on *OPC? until pending operations complete.
func (a *HP8593EM) WaitDone() error {
	_, err := a.query("*OPC?")
	return err
}

func (a *HP8593EM) SweepTime() (float64, error) { return a.queryFloat("SWPT?") }

// SetTrackingGeneratorPower enables the built-in tracking generator at the
// given level.
func (a *HP8593EM) SetTrackingGeneratorPower(dbm float64) error {
	return a.write("SRCPWR " + hz(dbm) + "DB")
}

// TrackingGeneratorOff disables the built-in tracking generator.
func (a *HP8593EM) TrackingGeneratorOff() error { return a.write("SRCPWR OFF") }
