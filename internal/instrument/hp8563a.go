package instrument

import "time"

// HP8563A drives an HP 8563A portable spectrum analyzer.
type HP8563A struct {
	driver
}

// NewHP8563A wraps an open connection to an 8563A.
func NewHP8563A(conn Conn) *HP8563A {
	return &HP8563A{driver: newDriver(conn, "HP8563A")}
}

// ID queries the identification string.
func (a *HP8563A) ID() (string, error) {
	return a.query("ID?")
}

// Reset performs an instrument reset and selects dBm amplitude units with
// automatic attenuation.
func (a *HP8563A) Reset() error {
	if err := a.write("*RST"); err != nil {
		return err
	}
	a.pause(time.Second)
	return a.writeAll("AT AUTO", "AUNITS DBM")
}

func (a *HP8563A) SetSingleSweepMode() error { return a.write("SNGLS") }

func (a *HP8563A) SetCenterFrequency(f float64) error { return a.write("CF " + hz(f) + "Hz") }

func (a *HP8563A) SetSpan(span float64) error { return a.write("SP " + hz(span) + "Hz") }

func (a *HP8563A) SetZeroSpan() error { return a.SetSpan(0) }

func (a *HP8563A) SetStartFrequency(f float64) error { return a.write("FA " + hz(f) + "Hz") }

func (a *HP8563A) SetStopFrequency(f float64) error { return a.write("FB " + hz(f) + "Hz") }

func (a *HP8563A) StartFrequency() (float64, error) { return a.queryFloat("FA?") }

func (a *HP8563A) StopFrequency() (float64, error) { return a.queryFloat("FB?") }

func (a *HP8563A) SetResolutionBandwidth(rbw float64) error { return a.write("RB " + hz(rbw) + "Hz") }

// MarkerPower reads the marker amplitude.
func (a *HP8563A) MarkerPower() (float64, error) { return a.queryFloat("MKA?") }

func (a *HP8563A) TakeSweep() error { return a.write("TS") }

// WaitDone blocks on the DONE? query, which the analyzer answers only after
// the preceding sweep has finished.
func (a *HP8563A) WaitDone() error {
	_, err := a.query("DONE?")
	return err
}

// SweepTime returns the current sweep time in seconds.
func (a *HP8563A) SweepTime() (float64, error) { return a.queryFloat("ST?") }
