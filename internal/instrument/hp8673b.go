package instrument

import "strconv"

// HP8673B drives an HP 8673B synthesized signal generator. The 8673B only
// accepts whole Hz and whole dB, so fractional values are truncated.
type HP8673B struct {
	driver
}

// NewHP8673B wraps an open connection to an 8673B.
func NewHP8673B(conn Conn) *HP8673B {
	return &HP8673B{driver: newDriver(conn, "HP8673B")}
}

// ID returns the model name; the 8673B has no identification query.
func (g *HP8673B) ID() (string, error) { return "HP8673B", nil }

func (g *HP8673B) SetFrequency(f float64) error {
	return g.write("CW" + strconv.FormatInt(int64(f), 10) + "HZ")
}

// Frequency queries the CW frequency.
func (g *HP8673B) Frequency() (float64, error) { return g.queryFloat("CW?") }

func (g *HP8673B) SetPower(dbm float64) error {
	return g.write("PL" + strconv.FormatInt(int64(dbm), 10) + "DB")
}

func (g *HP8673B) EnableRF(on bool) error {
	if on {
		return g.write("RF1")
	}
	return g.write("RF0")
}
