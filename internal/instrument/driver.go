package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/sweeper/internal/timeutil"
)

// driver holds the connection plumbing shared by all instrument models.
type driver struct {
	conn  Conn
	model string
	clock timeutil.Clock
}

func newDriver(conn Conn, model string) driver {
	return driver{conn: conn, model: model, clock: timeutil.RealClock{}}
}

func (d *driver) write(cmd string) error {
	if err := d.conn.Write(cmd); err != nil {
		return &DeviceError{Device: d.model, Op: cmd, Err: err}
	}
	return nil
}

func (d *driver) writeAll(cmds ...string) error {
	for _, cmd := range cmds {
		if err := d.write(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (d *driver) query(cmd string) (string, error) {
	resp, err := d.conn.Query(cmd)
	if err != nil {
		return "", &DeviceError{Device: d.model, Op: cmd, Err: err}
	}
	return strings.TrimSpace(resp), nil
}

func (d *driver) queryFloat(cmd string) (float64, error) {
	resp, err := d.query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, &DeviceError{Device: d.model, Op: cmd, Err: fmt.Errorf("malformed reply %q: %w", resp, err)}
	}
	return v, nil
}

func (d *driver) pause(dur time.Duration) {
	d.clock.Sleep(dur)
}

// SetClock replaces the clock used for the fixed delays some commands need
// (for example after a reset).
func (d *driver) SetClock(c timeutil.Clock) {
	d.clock = c
}

// Close releases the underlying connection.
func (d *driver) Close() error {
	return d.conn.Close()
}

// hz renders a frequency the way the HP analyzers accept it: a plain decimal
// without exponent.
func hz(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
