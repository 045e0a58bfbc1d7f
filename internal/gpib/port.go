package gpib

import (
	"io"
	"time"
)

// Port is the minimal interface the controller needs from the serial link to
// a GPIB bus adapter. It enables unit testing without real hardware.
type Port interface {
	io.ReadWriter
	io.Closer
	// SetReadTimeout bounds each Read. A Read that times out returns 0, nil.
	SetReadTimeout(timeout time.Duration) error
	// ResetInputBuffer discards received bytes that have not been read.
	ResetInputBuffer() error
}

// PortOpener opens a serial port at path with the given options.
type PortOpener func(path string, opts PortOptions) (Port, error)
