package gpib

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens a real serial port and applies the read timeout.
func OpenSerial(path string, opts PortOptions) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	return port, nil
}

// Open opens the adapter at path and initializes it as bus controller.
func Open(path string, opts PortOptions) (*Controller, error) {
	return OpenWith(OpenSerial, path, opts)
}

// OpenWith is Open with a custom port opener.
func OpenWith(open PortOpener, path string, opts PortOptions) (*Controller, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	c := NewController(port, opts.ReadTimeout)
	if err := c.Initialize(); err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// ListPorts returns the names of the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
