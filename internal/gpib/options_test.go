package gpib

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{
		BaudRate:    DefaultBaudRate,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		ReadTimeout: DefaultReadTimeout,
	}, opts)
}

func TestPortOptionsNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "M"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 9600,
		DataBits: 7,
		Parity:   serial.EvenParity,
		StopBits: serial.TwoStopBits,
	}, mode)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
}

func TestOpenWith(t *testing.T) {
	port := NewTestPort(nil)
	var gotPath string
	var gotOpts PortOptions
	opener := func(path string, opts PortOptions) (Port, error) {
		gotPath, gotOpts = path, opts
		return port, nil
	}

	c, err := OpenWith(opener, "/dev/ttyUSB0", PortOptions{ReadTimeout: 500 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, DefaultBaudRate, gotOpts.BaudRate)
	assert.Equal(t, 500*time.Millisecond, port.ReadTimeout)
	assert.Equal(t, "++mode 1", port.Lines()[0])
}

func TestOpenWithErrors(t *testing.T) {
	openErr := errors.New("no such device")
	_, err := OpenWith(func(string, PortOptions) (Port, error) { return nil, openErr }, "/dev/x", PortOptions{})
	assert.ErrorIs(t, err, openErr)

	_, err = OpenWith(func(string, PortOptions) (Port, error) { return NewTestPort(nil), nil }, "/dev/x", PortOptions{Parity: "?"})
	assert.Error(t, err)

	port := NewTestPort(nil)
	port.WriteError = errors.New("broken pipe")
	_, err = OpenWith(func(string, PortOptions) (Port, error) { return port, nil }, "/dev/x", PortOptions{})
	assert.Error(t, err)
	assert.True(t, port.Closed)
}

func TestOpenNonexistentPort(t *testing.T) {
	c, err := Open("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		c.Close()
		t.Fatal("expected error opening non-existent serial port")
	}
}
