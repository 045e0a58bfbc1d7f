// Package gpib talks to instruments on a GPIB bus through a Prologix-style
// GPIB-USB adapter. The adapter appears as a serial port; lines starting with
// "++" configure the adapter and every other line is forwarded to the
// addressed instrument.
package gpib

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/sweeper/internal/monitoring"
)

var (
	// ErrReadTimeout is returned when the adapter produces no reply within
	// the read timeout.
	ErrReadTimeout = errors.New("gpib: read timeout")
	// ErrWriteFailed is returned on a short write to the serial port.
	ErrWriteFailed = errors.New("gpib: short write to serial port")
	// ErrClosed is returned after the controller has been closed.
	ErrClosed = errors.New("gpib: controller closed")
)

// maxReplyLen bounds a single reply line.
const maxReplyLen = 1 << 16

// Controller serializes access to the adapter. Commands for different
// addresses may be issued from several goroutines; each write or query holds
// the bus until it completes.
type Controller struct {
	port        Port
	readTimeout time.Duration

	mu      sync.Mutex
	addr    int // currently selected address, -1 if unknown
	pending []byte
	closed  bool
}

// NewController wraps an open port. Call Initialize before use.
func NewController(port Port, readTimeout time.Duration) *Controller {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Controller{port: port, readTimeout: readTimeout, addr: -1}
}

// Initialize puts the adapter in controller mode with explicit reads, EOI
// assertion, LF command termination and LF-terminated replies.
func (c *Controller) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.port.SetReadTimeout(c.readTimeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	tmo := c.readTimeout.Milliseconds()
	if tmo > 3000 {
		tmo = 3000
	}
	for _, cmd := range []string{
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		"++eos 2",
		"++eot_enable 1",
		"++eot_char 10",
		"++read_tmo_ms " + strconv.FormatInt(tmo, 10),
	} {
		if err := c.sendLocked(cmd); err != nil {
			return fmt.Errorf("failed to send adapter command %q: %w", cmd, err)
		}
	}
	c.addr = -1
	return nil
}

// Version returns the adapter firmware string.
func (c *Controller) Version() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(); err != nil {
		return "", err
	}
	if err := c.sendLocked("++ver"); err != nil {
		return "", err
	}
	return c.readLineLocked()
}

// Write sends cmd to the instrument at addr.
func (c *Controller) Write(addr int, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(addr); err != nil {
		return err
	}
	return c.sendLocked(escape(cmd))
}

// Query sends cmd to the instrument at addr and reads one reply line.
func (c *Controller) Query(addr int, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(addr); err != nil {
		return "", err
	}
	if err := c.flushLocked(); err != nil {
		return "", err
	}
	if err := c.sendLocked(escape(cmd)); err != nil {
		return "", err
	}
	if err := c.sendLocked("++read eoi"); err != nil {
		return "", err
	}
	return c.readLineLocked()
}

// Local returns the instrument at addr to front-panel control.
func (c *Controller) Local(addr int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.selectLocked(addr); err != nil {
		return err
	}
	return c.sendLocked("++loc")
}

// Close closes the serial port. Devices obtained from the controller stop
// working.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

// Device returns a connection to the instrument at addr.
func (c *Controller) Device(addr int) (*Device, error) {
	if err := validAddress(addr); err != nil {
		return nil, err
	}
	return &Device{c: c, addr: addr}, nil
}

func (c *Controller) selectLocked(addr int) error {
	if err := validAddress(addr); err != nil {
		return err
	}
	if c.addr == addr {
		return nil
	}
	if err := c.sendLocked("++addr " + strconv.Itoa(addr)); err != nil {
		return err
	}
	c.addr = addr
	return nil
}

func (c *Controller) sendLocked(line string) error {
	if c.closed {
		return ErrClosed
	}
	line += "\n"
	n, err := c.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// flushLocked drops input left over from an earlier exchange, such as a reply
// that arrived after its query timed out, so it cannot answer the next query.
func (c *Controller) flushLocked() error {
	if c.closed {
		return ErrClosed
	}
	if len(c.pending) > 0 {
		monitoring.Logf("[gpib] discarding %d stale bytes", len(c.pending))
		c.pending = nil
	}
	if err := c.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("gpib: reset input buffer: %w", err)
	}
	return nil
}

// readLineLocked reads up to the next LF. Bytes after the LF stay pending until
// the next flush. A read returning no data means the port timed out.
func (c *Controller) readLineLocked() (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		if len(c.pending) > maxReplyLen {
			c.pending = nil
			return "", fmt.Errorf("gpib: reply exceeds %d bytes", maxReplyLen)
		}
		n, err := c.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			if len(c.pending) > 0 {
				monitoring.Logf("[gpib] discarding %d bytes of partial reply", len(c.pending))
				c.pending = nil
			}
			return "", ErrReadTimeout
		}
		c.pending = append(c.pending, buf[:n]...)
	}
}

// escape prefixes the bytes the adapter would otherwise interpret (CR, LF,
// ESC and '+') with ESC so they reach the instrument verbatim.
func escape(cmd string) string {
	if !strings.ContainsAny(cmd, "\r\n\x1b+") {
		return cmd
	}
	var b strings.Builder
	for i := 0; i < len(cmd); i++ {
		switch ch := cmd[i]; ch {
		case '\r', '\n', 0x1b, '+':
			b.WriteByte(0x1b)
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Device is one instrument on the bus. It satisfies instrument.Conn.
type Device struct {
	c    *Controller
	addr int
}

// Address returns the primary GPIB address.
func (d *Device) Address() int { return d.addr }

func (d *Device) Write(cmd string) error { return d.c.Write(d.addr, cmd) }

func (d *Device) Query(cmd string) (string, error) { return d.c.Query(d.addr, cmd) }

// Close returns the instrument to local control. The controller stays open.
func (d *Device) Close() error {
	err := d.c.Local(d.addr)
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
