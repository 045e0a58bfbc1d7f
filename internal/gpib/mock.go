package gpib

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TestPort is a Port for tests. Every newline-terminated line written to it is
// recorded and passed to Respond; whatever Respond returns becomes readable.
// A Read with nothing buffered behaves like a serial timeout and returns 0, nil.
type TestPort struct {
	mu sync.Mutex

	// Respond is called for each written line without its terminator.
	Respond func(line string) string

	// WriteError is returned by the next Write call if set
	WriteError error

	// ReadError is returned by the next Read call if set
	ReadError error

	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool

	Closed      bool
	ReadTimeout time.Duration
	// Resets counts ResetInputBuffer calls.
	Resets int

	lines   []string
	partial []byte
	readBuf bytes.Buffer
}

// NewTestPort creates a TestPort answering with respond, which may be nil.
func NewTestPort(respond func(line string) string) *TestPort {
	return &TestPort{Respond: respond}
}

func (p *TestPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	if p.readBuf.Len() == 0 {
		return 0, nil
	}
	return p.readBuf.Read(b)
}

func (p *TestPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		line := string(p.partial[:i])
		p.partial = p.partial[i+1:]
		p.lines = append(p.lines, line)
		if p.Respond != nil {
			p.readBuf.WriteString(p.Respond(line))
		}
	}
	if p.ShortWrite {
		return len(b) - 1, nil
	}
	return len(b), nil
}

func (p *TestPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

func (p *TestPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadTimeout = timeout
	return nil
}

// ResetInputBuffer drops queued read data, like a serial input flush.
func (p *TestPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Reset()
	p.Resets++
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (p *TestPort) AddReadData(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(s)
}

// Lines returns every line written so far.
func (p *TestPort) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// InstrumentLines returns the written lines that were not adapter commands.
func (p *TestPort) InstrumentLines() []string {
	var out []string
	for _, l := range p.Lines() {
		if !strings.HasPrefix(l, "++") {
			out = append(out, l)
		}
	}
	return out
}

// Bus returns a Respond function emulating an adapter with instruments
// attached. Each instrument answers queries through its own function, keyed
// by primary address. "++read" returns the answer to the last command sent to
// the selected address, terminated by LF.
func Bus(instruments map[int]func(cmd string) string) func(line string) string {
	addr := -1
	var last string
	return func(line string) string {
		switch {
		case strings.HasPrefix(line, "++addr "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "++addr "))
			if err != nil {
				n = -1
			}
			addr = n
		case line == "++ver":
			return "Prologix GPIB-USB Controller version 6.107\n"
		case strings.HasPrefix(line, "++read"):
			fn, ok := instruments[addr]
			if !ok {
				return ""
			}
			return fn(last) + "\n"
		case strings.HasPrefix(line, "++"):
		default:
			last = line
		}
		return ""
	}
}
