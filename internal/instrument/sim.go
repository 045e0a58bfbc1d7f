package instrument

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// ErrClosed is returned by simulated connections after Close.
var ErrClosed = errors.New("connection closed")

// NoiseFloorDBM is the level the simulated analyzer reports when no
// generator signal falls inside its resolution bandwidth.
const NoiseFloorDBM = -90.0

// Response is the gain in dB of a simulated device under test at a frequency.
type Response func(hz float64) float64

// BandpassResponse models a single-pole band-pass filter with the given
// center, 3 dB bandwidth and insertion loss.
func BandpassResponse(centerHz, bandwidthHz, lossDB float64) Response {
	return func(f float64) float64 {
		x := (f - centerHz) / (bandwidthHz / 2)
		return -lossDB - 10*math.Log10(1+x*x)
	}
}

// simBench is the shared state of a simulated HP 8563A looking at the output
// of a simulated HP 8673B through a device under test.
type simBench struct {
	mu       sync.Mutex
	response Response

	sgFreq  float64
	sgPower float64
	rfOn    bool

	center float64
	rbw    float64
	span   float64
}

// NewSimulatedBench returns connections that answer the HP 8563A and HP 8673B
// command sets in memory. Passing them to Connect with ModelHP8673B yields a
// working bench for development without hardware.
func NewSimulatedBench(response Response) (analyzer, generator Conn) {
	if response == nil {
		response = BandpassResponse(1e9, 100e6, 2)
	}
	s := &simBench{response: response, rbw: 1e6}
	return &simAnalyzerConn{s: s}, &simGeneratorConn{s: s}
}

func (s *simBench) level() float64 {
	if !s.rfOn {
		return NoiseFloorDBM
	}
	if math.Abs(s.sgFreq-s.center) > math.Max(s.rbw, s.span)/2 {
		return NoiseFloorDBM
	}
	return math.Max(NoiseFloorDBM, s.sgPower+s.response(s.center))
}

type simAnalyzerConn struct {
	s      *simBench
	closed bool
}

func (c *simAnalyzerConn) Write(cmd string) error {
	if c.closed {
		return ErrClosed
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	var err error
	switch name {
	case "CF":
		c.s.center, err = simValue(arg, "Hz")
	case "RB":
		c.s.rbw, err = simValue(arg, "Hz")
	case "SP":
		c.s.span, err = simValue(arg, "Hz")
	case "SNGLS", "TS", "IP", "*RST", "AT", "AUNITS", "FA", "FB", "VB", "RL", "ST":
	default:
		return fmt.Errorf("simulated HP8563A: unknown command %q", cmd)
	}
	return err
}

func (c *simAnalyzerConn) Query(cmd string) (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	switch strings.TrimSpace(cmd) {
	case "ID?":
		return "HP8563A", nil
	case "DONE?":
		return "1", nil
	case "MKA?":
		return strconv.FormatFloat(c.s.level(), 'f', 2, 64), nil
	case "ST?":
		return "0.05", nil
	default:
		return "", fmt.Errorf("simulated HP8563A: unknown query %q", cmd)
	}
}

func (c *simAnalyzerConn) Close() error {
	c.closed = true
	return nil
}

type simGeneratorConn struct {
	s      *simBench
	closed bool
}

func (c *simGeneratorConn) Write(cmd string) error {
	if c.closed {
		return ErrClosed
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var err error
	switch {
	case cmd == "RF1":
		c.s.rfOn = true
	case cmd == "RF0":
		c.s.rfOn = false
	case strings.HasPrefix(cmd, "CW"):
		c.s.sgFreq, err = simValue(strings.TrimPrefix(cmd, "CW"), "HZ")
	case strings.HasPrefix(cmd, "PL"):
		c.s.sgPower, err = simValue(strings.TrimPrefix(cmd, "PL"), "DB")
	default:
		return fmt.Errorf("simulated HP8673B: unknown command %q", cmd)
	}
	return err
}

func (c *simGeneratorConn) Query(cmd string) (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if cmd == "CW?" {
		return strconv.FormatFloat(c.s.sgFreq, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("simulated HP8673B: unknown query %q", cmd)
}

func (c *simGeneratorConn) Close() error {
	c.closed = true
	return nil
}

func simValue(arg, suffix string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(arg), suffix), 64)
}
