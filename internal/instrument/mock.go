package instrument

import (
	"strconv"
	"sync"
)

// Call is one recorded driver invocation.
type Call struct {
	Device string // "SA" or "SG"
	Op     string
	Arg    string
}

// CallLog records calls from both halves of a mock bench in order, so tests
// can assert on interleaving between analyzer and generator.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

func (l *CallLog) add(c Call) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Count returns how many recorded calls match device and op.
func (l *CallLog) Count(device, op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Device == device && c.Op == op {
			n++
		}
	}
	return n
}

// Args returns the arguments of every call matching device and op.
func (l *CallLog) Args(device, op string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if c.Device == device && c.Op == op {
			out = append(out, c.Arg)
		}
	}
	return out
}

// mockFaults injects failures on the nth invocation of an operation.
type mockFaults struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]mockFault
	onCall func(Call)
}

type mockFault struct {
	nth int
	err error
}

func (f *mockFaults) check(device string, c Call) error {
	f.mu.Lock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[c.Op]++
	n := f.counts[c.Op]
	fault, ok := f.fail[c.Op]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if ok && (fault.nth == 0 || fault.nth == n) {
		return &DeviceError{Device: device, Op: c.Op, Err: fault.err}
	}
	return nil
}

func (f *mockFaults) failOn(op string, nth int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[string]mockFault)
	}
	f.fail[op] = mockFault{nth: nth, err: err}
}

// MockAnalyzer is an in-memory Analyzer for tests. MarkerPower returns
// Power(center) when Power is set, otherwise -50.
type MockAnalyzer struct {
	Log   *CallLog
	Power func(centerHz float64) float64

	mu     sync.Mutex
	center float64
	faults mockFaults
}

// NewMockBench returns a mock analyzer and generator sharing one CallLog.
func NewMockBench() (*MockAnalyzer, *MockGenerator) {
	log := &CallLog{}
	return &MockAnalyzer{Log: log}, &MockGenerator{Log: log}
}

// FailOn makes the nth call (1-based) of op return err wrapped in a
// *DeviceError. nth == 0 fails every call.
func (m *MockAnalyzer) FailOn(op string, nth int, err error) { m.faults.failOn(op, nth, err) }

// OnCall registers a hook run on every call after it is recorded.
func (m *MockAnalyzer) OnCall(fn func(Call)) {
	m.faults.mu.Lock()
	m.faults.onCall = fn
	m.faults.mu.Unlock()
}

func (m *MockAnalyzer) record(op, arg string) error {
	c := Call{Device: "SA", Op: op, Arg: arg}
	if m.Log != nil {
		m.Log.add(c)
	}
	return m.faults.check("MockSA", c)
}

func (m *MockAnalyzer) ID() (string, error) {
	if err := m.record("ID", ""); err != nil {
		return "", err
	}
	return "MOCK8563A", nil
}

func (m *MockAnalyzer) SetSingleSweepMode() error { return m.record("SetSingleSweepMode", "") }

func (m *MockAnalyzer) SetResolutionBandwidth(v float64) error {
	return m.record("SetResolutionBandwidth", strconv.FormatFloat(v, 'f', -1, 64))
}

func (m *MockAnalyzer) SetZeroSpan() error { return m.record("SetZeroSpan", "") }

func (m *MockAnalyzer) SetCenterFrequency(v float64) error {
	if err := m.record("SetCenterFrequency", strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		return err
	}
	m.mu.Lock()
	m.center = v
	m.mu.Unlock()
	return nil
}

func (m *MockAnalyzer) TakeSweep() error { return m.record("TakeSweep", "") }

func (m *MockAnalyzer) WaitDone() error { return m.record("WaitDone", "") }

func (m *MockAnalyzer) MarkerPower() (float64, error) {
	if err := m.record("MarkerPower", ""); err != nil {
		return 0, err
	}
	m.mu.Lock()
	center := m.center
	m.mu.Unlock()
	if m.Power != nil {
		return m.Power(center), nil
	}
	return -50, nil
}

func (m *MockAnalyzer) Close() error { return m.record("Close", "") }

// MockGenerator is an in-memory Generator for tests.
type MockGenerator struct {
	Log *CallLog

	mu     sync.Mutex
	freq   float64
	rfOn   bool
	faults mockFaults
}

// FailOn makes the nth call (1-based) of op return err wrapped in a
// *DeviceError. nth == 0 fails every call.
func (m *MockGenerator) FailOn(op string, nth int, err error) { m.faults.failOn(op, nth, err) }

// OnCall registers a hook run on every call after it is recorded.
func (m *MockGenerator) OnCall(fn func(Call)) {
	m.faults.mu.Lock()
	m.faults.onCall = fn
	m.faults.mu.Unlock()
}

func (m *MockGenerator) record(op, arg string) error {
	c := Call{Device: "SG", Op: op, Arg: arg}
	if m.Log != nil {
		m.Log.add(c)
	}
	return m.faults.check("MockSG", c)
}

func (m *MockGenerator) ID() (string, error) {
	if err := m.record("ID", ""); err != nil {
		return "", err
	}
	return "MOCK8673B", nil
}

func (m *MockGenerator) SetPower(dbm float64) error {
	return m.record("SetPower", strconv.FormatFloat(dbm, 'f', -1, 64))
}

func (m *MockGenerator) EnableRF(on bool) error {
	if err := m.record("EnableRF", strconv.FormatBool(on)); err != nil {
		return err
	}
	m.mu.Lock()
	m.rfOn = on
	m.mu.Unlock()
	return nil
}

func (m *MockGenerator) SetFrequency(hz float64) error {
	if err := m.record("SetFrequency", strconv.FormatFloat(hz, 'f', -1, 64)); err != nil {
		return err
	}
	m.mu.Lock()
	m.freq = hz
	m.mu.Unlock()
	return nil
}

// RFOn reports the last EnableRF state.
func (m *MockGenerator) RFOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rfOn
}

// Frequency reports the last frequency set.
func (m *MockGenerator) Frequency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freq
}

func (m *MockGenerator) Close() error { return m.record("Close", "") }
