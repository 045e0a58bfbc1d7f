package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sweeper/internal/instrument"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/timeutil"
)

// ErrSweepInProgress is returned when an operation needs the instruments
// while a session is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// DefaultEventBuffer is the capacity of a session's event channel.
const DefaultEventBuffer = 64

// State is a snapshot of the host.
type State struct {
	SessionID  string     `json:"session_id,omitempty"`
	Status     Status     `json:"status"`
	Mode       Mode       `json:"mode,omitempty"`
	Config     *Config    `json:"config,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Points     int        `json:"points"`
	Error      string     `json:"error,omitempty"`
}

// Session is one run started by Host.Start.
type Session struct {
	ID     string
	Mode   Mode
	Config Config

	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	status Status
	reason string
}

// Events returns the session's notifications: measurements and log lines in
// occurrence order, then exactly one terminal event, after which the channel
// is closed. The worker blocks while the channel is full, so a session must
// be drained.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed after the terminal event has been received and the host has
// left the running state; a new session may be started from then on.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the terminal status and failure reason. It is StatusRunning
// until the session ends.
func (s *Session) Result() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.reason
}

// Host runs sweeps on one instrument pair, at most one at a time, each on its
// own goroutine. It keeps the points of the current or most recent session.
type Host struct {
	engine *Engine
	sg     instrument.SignalGenerator
	clock  timeutil.Clock
	buffer int
	newID  func() string

	mu      sync.RWMutex
	state   State
	results []Point
	cancel  context.CancelFunc
}

// Option configures a Host.
type Option func(*Host)

// WithClock replaces the clock used for timestamps and settle delays.
func WithClock(c timeutil.Clock) Option {
	return func(h *Host) {
		h.clock = c
		h.engine.clock = c
	}
}

// WithSettleDelay sets the pause after each generator retune.
func WithSettleDelay(d time.Duration) Option {
	return func(h *Host) { h.engine.settle = d }
}

// WithEventBuffer sets the capacity of each session's event channel.
func WithEventBuffer(n int) Option {
	return func(h *Host) {
		if n >= 0 {
			h.buffer = n
		}
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(f func() string) Option {
	return func(h *Host) { h.newID = f }
}

// NewHost creates an idle host owning sa and sg.
func NewHost(sa instrument.SpectrumAnalyzer, sg instrument.SignalGenerator, opts ...Option) *Host {
	h := &Host{
		engine: NewEngine(sa, sg),
		sg:     sg,
		clock:  timeutil.RealClock{},
		buffer: DefaultEventBuffer,
		newID:  uuid.NewString,
		state:  State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start validates cfg and begins a session. Continuous sessions begin from a
// copy of seed; finite sessions ignore it. It returns ErrSweepInProgress if a
// session is running. Cancelling ctx cancels the session.
func (h *Host) Start(ctx context.Context, cfg Config, mode Mode, seed []Point) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode != ModeFinite && mode != ModeContinuous {
		return nil, fmt.Errorf("unknown sweep mode %q", mode)
	}

	h.mu.Lock()
	if h.state.Status == StatusRunning {
		h.mu.Unlock()
		return nil, ErrSweepInProgress
	}

	sess := &Session{
		ID:     h.newID(),
		Mode:   mode,
		Config: cfg,
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
		status: StatusRunning,
	}
	var initial []Point
	if mode == ModeContinuous {
		initial = append(initial, seed...)
	}

	now := h.clock.Now()
	cfgCopy := cfg
	h.state = State{
		SessionID: sess.ID,
		Status:    StatusRunning,
		Mode:      mode,
		Config:    &cfgCopy,
		StartedAt: &now,
		Points:    len(initial),
	}
	h.results = initial

	sweepCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Unlock()

	monitoring.Logf("[sweep] session %s started: %s sweep %s..%s Hz", sess.ID, mode, formatHz(cfg.StartHz), formatHz(cfg.StopHz))
	go h.run(sweepCtx, cancel, sess, append([]Point(nil), initial...))
	return sess, nil
}

func (h *Host) run(ctx context.Context, cancel context.CancelFunc, sess *Session, seed []Point) {
	defer cancel()

	seq := 0
	send := func(ev Event) {
		seq++
		ev.Seq = seq
		ev.Time = h.clock.Now()
		sess.events <- ev
	}
	emit := func(ev Event) {
		if ev.Kind == EventMeasurement && ev.Point != nil {
			h.mu.Lock()
			h.results = append(h.results, *ev.Point)
			h.state.Points = len(h.results)
			h.mu.Unlock()
		}
		send(ev)
	}

	status, err := h.runEngine(ctx, sess, seed, emit)
	reason := ""
	if status == StatusFailed && err != nil {
		reason = err.Error()
	}

	sess.mu.Lock()
	sess.status, sess.reason = status, reason
	sess.mu.Unlock()

	monitoring.Logf("[sweep] session %s %s", sess.ID, status)
	// The host stays busy until the terminal event has been handed over, so
	// Start cannot succeed while the previous notification is still pending.
	send(Event{Kind: EventTerminal, Status: status, Reason: reason})

	h.mu.Lock()
	finished := h.clock.Now()
	h.state.Status = status
	h.state.FinishedAt = &finished
	h.state.Error = reason
	h.cancel = nil
	h.mu.Unlock()

	close(sess.events)
	close(sess.done)
}

// runEngine converts a panic in the engine or an instrument driver into a
// failed session.
func (h *Host) runEngine(ctx context.Context, sess *Session, seed []Point, emit Emit) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = StatusFailed, fmt.Errorf("sweep panicked: %v", r)
		}
	}()
	return h.engine.Run(ctx, sess.Config, sess.Mode, seed, emit)
}

// Cancel asks the running session to stop at the next point boundary. It is
// idempotent and does nothing when no session is running.
func (h *Host) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// State returns a snapshot of the host state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	state := h.state
	if state.Config != nil {
		cfg := *state.Config
		state.Config = &cfg
	}
	return state
}

// Running reports whether a session is running.
func (h *Host) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Status == StatusRunning
}

// Results returns a copy of the points of the current or most recent
// session, in arrival order.
func (h *Host) Results() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Point, len(h.results))
	copy(out, h.results)
	return out
}

// Clear discards the kept points. It fails while a session is running.
func (h *Host) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Status == StatusRunning {
		return ErrSweepInProgress
	}
	h.results = nil
	h.state.Points = 0
	return nil
}

// SetGeneratorFrequency retunes the generator by hand. The running session
// owns the instruments, so this fails with ErrSweepInProgress during a sweep.
func (h *Host) SetGeneratorFrequency(hz float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Status == StatusRunning {
		return ErrSweepInProgress
	}
	monitoring.Logf("[sweep] setting SG frequency to %s Hz", formatHz(hz))
	return h.sg.SetFrequency(hz)
}
