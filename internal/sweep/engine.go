package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sweeper/internal/instrument"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/timeutil"
)

// DefaultSettleDelay is the pause after retuning the generator before the
// analyzer is commanded.
const DefaultSettleDelay = 100 * time.Millisecond

// Emit receives the measurement and log events of a run in occurrence order.
// Seq and Time are filled in by the Host.
type Emit func(Event)

// Engine drives one analyzer and generator pair through a sweep. An Engine
// is not safe for concurrent runs; a Host serializes them.
type Engine struct {
	sa     instrument.SpectrumAnalyzer
	sg     instrument.SignalGenerator
	clock  timeutil.Clock
	settle time.Duration
}

// NewEngine returns an engine using the real clock and DefaultSettleDelay.
func NewEngine(sa instrument.SpectrumAnalyzer, sg instrument.SignalGenerator) *Engine {
	return &Engine{sa: sa, sg: sg, clock: timeutil.RealClock{}, settle: DefaultSettleDelay}
}

// Run executes one sweep and returns its terminal status. The error explains
// a StatusFailed or StatusCancelled result. Whatever the outcome after
// configuration starts, the generator RF output is switched off exactly once
// before Run returns; a failure to do so is logged, not returned.
//
// Cancellation through ctx is checked before each point, never during a
// device call.
func (e *Engine) Run(ctx context.Context, cfg Config, mode Mode, seed []Point, emit Emit) (status Status, err error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if err := cfg.Validate(); err != nil {
		return StatusFailed, err
	}
	if mode != ModeFinite && mode != ModeContinuous {
		return StatusFailed, fmt.Errorf("unknown sweep mode %q", mode)
	}

	start := e.clock.Now()
	defer func() {
		if rfErr := e.sg.EnableRF(false); rfErr != nil {
			e.logf(emit, "Failed to disable SG RF output: %v", rfErr)
		}
		e.logf(emit, "Done running sweep. Sweep took %d seconds.", int(e.clock.Since(start).Seconds()))
	}()

	if err := e.configure(cfg, emit); err != nil {
		return StatusFailed, fmt.Errorf("configuring devices: %w", err)
	}

	switch mode {
	case ModeFinite:
		err = e.runFinite(ctx, cfg, emit)
	case ModeContinuous:
		err = e.runContinuous(ctx, cfg, seed, emit)
	}

	switch {
	case err == nil:
		return StatusCompleted, nil
	case errors.Is(err, ErrConvergenceExhausted):
		return StatusCompleted, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.logf(emit, "Sweep cancellation requested.")
		return StatusCancelled, err
	default:
		e.logf(emit, "Error running sweep: %v", err)
		return StatusFailed, err
	}
}

// configure puts both instruments into the state every point assumes. The
// generator level is set before RF is enabled.
func (e *Engine) configure(cfg Config, emit Emit) error {
	e.logf(emit, "Configuring devices for sweep...")
	steps := []func() error{
		e.sa.SetSingleSweepMode,
		func() error { return e.sa.SetResolutionBandwidth(cfg.RBWHz) },
		e.sa.SetZeroSpan,
		func() error { return e.sg.SetPower(cfg.PowerDBm) },
		func() error { return e.sg.EnableRF(true) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runFinite(ctx context.Context, cfg Config, emit Emit) error {
	freqs, err := Generate(cfg.StartHz, cfg.StopHz, cfg.Points)
	if err != nil {
		return err
	}
	e.logf(emit, "Sweeping %d frequencies", len(freqs))
	for _, f := range freqs {
		if _, err := e.measure(ctx, cfg, f, emit); err != nil {
			return err
		}
	}
	return nil
}

// runContinuous measures any missing endpoint, then repeatedly splits the
// widest gap. The seed slice is not modified.
func (e *Engine) runContinuous(ctx context.Context, cfg Config, seed []Point, emit Emit) error {
	data := make([]Point, len(seed), len(seed)+64)
	copy(data, seed)

	for _, f := range []float64{cfg.StartHz, cfg.StopHz} {
		if containsFrequency(data, f) {
			continue
		}
		p, err := e.measure(ctx, cfg, f, emit)
		if err != nil {
			return err
		}
		data = append(data, p)
	}

	for {
		f, err := NextGapMidpoint(data)
		if err != nil {
			e.logf(emit, "No new measurable points to add. Smallest gap reached. Stopping.")
			return err
		}
		p, err := e.measure(ctx, cfg, f, emit)
		if err != nil {
			return err
		}
		data = append(data, p)
	}
}

// measure takes one point at f. It returns ctx.Err() without touching the
// instruments if the run has been cancelled.
func (e *Engine) measure(ctx context.Context, cfg Config, f float64, emit Emit) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}

	target := f + float64(cfg.OffsetHz)
	if !cfg.TrackingDisabled {
		e.logf(emit, "Setting SG freq: %s", formatHz(target))
		if err := e.sg.SetFrequency(target); err != nil {
			return Point{}, err
		}
		e.clock.Sleep(e.settle)
	}

	e.logf(emit, "Measuring SA (with offset) at %sHz...", formatHz(target))
	if err := e.sa.SetCenterFrequency(target); err != nil {
		return Point{}, err
	}
	if err := e.sa.TakeSweep(); err != nil {
		return Point{}, err
	}
	if err := e.sa.WaitDone(); err != nil {
		return Point{}, err
	}
	power, err := e.sa.MarkerPower()
	if err != nil {
		return Point{}, err
	}
	e.logf(emit, "  Power: %.2f dBm", power)

	p := Point{Frequency: f, Power: power}
	emit(Event{Kind: EventMeasurement, Point: &p})
	return p, nil
}

func (e *Engine) logf(emit Emit, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	monitoring.Logf("[sweep] %s", text)
	emit(Event{Kind: EventLog, Text: text})
}

func containsFrequency(points []Point, f float64) bool {
	for _, p := range points {
		if p.Frequency == f {
			return true
		}
	}
	return false
}

func formatHz(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
