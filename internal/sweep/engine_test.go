package sweep

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweeper/internal/instrument"
	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type testBench struct {
	engine *Engine
	sa     *instrument.MockAnalyzer
	sg     *instrument.MockGenerator
	clock  *timeutil.MockClock
}

func newTestBench() *testBench {
	sa, sg := instrument.NewMockBench()
	// Deterministic response: -1 dB per MHz of analyzer center frequency.
	sa.Power = func(f float64) float64 { return -f / 1e6 }
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	e := NewEngine(sa, sg)
	e.clock = clock
	return &testBench{engine: e, sa: sa, sg: sg, clock: clock}
}

type recorder struct {
	events  []Event
	onPoint func(n int)
}

func (r *recorder) emit(ev Event) {
	r.events = append(r.events, ev)
	if ev.Kind == EventMeasurement && r.onPoint != nil {
		r.onPoint(len(r.points()))
	}
}

func (r *recorder) points() []Point {
	var out []Point
	for _, ev := range r.events {
		if ev.Kind == EventMeasurement {
			out = append(out, *ev.Point)
		}
	}
	return out
}

func (r *recorder) logs() []string {
	var out []string
	for _, ev := range r.events {
		if ev.Kind == EventLog {
			out = append(out, ev.Text)
		}
	}
	return out
}

func finiteConfig() Config {
	return Config{StartHz: 1e6, StopHz: 5e6, Points: 5, RBWHz: 1e3, PowerDBm: -10}
}

func TestEngineFiniteEmitsInSequenceOrder(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}

	status, err := b.engine.Run(context.Background(), finiteConfig(), ModeFinite, nil, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	want := []Point{{1e6, -1}, {2e6, -2}, {3e6, -3}, {4e6, -4}, {5e6, -5}}
	if diff := cmp.Diff(want, rec.points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, b.clock.Sleeps(), 5)
	assert.Equal(t, DefaultSettleDelay, b.clock.Sleeps()[0])
}

func TestEngineHaltonOrderMatchesGenerate(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := finiteConfig()
	cfg.Points = 0

	status, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	freqs, err := Generate(cfg.StartHz, cfg.StopHz, 0)
	require.NoError(t, err)
	got := rec.points()
	require.Len(t, got, len(freqs))
	for i, f := range freqs {
		assert.Equal(t, f, got[i].Frequency)
		assert.Equal(t, -f/1e6, got[i].Power)
	}
}

func TestEngineCommandSequence(t *testing.T) {
	b := newTestBench()
	cfg := Config{StartHz: 1e6, StopHz: 2e6, Points: 2, RBWHz: 3e3, PowerDBm: -20, OffsetHz: 500}

	_, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, nil)
	require.NoError(t, err)

	want := []instrument.Call{
		{Device: "SA", Op: "SetSingleSweepMode"},
		{Device: "SA", Op: "SetResolutionBandwidth", Arg: "3000"},
		{Device: "SA", Op: "SetZeroSpan"},
		{Device: "SG", Op: "SetPower", Arg: "-20"},
		{Device: "SG", Op: "EnableRF", Arg: "true"},
		{Device: "SG", Op: "SetFrequency", Arg: "1000500"},
		{Device: "SA", Op: "SetCenterFrequency", Arg: "1000500"},
		{Device: "SA", Op: "TakeSweep"},
		{Device: "SA", Op: "WaitDone"},
		{Device: "SA", Op: "MarkerPower"},
		{Device: "SG", Op: "SetFrequency", Arg: "2000500"},
		{Device: "SA", Op: "SetCenterFrequency", Arg: "2000500"},
		{Device: "SA", Op: "TakeSweep"},
		{Device: "SA", Op: "WaitDone"},
		{Device: "SA", Op: "MarkerPower"},
		{Device: "SG", Op: "EnableRF", Arg: "false"},
	}
	if diff := cmp.Diff(want, b.sa.Log.Calls()); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineOffsetReportsNominalFrequency(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := finiteConfig()
	cfg.OffsetHz = 1e6

	_, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, rec.emit)
	require.NoError(t, err)

	got := rec.points()
	require.Len(t, got, 5)
	assert.Equal(t, Point{Frequency: 1e6, Power: -2}, got[0])
}

func TestEngineTrackingDisabled(t *testing.T) {
	b := newTestBench()
	cfg := finiteConfig()
	cfg.TrackingDisabled = true

	status, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Zero(t, b.sa.Log.Count("SG", "SetFrequency"))
	assert.Empty(t, b.clock.Sleeps())
	assert.Equal(t, 5, b.sa.Log.Count("SA", "SetCenterFrequency"))
}

func TestEngineLogLines(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := finiteConfig()
	cfg.Points = 1

	_, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, rec.emit)
	require.NoError(t, err)

	logs := rec.logs()
	assert.Equal(t, "Configuring devices for sweep...", logs[0])
	assert.Contains(t, logs, "Setting SG freq: 1000000")
	assert.Contains(t, logs, "Measuring SA (with offset) at 1000000Hz...")
	assert.Contains(t, logs, "  Power: -1.00 dBm")
	assert.Equal(t, "Done running sweep. Sweep took 0 seconds.", logs[len(logs)-1])
}

func TestEngineCancelAfterKPoints(t *testing.T) {
	for _, k := range []int{1, 3} {
		b := newTestBench()
		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{onPoint: func(n int) {
			if n == k {
				cancel()
			}
		}}

		status, err := b.engine.Run(ctx, finiteConfig(), ModeFinite, nil, rec.emit)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StatusCancelled, status)
		assert.Len(t, rec.points(), k)
		assert.Equal(t, k, b.sa.Log.Count("SA", "SetCenterFrequency"), "no instrument command after cancel")
		assert.Equal(t, []string{"false"}, rfDisables(b))
		cancel()
	}
}

func TestEngineCancelledBeforeFirstPoint(t *testing.T) {
	b := newTestBench()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, _ := b.engine.Run(ctx, finiteConfig(), ModeFinite, nil, nil)
	assert.Equal(t, StatusCancelled, status)
	assert.Zero(t, b.sa.Log.Count("SA", "SetCenterFrequency"))
	assert.Equal(t, []string{"false"}, rfDisables(b))
}

func rfDisables(b *testBench) []string {
	var out []string
	for _, arg := range b.sa.Log.Args("SG", "EnableRF") {
		if arg == "false" {
			out = append(out, arg)
		}
	}
	return out
}

func TestEngineDeviceErrorMidSweep(t *testing.T) {
	b := newTestBench()
	busErr := errors.New("GPIB timeout")
	b.sa.FailOn("MarkerPower", 3, busErr)
	rec := &recorder{}

	status, err := b.engine.Run(context.Background(), finiteConfig(), ModeFinite, nil, rec.emit)
	assert.Equal(t, StatusFailed, status)
	assert.ErrorIs(t, err, busErr)
	assert.True(t, instrument.IsDeviceError(err))
	assert.Len(t, rec.points(), 2)
	assert.Equal(t, []string{"false"}, rfDisables(b))
}

func TestEngineConfigureError(t *testing.T) {
	b := newTestBench()
	b.sg.FailOn("SetPower", 1, errors.New("unlistened"))

	status, err := b.engine.Run(context.Background(), finiteConfig(), ModeFinite, nil, nil)
	assert.Equal(t, StatusFailed, status)
	assert.Error(t, err)
	// RF was never enabled but the cleanup still switches it off, once.
	assert.Equal(t, []string{"false"}, b.sa.Log.Args("SG", "EnableRF"))
}

func TestEngineCleanupFailureIsLoggedOnly(t *testing.T) {
	b := newTestBench()
	b.sg.FailOn("EnableRF", 2, errors.New("bus hung"))
	rec := &recorder{}

	status, err := b.engine.Run(context.Background(), finiteConfig(), ModeFinite, nil, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.True(t, slices.ContainsFunc(rec.logs(), func(s string) bool {
		return s == "Failed to disable SG RF output: MockSG: EnableRF: bus hung"
	}))
}

func TestEngineCleanupExactlyOncePerStatus(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(b *testBench, cancel context.CancelFunc) *recorder
		status Status
	}{
		{"completed", func(*testBench, context.CancelFunc) *recorder { return &recorder{} }, StatusCompleted},
		{"cancelled", func(_ *testBench, cancel context.CancelFunc) *recorder {
			return &recorder{onPoint: func(int) { cancel() }}
		}, StatusCancelled},
		{"failed", func(b *testBench, _ context.CancelFunc) *recorder {
			b.sa.FailOn("WaitDone", 2, errors.New("timeout"))
			return &recorder{}
		}, StatusFailed},
	}
	for _, tt := range tests {
		for _, mode := range []Mode{ModeFinite, ModeContinuous} {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				b := newTestBench()
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()
				rec := tt.setup(b, cancel)

				cfg := Config{StartHz: 0, StopHz: 16, Points: 4, RBWHz: 1}
				status, _ := b.engine.Run(ctx, cfg, mode, nil, rec.emit)
				assert.Equal(t, tt.status, status)
				assert.Equal(t, []string{"false"}, rfDisables(b))
			})
		}
	}
}

func TestEngineRejectsInvalidConfigBeforeIO(t *testing.T) {
	b := newTestBench()
	cfg := finiteConfig()
	cfg.RBWHz = 0

	status, err := b.engine.Run(context.Background(), cfg, ModeFinite, nil, nil)
	assert.Equal(t, StatusFailed, status)
	assert.Error(t, err)
	assert.Empty(t, b.sa.Log.Calls())
}

func TestEngineContinuousConvergence(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := Config{StartHz: 0, StopHz: 100, RBWHz: 1}
	seed := []Point{{Frequency: 0, Power: -50}, {Frequency: 100, Power: -50}}

	status, err := b.engine.Run(context.Background(), cfg, ModeContinuous, seed, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	got := rec.points()
	require.Len(t, got, 99)
	freqs := make([]float64, len(got))
	for i, p := range got {
		freqs[i] = p.Frequency
	}
	assert.Equal(t, []float64{50, 25, 75, 12, 38, 62, 88}, freqs[:7])

	slices.Sort(freqs)
	for i, f := range freqs {
		assert.Equal(t, float64(i+1), f)
	}

	// The seed is not modified and a further run adds nothing.
	assert.Len(t, seed, 2)
	_, err = NextGapMidpoint(append(seed, got...))
	assert.ErrorIs(t, err, ErrConvergenceExhausted)
}

func TestEngineContinuousBootstrapsEndpoints(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := Config{StartHz: 10e6, StopHz: 14e6, RBWHz: 1}
	seed := []Point{{Frequency: 14e6, Power: -7}}
	stopAfter := 3
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.onPoint = func(n int) {
		if n == stopAfter {
			cancel()
		}
	}

	status, _ := b.engine.Run(ctx, cfg, ModeContinuous, seed, rec.emit)
	assert.Equal(t, StatusCancelled, status)
	want := []Point{{10e6, -10}, {12e6, -12}, {11e6, -11}}
	if diff := cmp.Diff(want, rec.points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineContinuousEmptySeedMeasuresBothEnds(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := Config{StartHz: 5, StopHz: 7, RBWHz: 1}

	status, err := b.engine.Run(context.Background(), cfg, ModeContinuous, nil, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	want := []Point{{5, -5e-6}, {7, -7e-6}, {6, -6e-6}}
	if diff := cmp.Diff(want, rec.points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineContinuousSingleFrequency(t *testing.T) {
	b := newTestBench()
	rec := &recorder{}
	cfg := Config{StartHz: 5e6, StopHz: 5e6, RBWHz: 1}

	status, err := b.engine.Run(context.Background(), cfg, ModeContinuous, nil, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	assert.Len(t, rec.points(), 1)
}
