// Package sweep runs frequency sweeps against a spectrum analyzer and signal
// generator pair. A sweep either visits a precomputed list of frequencies
// (finite mode) or keeps splitting the widest unmeasured gap of an existing
// data set (continuous mode). A Host runs one sweep at a time on its own
// goroutine and streams its progress as events.
package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultHaltonPoints is the number of quasi-random points generated when no
// point count is requested.
const DefaultHaltonPoints = 1000

// Halton returns element index of the Halton sequence in base b, a value in
// [0, 1). Index 0 yields 0; sweeps start from index 1.
func Halton(index, base int) float64 {
	result := 0.0
	f := 1.0
	for i := index; i > 0; i /= base {
		f /= float64(base)
		result += f * float64(i%base)
	}
	return result
}

// Linear returns n values evenly spaced over [start, stop], inclusive of both
// ends. n == 1 yields just start.
func Linear(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

// HaltonSpan returns start, then n base-2 Halton points scaled into
// [start, stop] in sequence order, then stop.
func HaltonSpan(start, stop float64, n int) []float64 {
	out := make([]float64, 0, n+2)
	out = append(out, start)
	for i := 1; i <= n; i++ {
		out = append(out, start+(stop-start)*Halton(i, 2))
	}
	return append(out, stop)
}

// Generate returns the frequencies a finite sweep visits, in visiting order.
// points == 0 selects Halton sampling with DefaultHaltonPoints interior points.
func Generate(start, stop float64, points int) ([]float64, error) {
	switch {
	case points < 0:
		return nil, fmt.Errorf("point count must not be negative, got %d", points)
	case points == 0:
		return HaltonSpan(start, stop, DefaultHaltonPoints), nil
	default:
		return Linear(start, stop, points), nil
	}
}
