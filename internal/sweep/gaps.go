package sweep

import (
	"errors"
	"math"
	"slices"
)

// ErrConvergenceExhausted is returned when no gap in a data set can be split
// at whole-Hz resolution. It is a normal end of a continuous sweep.
var ErrConvergenceExhausted = errors.New("no measurable gap left")

// NextGapMidpoint returns the frequency a continuous sweep measures next: the
// midpoint of the widest gap between distinct measured frequencies, rounded
// to the nearest Hz with ties to even. The first widest gap in ascending
// order wins. It returns ErrConvergenceExhausted when fewer than two distinct
// frequencies exist or the rounded midpoint is not strictly inside its gap.
func NextGapMidpoint(points []Point) (float64, error) {
	freqs := make([]float64, 0, len(points))
	for _, p := range points {
		freqs = append(freqs, p.Frequency)
	}
	slices.Sort(freqs)
	freqs = slices.Compact(freqs)
	if len(freqs) < 2 {
		return 0, ErrConvergenceExhausted
	}

	widest := 0
	for i := 1; i < len(freqs)-1; i++ {
		if freqs[i+1]-freqs[i] > freqs[widest+1]-freqs[widest] {
			widest = i
		}
	}
	lo, hi := freqs[widest], freqs[widest+1]
	if hi-lo <= 0 {
		return 0, ErrConvergenceExhausted
	}

	mid := math.RoundToEven(lo + (hi-lo)/2)
	if mid <= lo || mid >= hi {
		return 0, ErrConvergenceExhausted
	}
	return mid, nil
}
