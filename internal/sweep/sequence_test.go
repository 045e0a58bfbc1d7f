package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalton(t *testing.T) {
	tests := []struct {
		index, base int
		want        float64
	}{
		{0, 2, 0},
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{4, 2, 0.125},
		{5, 2, 0.625},
		{1, 3, 1.0 / 3},
		{2, 3, 2.0 / 3},
		{3, 3, 1.0 / 9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Halton(tt.index, tt.base), 1e-12, "Halton(%d, %d)", tt.index, tt.base)
	}
}

func TestLinear(t *testing.T) {
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, Linear(0, 10, 5))
	assert.Equal(t, []float64{3}, Linear(3, 10, 1))
	assert.Nil(t, Linear(0, 10, 0))
	assert.Equal(t, []float64{10, 5, 0}, Linear(10, 0, 3))
}

func TestGenerateLinear(t *testing.T) {
	got, err := Generate(0, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, got)
}

func TestGenerateHalton(t *testing.T) {
	start, stop := 1e6, 3e9
	got, err := Generate(start, stop, 0)
	require.NoError(t, err)

	require.Len(t, got, DefaultHaltonPoints+2)
	assert.Equal(t, start, got[0])
	assert.Equal(t, stop, got[len(got)-1])
	for i, f := range got[1 : len(got)-1] {
		assert.Greater(t, f, start, "interior point %d", i)
		assert.Less(t, f, stop, "interior point %d", i)
	}
	// Sequence order, not sorted: the first interior points bisect the range.
	assert.Equal(t, start+(stop-start)*0.5, got[1])
	assert.Equal(t, start+(stop-start)*0.25, got[2])
	assert.Equal(t, start+(stop-start)*0.75, got[3])
}

func TestGenerateNegativePoints(t *testing.T) {
	_, err := Generate(0, 10, -1)
	assert.Error(t, err)
}
