package sweep

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVSortsByFrequency(t *testing.T) {
	points := []Point{{3e6, -30.5}, {1e6, -10}, {2.5e6, -25.25}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, points))

	want := "Frequency (Hz),Power (dBm)\n" +
		"1000000,-10\n" +
		"2500000,-25.25\n" +
		"3000000,-30.5\n"
	assert.Equal(t, want, buf.String())
	// The input keeps its arrival order.
	assert.Equal(t, 3e6, points[0].Frequency)
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Frequency (Hz),Power (dBm)\n", buf.String())
}

func TestSortByFrequencyStable(t *testing.T) {
	got := SortByFrequency([]Point{{2, -1}, {1, -2}, {2, -3}})
	assert.Equal(t, []Point{{1, -2}, {2, -1}, {2, -3}}, got)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Point{{1e6, -10}, {2e6, -20}, {3e6, -30}})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1e6, s.MinHz)
	assert.Equal(t, 3e6, s.MaxHz)
	assert.InDelta(t, -20, s.MeanDBm, 1e-9)
	assert.InDelta(t, 10, s.StdDevDBm, 1e-9)
	assert.Equal(t, -10.0, s.PeakDBm)
	assert.Equal(t, 1e6, s.PeakHz)
	assert.Equal(t, -30.0, s.MinPowerDBm)

	assert.Equal(t, Summary{}, Summarize(nil))
	one := Summarize([]Point{{5, -1}})
	assert.Zero(t, one.StdDevDBm)
	assert.Equal(t, 1, one.Count)
}
