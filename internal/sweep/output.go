package sweep

import (
	"cmp"
	"encoding/csv"
	"io"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"Frequency (Hz)", "Power (dBm)"}

// SortByFrequency returns a copy of points ordered by ascending frequency.
// Points with equal frequency keep their arrival order.
func SortByFrequency(points []Point) []Point {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b Point) int { return cmp.Compare(a.Frequency, b.Frequency) })
	return out
}

// WriteCSV writes points sorted by frequency, preceded by CSVHeader.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, p := range SortByFrequency(points) {
		if err := cw.Write([]string{
			strconv.FormatFloat(p.Frequency, 'f', -1, 64),
			strconv.FormatFloat(p.Power, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary describes the power readings of a set of points.
type Summary struct {
	Count       int     `json:"count"`
	MinHz       float64 `json:"min_hz"`
	MaxHz       float64 `json:"max_hz"`
	MeanDBm     float64 `json:"mean_dbm"`
	StdDevDBm   float64 `json:"stddev_dbm"`
	PeakDBm     float64 `json:"peak_dbm"`
	PeakHz      float64 `json:"peak_hz"`
	MinPowerDBm float64 `json:"min_power_dbm"`
}

// Summarize computes a Summary. The standard deviation of fewer than two
// points is zero.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	freqs := make([]float64, len(points))
	powers := make([]float64, len(points))
	for i, p := range points {
		freqs[i] = p.Frequency
		powers[i] = p.Power
	}

	peak := floats.MaxIdx(powers)
	s := Summary{
		Count:       len(points),
		MinHz:       floats.Min(freqs),
		MaxHz:       floats.Max(freqs),
		MeanDBm:     stat.Mean(powers, nil),
		PeakDBm:     powers[peak],
		PeakHz:      freqs[peak],
		MinPowerDBm: floats.Min(powers),
	}
	if len(points) > 1 {
		s.StdDevDBm = stat.StdDev(powers, nil)
	}
	return s
}
