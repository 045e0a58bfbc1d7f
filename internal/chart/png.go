// Package chart renders sweep results as a PNG plot or an interactive HTML
// chart.
package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sweeper/internal/sweep"
)

// Default PNG dimensions.
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// NewPlot builds a power-versus-frequency plot. Points are drawn as markers
// joined in frequency order.
func NewPlot(points []sweep.Point, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Power (dBm)"
	p.Add(plotter.NewGrid())

	if len(points) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range sweep.SortByFrequency(points) {
		xys = append(xys, plotter.XY{X: pt.Frequency, Y: pt.Power})
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}

	p.Add(line, scatter)
	return p, nil
}

// WritePNG renders the plot of points as PNG to w.
func WritePNG(w io.Writer, points []sweep.Point, title string) error {
	p, err := NewPlot(points, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the plot of points to a PNG file.
func SavePNG(path string, points []sweep.Point, title string) error {
	p, err := NewPlot(points, title)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
