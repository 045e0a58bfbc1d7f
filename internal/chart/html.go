package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sweeper/internal/sweep"
)

// RenderHTML writes an interactive scatter chart of points to w.
func RenderHTML(w io.Writer, points []sweep.Point, title string) error {
	data := make([]opts.ScatterData, 0, len(points))
	for _, p := range sweep.SortByFrequency(points) {
		data = append(data, opts.ScatterData{Value: []interface{}{p.Frequency, p.Power}})
	}
	summary := sweep.Summarize(points)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("points=%d peak=%.2f dBm @ %.0f Hz", summary.Count, summary.PeakDBm, summary.PeakHz),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Frequency (Hz)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Power (dBm)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("power", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter.Render(w)
}
