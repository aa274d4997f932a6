package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix points chart pages at the published echarts assets.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RenderAccuracyChart writes a standalone HTML page with per-class placement
// error bars and a completed-session duration histogram.
func RenderAccuracyChart(w io.Writer, classes []ClassAccuracy, durations []time.Duration) error {
	labels := make([]string, 0, len(classes))
	mean := make([]opts.BarData, 0, len(classes))
	p50 := make([]opts.BarData, 0, len(classes))
	p85 := make([]opts.BarData, 0, len(classes))
	p98 := make([]opts.BarData, 0, len(classes))
	samples := 0
	for _, c := range classes {
		labels = append(labels, c.Label)
		mean = append(mean, opts.BarData{Value: round2(c.MeanPosition)})
		p50 = append(p50, opts.BarData{Value: round2(c.P50Position)})
		p85 = append(p85, opts.BarData{Value: round2(c.P85Position)})
		p98 = append(p98, opts.BarData{Value: round2(c.P98Position)})
		samples += c.Count
	}

	accuracy := charts.NewBar()
	accuracy.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Placement Accuracy", Theme: "dark", Width: "1200px", Height: "520px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Placement Error by Piece", Subtitle: fmt.Sprintf("samples=%d sessions=%d (board units)", samples, len(durations))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Position error", NameLocation: "middle", NameGap: 40}),
	)
	accuracy.SetXAxis(labels).
		AddSeries("mean", mean).
		AddSeries("p50", p50).
		AddSeries("p85", p85).
		AddSeries("p98", p98)

	buckets := DurationHistogram(durations, 30*time.Second)
	histLabels := make([]string, 0, len(buckets))
	histData := make([]opts.BarData, 0, len(buckets))
	for _, b := range buckets {
		histLabels = append(histLabels, b.Label)
		histData = append(histData, opts.BarData{Value: b.Count})
	}

	hist := charts.NewBar()
	hist.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Session Durations", Subtitle: fmt.Sprintf("completed=%d", len(durations))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	hist.SetXAxis(histLabels).
		AddSeries("sessions", histData,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(accuracy, hist)
	return page.Render(w)
}

// round2 trims chart values to two decimals so tooltips stay readable.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
