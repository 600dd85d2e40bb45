package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/bessim/core/model"
)

// ChartOptions tune WriteChartHTML.
type ChartOptions struct {
	Title string
	// HideEnergy drops the state of charge line.
	HideEnergy bool
}

// WriteChartHTML renders load, grid power after the battery and, when
// present, the limit and stored energy as an interactive line chart.
func WriteChartHTML(w io.Writer, r *model.Result, o ChartOptions) error {
	if r == nil || r.Len() == 0 {
		return fmt.Errorf("chart: empty result")
	}
	title := o.Title
	if title == "" {
		title = r.Strategy
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "bessim " + title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: r.RunID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kW / kWh"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	xAxis := make([]string, r.Len())
	for i, t := range r.Time {
		xAxis[i] = t.Format(time.DateTime)
	}
	line.SetXAxis(xAxis).
		AddSeries("Load", lineData(r.Load)).
		AddSeries("Power after", lineData(r.PowerAfter))
	if len(r.Limits) == r.Len() {
		line.AddSeries("Limit", lineData(r.Limits))
	}
	if !o.HideEnergy {
		line.AddSeries("Energy", lineData(r.Energy))
	}
	return line.Render(w)
}

func lineData(vs []float64) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
