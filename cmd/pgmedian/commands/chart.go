package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartLineWidth = 2

// ErrNoChartData is returned when nothing plottable was seen: charts cover
// numeral streams only.
var ErrNoChartData = errors.New("no numeral medians to chart")

// renderChart plots the running median over row numbers into an HTML file.
func renderChart(result *streamResult, path string) error {
	if len(result.chartValues) == 0 {
		return ErrNoChartData
	}

	series := make([]opts.LineData, len(result.chartValues))
	for i, v := range result.chartValues {
		series[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Running Median"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Row"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Median"}),
	)
	line.SetXAxis(result.chartLabels)
	line.AddSeries("Median", series,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: chartLineWidth}),
	)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	defer file.Close()

	err = line.Render(file)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
