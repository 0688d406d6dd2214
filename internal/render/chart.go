package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"docforge.org/internal/record"
)

// Above this row count a bar chart becomes unreadable and the engine
// falls back to a line chart.
const maxBarRows = 12

const (
	chartWidth  = 800
	chartHeight = 420
)

// renderChart rasterizes a chart-eligible table block to PNG. Bar chart
// when there is exactly one numeric series and few enough rows, line
// chart otherwise. The first non-numeric column labels the X axis; when
// every column is numeric the row index does.
func (e *Engine) renderChart(ctx context.Context, path string, t *record.Table) (Image, error) {
	if err := e.charts.Acquire(ctx, 1); err != nil {
		return Image{}, err
	}
	defer e.charts.Release(1)

	numeric := t.NumericColumns()
	if len(numeric) == 0 || len(t.Rows) < 2 {
		return Image{}, fmt.Errorf("table %s is not chart-eligible", path)
	}
	labels := rowLabels(t)

	var buf bytes.Buffer
	var err error
	if chartKind(t) == chartBar {
		err = renderBar(&buf, labels, seriesValues(t, numeric[0]))
	} else {
		err = renderLines(&buf, numeric, t)
	}
	if err != nil {
		return Image{}, fmt.Errorf("rasterize chart: %w", err)
	}
	return Image{
		Ref:    path,
		MIME:   "image/png",
		Data:   buf.Bytes(),
		Width:  chartWidth,
		Height: chartHeight,
	}, nil
}

const (
	chartBar  = "bar"
	chartLine = "line"
)

// chartKind picks the chart type for a table block: bar for a single
// numeric series with at most maxBarRows rows, line otherwise.
func chartKind(t *record.Table) string {
	if len(t.NumericColumns()) == 1 && len(t.Rows) <= maxBarRows {
		return chartBar
	}
	return chartLine
}

func rowLabels(t *record.Table) []string {
	labels := make([]string, len(t.Rows))
	if col, ok := t.FirstTextColumn(); ok {
		for i, row := range t.Rows {
			labels[i] = row[col].String()
		}
		return labels
	}
	for i := range t.Rows {
		labels[i] = fmt.Sprintf("%d", i+1)
	}
	return labels
}

func seriesValues(t *record.Table, col string) []float64 {
	vals := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[col].Float()
	}
	return vals
}

func renderBar(buf *bytes.Buffer, labels []string, values []float64) error {
	bars := make([]chart.Value, len(values))
	for i, v := range values {
		bars[i] = chart.Value{Label: labels[i], Value: v}
	}
	bc := chart.BarChart{
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 40,
		Bars:     bars,
	}
	return bc.Render(chart.PNG, buf)
}

func renderLines(buf *bytes.Buffer, numeric []string, t *record.Table) error {
	xs := make([]float64, len(t.Rows))
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	series := make([]chart.Series, 0, len(numeric))
	for _, col := range numeric {
		series = append(series, chart.ContinuousSeries{
			Name:    col,
			XValues: xs,
			YValues: seriesValues(t, col),
		})
	}
	c := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Series: series,
	}
	return c.Render(chart.PNG, buf)
}
