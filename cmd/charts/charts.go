// Package charts draws the bar and line charts of a comparison as PNG.
package charts

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/airframesio/country-compare/cmd/comparison"
	"github.com/airframesio/country-compare/cmd/present"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrInsufficientSeries is returned when a country has no points to draw
var ErrInsufficientSeries = errors.New("insufficient time series data")

// Default canvas sizes
var (
	BarWidth   = 10 * vg.Inch
	BarHeight  = 6 * vg.Inch
	LineWidth  = 12 * vg.Inch
	LineHeight = 6 * vg.Inch
)

var (
	colorA = color.RGBA{R: 0x34, G: 0x98, B: 0xdb, A: 255}
	colorB = color.RGBA{R: 0xe7, G: 0x4c, B: 0x3c, A: 255}
)

func dashedGrid() *plotter.Grid {
	grid := plotter.NewGrid()
	grid.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	grid.Vertical.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	return grid
}

// Bar builds the bar chart of both current values
func Bar(r *comparison.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Current %s Values", r.Metric)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Country"
	p.Y.Label.Text = r.Column

	grid := dashedGrid()
	grid.Vertical.Color = nil
	p.Add(grid)

	values := []float64{r.LatestA.Value, r.LatestB.Value}
	for i, c := range []color.Color{colorA, colorB} {
		bars, err := plotter.NewBarChart(plotter.Values{values[i]}, vg.Points(60))
		if err != nil {
			return nil, fmt.Errorf("failed to build bar chart: %w", err)
		}
		bars.Color = c
		bars.LineStyle.Width = vg.Length(0)
		bars.XMin = float64(i)
		p.Add(bars)
	}

	hi := math.Max(math.Max(values[0], values[1]), 0)
	lo := math.Min(math.Min(values[0], values[1]), 0)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs: []plotter.XY{
			{X: 0, Y: values[0] + span*0.01},
			{X: 1, Y: values[1] + span*0.01},
		},
		Labels: []string{present.Number(values[0]), present.Number(values[1])},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build bar labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
	}
	p.Add(labels)

	p.NominalX(r.CountryA, r.CountryB)
	p.Y.Min = lo
	p.Y.Max = hi + span*0.1
	return p, nil
}

// Line builds the historical trend chart of both countries
func Line(r *comparison.Result) (*plot.Plot, error) {
	seriesA := r.Series(r.CountryA)
	seriesB := r.Series(r.CountryB)
	if len(seriesA) == 0 || len(seriesB) == 0 {
		return nil, ErrInsufficientSeries
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Historical Trend of %s", r.Metric)
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = r.Column
	p.Add(dashedGrid())
	p.Legend.Top = true

	series := []struct {
		name   string
		points []comparison.Point
		color  color.Color
		glyph  draw.GlyphDrawer
	}{
		{r.CountryA, seriesA, colorA, draw.CircleGlyph{}},
		{r.CountryB, seriesB, colorB, draw.BoxGlyph{}},
	}

	for _, s := range series {
		xys := make(plotter.XYs, len(s.points))
		for i, pt := range s.points {
			xys[i].X = float64(pt.Year)
			xys[i].Y = pt.Value
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to build series for %s: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(2)
		points.Color = s.color
		points.Shape = s.glyph
		points.Radius = vg.Points(3)

		p.Add(line, points)
		p.Legend.Add(s.name, line, points)
	}

	p.Y.Min, p.Y.Max = r.YRange()
	return p, nil
}

// WritePNG renders p as PNG into w
func WritePNG(p *plot.Plot, w io.Writer, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create PNG writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write PNG: %w", err)
	}
	return nil
}

// WriteBar renders the bar chart of r as PNG
func WriteBar(r *comparison.Result, w io.Writer) error {
	p, err := Bar(r)
	if err != nil {
		return err
	}
	return WritePNG(p, w, BarWidth, BarHeight)
}

// WriteLine renders the line chart of r as PNG
func WriteLine(r *comparison.Result, w io.Writer) error {
	p, err := Line(r)
	if err != nil {
		return err
	}
	return WritePNG(p, w, LineWidth, LineHeight)
}
