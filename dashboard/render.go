package dashboard

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// RENDER: ChartConfig → SVG via go-chart
// ============================================================================
// go-chart has no box plot, stacked histogram or horizontal bar. Boxes and
// histogram bars are drawn as thick line segments (boxes on a log10 axis)
// and horizontal bars are drawn vertically.
// ============================================================================

// ErrNoData is returned when asked to render an empty chart.
var ErrNoData = errors.New("chart has no data")

const (
	svgWidth  = 900
	svgHeight = 480
)

// RenderSVG writes cfg as an SVG document.
func RenderSVG(w io.Writer, cfg *engine.ChartConfig) error {
	if cfg.IsEmpty() {
		return ErrNoData
	}
	switch cfg.ChartType {
	case "pie":
		return renderPie(w, cfg)
	case "histogram":
		ch, err := histogramChart(cfg)
		if err != nil {
			return err
		}
		return ch.Render(chart.SVG, w)
	case "box":
		ch, err := boxChart(cfg)
		if err != nil {
			return err
		}
		return ch.Render(chart.SVG, w)
	case "bar":
		return renderBar(w, cfg)
	}
	return fmt.Errorf("unsupported chart type %q", cfg.ChartType)
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func renderPie(w io.Writer, cfg *engine.ChartConfig) error {
	points := cfg.Series[0].Data
	values := make([]chart.Value, 0, len(points))
	for i, p := range points {
		v := chart.Value{Value: p.Value, Label: p.Text}
		if i < len(cfg.Colors) {
			v.Style = chart.Style{FillColor: color(cfg.Colors[i]), StrokeColor: drawing.ColorWhite}
		}
		values = append(values, v)
	}
	pie := chart.PieChart{
		Title:  cfg.Title,
		Width:  svgHeight,
		Height: svgHeight,
		Values: values,
	}
	return pie.Render(chart.SVG, w)
}

// histogramChart stacks the level series bin by bin. Each bar is a thick
// vertical segment; threshold markers are dashed vertical lines.
func histogramChart(cfg *engine.ChartConfig) (chart.Chart, error) {
	first := cfg.Series[0].Data
	bins := len(first)
	starts := make([]float64, bins)
	for b, p := range first {
		v, err := strconv.ParseFloat(p.Label, 64)
		if err != nil {
			return chart.Chart{}, fmt.Errorf("bin %d label %q: %w", b, p.Label, err)
		}
		starts[b] = v
	}
	width := 1.0
	if bins > 1 {
		width = starts[1] - starts[0]
	}

	var series []chart.Series
	var ticks []chart.Tick
	stroke := math.Max(2, 12*50/float64(bins))
	top := 0.0
	for b := 0; b < bins; b++ {
		x := starts[b] + width/2
		base := 0.0
		for _, s := range cfg.Series {
			if b >= len(s.Data) || s.Data[b].Value == 0 {
				continue
			}
			next := base + s.Data[b].Value
			series = append(series, segment(s.Name, x, x, base, next, color(s.Color), stroke))
			base = next
		}
		top = math.Max(top, base)
		if b%10 == 0 {
			ticks = append(ticks, chart.Tick{Value: starts[b], Label: first[b].Label})
		}
	}
	if top <= 0 {
		top = 1
	}

	xlo, xhi := starts[0], starts[bins-1]+width
	for _, m := range cfg.Markers {
		series = append(series, chart.ContinuousSeries{
			Name:    m.Label,
			XValues: []float64{m.Value, m.Value},
			YValues: []float64{0, top * 1.05},
			Style: chart.Style{
				StrokeColor:     markerColor(m.Color),
				StrokeWidth:     2,
				StrokeDashArray: []float64{6, 4},
			},
		})
		xlo = math.Min(xlo, m.Value)
		xhi = math.Max(xhi, m.Value)
	}

	ch := chart.Chart{
		Title:  cfg.Title,
		Width:  svgWidth,
		Height: svgHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:  cfg.XAxis,
			Range: &chart.ContinuousRange{Min: xlo, Max: xhi},
			Ticks: spanTicks(ticks, xlo, xhi, binLabel),
		},
		YAxis: chart.YAxis{
			Name:  cfg.YAxis,
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Series: series,
	}
	return ch, nil
}

func binLabel(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

// spanTicks makes the ticks reach lo and hi. go-chart takes the X range
// from the ticks whenever any are set, ignoring XAxis.Range.
func spanTicks(ticks []chart.Tick, lo, hi float64, label func(float64) string) []chart.Tick {
	out := make([]chart.Tick, 0, len(ticks)+2)
	for _, t := range ticks {
		if t.Value >= lo && t.Value <= hi {
			out = append(out, t)
		}
	}
	if len(out) == 0 || out[0].Value > lo {
		out = append([]chart.Tick{{Value: lo, Label: label(lo)}}, out...)
	}
	if out[len(out)-1].Value < hi {
		out = append(out, chart.Tick{Value: hi, Label: label(hi)})
	}
	return out
}

func markerColor(name string) drawing.Color {
	switch name {
	case "orange":
		return color("f59e0b")
	case "red":
		return color("ef4444")
	}
	return color(name)
}

func segment(name string, x0, x1, y0, y1 float64, c drawing.Color, width float64) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: []float64{x0, x1},
		YValues: []float64{y0, y1},
		Style:   chart.Style{StrokeColor: c, StrokeWidth: width},
	}
}

func renderBar(w io.Writer, cfg *engine.ChartConfig) error {
	series := cfg.Series[0]
	bars := make([]chart.Value, 0, len(series.Data))
	top := 0.0
	for _, p := range series.Data {
		bars = append(bars, chart.Value{
			Value: p.Value,
			Label: truncate(p.Label, 18),
			Style: chart.Style{FillColor: color(series.Color), StrokeColor: color(series.Color)},
		})
		top = math.Max(top, p.Value)
	}
	if top <= 0 {
		top = 1
	}
	bc := chart.BarChart{
		Title:    cfg.Title,
		Width:    svgWidth,
		Height:   svgHeight,
		BarWidth: 32,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Bottom: 60},
		},
		YAxis: chart.YAxis{
			Name:  cfg.XAxis,
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
	return bc.Render(chart.SVG, w)
}

// boxChart draws whiskers, the interquartile box and the median of each
// series at x = 1..n on a log10 value axis.
func boxChart(cfg *engine.ChartConfig) (chart.Chart, error) {
	var series []chart.Series
	var ticks []chart.Tick
	lo, hi := math.Inf(1), math.Inf(-1)

	for i, s := range cfg.Series {
		if s.Box == nil {
			continue
		}
		x := float64(i + 1)
		c := color(s.Color)
		b := s.Box
		wlo, q1, med, q3, whi := math.Log10(b.Min), math.Log10(b.Q1), math.Log10(b.Median), math.Log10(b.Q3), math.Log10(b.Max)

		series = append(series,
			segment(s.Name+" whisker", x, x, wlo, whi, c, 2),
			segment(s.Name, x, x, q1, q3, c, 40),
			segment(s.Name+" median", x-0.12, x+0.12, med, med, drawing.ColorWhite, 3),
		)
		ticks = append(ticks, chart.Tick{Value: x, Label: s.Name})
		lo = math.Min(lo, wlo)
		hi = math.Max(hi, whi)
	}
	if len(series) == 0 {
		return chart.Chart{}, ErrNoData
	}

	n := float64(len(cfg.Series))
	ch := chart.Chart{
		Title:  cfg.Title,
		Width:  svgWidth,
		Height: svgHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:  cfg.XAxis,
			Range: &chart.ContinuousRange{Min: 0.5, Max: n + 0.5},
			Ticks: spanTicks(ticks, 0.5, n+0.5, func(float64) string { return "" }),
		},
		YAxis: chart.YAxis{
			Name:  "log10 " + cfg.YAxis,
			Range: &chart.ContinuousRange{Min: math.Floor(lo) - 0.25, Max: math.Ceil(hi) + 0.25},
		},
		Series: series,
	}
	return ch, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
