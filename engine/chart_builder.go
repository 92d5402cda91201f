package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// CHART BUILDER: One pure function per dashboard chart
// ============================================================================
// Each builder declares its Requirement, checks it against the view and
// returns an empty ChartConfig (with Reason set) when a column is missing.
// Builders never fail and never return a partial chart.
// ============================================================================

// Fallback palette for labels outside the risk levels.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Chart names, used by the HTTP layer to address a single chart.
const (
	ChartDistribution = "distribution"
	ChartHistogram    = "histogram"
	ChartBoxplot      = "boxplot"
	ChartRules        = "rules"
	ChartInstitutions = "institutions"
)

// ChartNames lists every chart builder, in page order.
var ChartNames = []string{ChartDistribution, ChartHistogram, ChartBoxplot, ChartRules, ChartInstitutions}

var (
	distributionReq = schema.Require(ChartDistribution, schema.Column(schema.RiskLevel))
	histogramReq    = schema.Require(ChartHistogram, schema.Score, schema.Column(schema.RiskLevel))
	boxplotReq      = schema.Require(ChartBoxplot, schema.Column(schema.TotalIncome), schema.Column(schema.RiskLevel))
	rulesReq        = schema.Require(ChartRules, schema.Column(schema.RiskLevel))
	institutionReq  = schema.Require(ChartInstitutions, schema.Column(schema.Institution), schema.Column(schema.RiskLevel), schema.Score)
)

// BuildChart dispatches to the builder registered under name. ok is false
// for an unknown name.
func BuildChart(name string, view View, opts ...Option) (chart *ChartConfig, ok bool) {
	switch name {
	case ChartDistribution:
		return BuildDistribution(view), true
	case ChartHistogram:
		return BuildScoreHistogram(view, opts...), true
	case ChartBoxplot:
		return BuildIncomeBoxplot(view), true
	case ChartRules:
		return BuildRuleActivation(view, opts...), true
	case ChartInstitutions:
		return BuildInstitutionChart(view, opts...), true
	}
	return nil, false
}

// ============================================================================
// DISTRIBUTION: pie of rows per risk level
// ============================================================================

// BuildDistribution counts rows per risk level, largest first.
func BuildDistribution(view View) *ChartConfig {
	chart := &ChartConfig{
		ChartType:  "pie",
		Title:      "Distribución de Niveles de Riesgo",
		ShowLegend: true,
	}
	capb := schema.Check(view, distributionReq)
	if !capb.Present {
		return emptyChart(chart, capb)
	}

	counts := make(map[string]int)
	var labels []string
	total := 0
	for i := 0; i < view.Len(); i++ {
		l := view.Text(i, schema.RiskLevel)
		if l == "" {
			continue
		}
		if _, seen := counts[l]; !seen {
			labels = append(labels, l)
		}
		counts[l]++
		total++
	}
	if total == 0 {
		chart.Reason = "no rows"
		return chart
	}

	sort.SliceStable(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	points := make([]ChartPoint, 0, len(labels))
	for _, l := range labels {
		points = append(points, ChartPoint{
			Label: l,
			Value: float64(counts[l]),
			Text:  fmt.Sprintf("%s %s", l, FormatPercent(Share(counts[l], total), 1)),
		})
	}
	chart.Series = []ChartSeries{{Name: "Declaraciones", Data: points}}
	chart.Colors = levelColors(labels)
	return chart
}

// ============================================================================
// SCORE HISTOGRAM: stacked by level, with threshold markers
// ============================================================================

// BuildScoreHistogram buckets the composite score into equal-width bins
// over [min, max] of the finite scores, one series per risk level.
func BuildScoreHistogram(view View, opts ...Option) *ChartConfig {
	cfg := applyOptions(opts)
	chart := &ChartConfig{
		ChartType:  "histogram",
		Title:      "Distribución del Score de Riesgo",
		XAxis:      "Score de Riesgo",
		YAxis:      "Frecuencia",
		Stacked:    true,
		ShowLegend: true,
		Markers: []Marker{
			{Value: cfg.MediumMarker, Label: "Umbral Medio", Color: "orange"},
			{Value: cfg.HighMarker, Label: "Umbral Alto", Color: "red"},
		},
	}
	capb := schema.Check(view, histogramReq)
	if !capb.Present {
		return emptyChart(chart, capb)
	}
	scoreCol := capb.Column(schema.Score.Key)
	chart.XAxis = "Score de Riesgo (" + scoreCol + ")"

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < view.Len(); i++ {
		v := view.Number(i, scoreCol)
		if !isFinite(v) || view.Text(i, schema.RiskLevel) == "" {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		chart.Reason = "no finite scores"
		return chart
	}
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}

	bins := cfg.HistogramBins
	width := (hi - lo) / float64(bins)
	counts := make(map[string][]int)
	var labels []string
	for i := 0; i < view.Len(); i++ {
		v := view.Number(i, scoreCol)
		l := view.Text(i, schema.RiskLevel)
		if !isFinite(v) || l == "" {
			continue
		}
		if _, ok := counts[l]; !ok {
			counts[l] = make([]int, bins)
			labels = append(labels, l)
		}
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[l][b]++
	}

	labels = orderLevels(labels)
	for _, l := range labels {
		points := make([]ChartPoint, bins)
		for b := 0; b < bins; b++ {
			start := lo + float64(b)*width
			points[b] = ChartPoint{
				Label: fmt.Sprintf("%.3f", start),
				Value: float64(counts[l][b]),
				Text:  fmt.Sprintf("[%.3f, %.3f)", start, start+width),
			}
		}
		chart.Series = append(chart.Series, ChartSeries{Name: l, Data: points, Color: levelColor(l, len(chart.Series))})
	}
	chart.Colors = levelColors(labels)
	return chart
}

// ============================================================================
// INCOME BOXPLOT: per level, on a log axis
// ============================================================================

// BuildIncomeBoxplot summarizes total income per risk level. Only finite,
// strictly positive incomes are plotted since the value axis is
// logarithmic.
func BuildIncomeBoxplot(view View) *ChartConfig {
	chart := &ChartConfig{
		ChartType: "box",
		Title:     "Distribución de Ingresos por Categoría de Riesgo",
		XAxis:     "Categoría de Riesgo",
		YAxis:     "Total de Ingresos (MXN)",
		LogScale:  true,
	}
	capb := schema.Check(view, boxplotReq)
	if !capb.Present {
		return emptyChart(chart, capb)
	}

	values := make(map[string][]float64)
	var labels []string
	for i := 0; i < view.Len(); i++ {
		l := view.Text(i, schema.RiskLevel)
		v := view.Number(i, schema.TotalIncome)
		if l == "" || !isFinite(v) || v <= 0 {
			continue
		}
		if _, ok := values[l]; !ok {
			labels = append(labels, l)
		}
		values[l] = append(values[l], v)
	}
	if len(labels) == 0 {
		chart.Reason = "no positive incomes"
		return chart
	}

	labels = orderLevels(labels)
	for _, l := range labels {
		chart.Series = append(chart.Series, ChartSeries{
			Name:  l,
			Box:   boxStats(values[l]),
			Color: levelColor(l, len(chart.Series)),
		})
	}
	chart.Colors = levelColors(labels)
	return chart
}

func boxStats(values []float64) *BoxStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := &BoxStats{
		Count:  len(sorted),
		Q1:     quantileSorted(sorted, 0.25),
		Median: quantileSorted(sorted, 0.5),
		Q3:     quantileSorted(sorted, 0.75),
	}
	iqr := s.Q3 - s.Q1
	s.LowerFence = s.Q1 - 1.5*iqr
	s.UpperFence = s.Q3 + 1.5*iqr

	s.Min, s.Max = s.Q1, s.Q3
	for _, v := range sorted {
		switch {
		case v < s.LowerFence:
			s.OutlierLows++
		case v > s.UpperFence:
			s.OutlierHigh++
		default:
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
	}
	return s
}

// ============================================================================
// RULE ACTIVATION: high-risk rows only
// ============================================================================

// RuleRate is the activation rate of one rule among high-risk rows.
type RuleRate struct {
	Rule     schema.Rule `json:"rule"`
	Rate     float64     `json:"rate"` // percentage in [0,100]
	Active   int         `json:"active"`
	Observed int         `json:"observed"`
}

// RuleActivation computes per-rule activation percentages over the rows
// labelled high risk, sorted ascending. Rules with no observed flag are
// skipped. Returns nil when no rule column is present or no row is high
// risk.
func RuleActivation(view View, opts ...Option) []RuleRate {
	cfg := applyOptions(opts)
	if !schema.Check(view, rulesReq).Present {
		return nil
	}
	rules := cfg.Rules.Present(view)
	if len(rules) == 0 {
		return nil
	}
	high := where(view, func(i int) bool {
		return view.Text(i, schema.RiskLevel) == schema.LevelHigh
	})
	if high.Len() == 0 {
		return nil
	}

	rates := make([]RuleRate, 0, len(rules))
	for _, r := range rules {
		rr := RuleRate{Rule: r}
		for i := 0; i < high.Len(); i++ {
			v := high.Number(i, r.Column)
			if math.IsNaN(v) {
				continue
			}
			rr.Observed++
			if v == 1 {
				rr.Active++
			}
		}
		if rr.Observed == 0 {
			continue
		}
		rr.Rate = Share(rr.Active, rr.Observed) * 100
		rates = append(rates, rr)
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Rate < rates[j].Rate })
	return rates
}

// BuildRuleActivation charts RuleActivation as horizontal bars.
func BuildRuleActivation(view View, opts ...Option) *ChartConfig {
	chart := &ChartConfig{
		ChartType:   "bar",
		Title:       "Reglas Más Activadas en Casos de Riesgo Alto",
		XAxis:       "Porcentaje de Activación (%)",
		YAxis:       "Regla",
		Orientation: "h",
	}
	capb := schema.Check(view, rulesReq)
	if !capb.Present {
		return emptyChart(chart, capb)
	}
	rates := RuleActivation(view, opts...)
	if len(rates) == 0 {
		chart.Reason = "no rule columns or no high-risk rows"
		return chart
	}

	points := make([]ChartPoint, 0, len(rates))
	for _, r := range rates {
		points = append(points, ChartPoint{
			Label: r.Rule.Column,
			Value: RoundTo(r.Rate, 2),
			Text:  fmt.Sprintf("%.1f%%", r.Rate),
		})
	}
	chart.Series = []ChartSeries{{Name: "Activación %", Data: points, Color: schema.LevelColors[schema.LevelHigh]}}
	return chart
}

// ============================================================================
// INSTITUTION RANKING: share of high-risk cases
// ============================================================================

// RankInstitutions groups by institution, drops institutions below the
// ranking floor, sorts by high-risk share and keeps the top entries.
func RankInstitutions(view View, opts ...Option) ([]InstitutionStats, schema.Capability) {
	cfg := applyOptions(opts)
	capb := schema.Check(view, institutionReq)
	if !capb.Present {
		return nil, capb
	}

	all := GroupByInstitution(view, capb.Column(schema.Score.Key))
	kept := all[:0]
	for _, s := range all {
		if s.Count >= cfg.RankingFloor {
			kept = append(kept, s)
		}
	}
	SortByHighShare(kept)
	if len(kept) > cfg.RankingLimit {
		kept = kept[:cfg.RankingLimit]
	}
	return kept, capb
}

// BuildInstitutionChart charts RankInstitutions as horizontal bars.
func BuildInstitutionChart(view View, opts ...Option) *ChartConfig {
	cfg := applyOptions(opts)
	chart := &ChartConfig{
		ChartType:   "bar",
		Title:       fmt.Sprintf("Top %d Dependencias por %% de Casos en Riesgo Alto", cfg.RankingLimit),
		XAxis:       "% de casos en Riesgo Alto",
		YAxis:       "Dependencia",
		Orientation: "h",
	}
	ranked, capb := RankInstitutions(view, opts...)
	if !capb.Present {
		return emptyChart(chart, capb)
	}
	if len(ranked) == 0 {
		chart.Reason = fmt.Sprintf("no institution with at least %d records", cfg.RankingFloor)
		return chart
	}

	points := make([]ChartPoint, 0, len(ranked))
	for _, s := range ranked {
		points = append(points, ChartPoint{
			Label: s.Institution,
			Value: RoundTo(s.HighShare*100, 2),
			Text:  FormatPercent(s.HighShare, 1),
		})
	}
	chart.Series = []ChartSeries{{Name: "% Riesgo Alto", Data: points, Color: schema.LevelColors[schema.LevelHigh]}}
	return chart
}

// ============================================================================
// HELPERS
// ============================================================================

func emptyChart(chart *ChartConfig, capb schema.Capability) *ChartConfig {
	chart.Series = nil
	chart.Reason = "missing " + joinMissing(capb)
	return chart
}

func joinMissing(capb schema.Capability) string {
	return strings.Join(capb.Missing, ", ")
}

// orderLevels puts the known risk levels first (Alto, Medio, Bajo), then any
// other label alphabetically.
func orderLevels(labels []string) []string {
	rank := func(l string) int {
		for i, known := range schema.Levels {
			if l == known {
				return i
			}
		}
		return len(schema.Levels)
	}
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

func levelColor(label string, i int) string {
	if c, ok := schema.LevelColors[label]; ok {
		return c
	}
	return defaultColors[i%len(defaultColors)]
}

func levelColors(labels []string) []string {
	colors := make([]string, len(labels))
	for i, l := range labels {
		colors[i] = levelColor(l, i)
	}
	return colors
}

// RoundTo rounds v to the given decimals.
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
