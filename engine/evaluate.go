package engine

import (
	"strings"

	"go.uber.org/zap"
)

// ============================================================================
// EVALUATE: One full recomputation pass
// ============================================================================
// Entry point: Evaluate(table, params, opts...)
//
// Pipeline:
//   1. Metrics on the full table
//   2. Default income bounds when the caller sent none
//   3. Apply filters → SubView (zero-copy)
//   4. Build every chart and table from the filtered view
//   5. Run the name search on the full table, if requested
//
// The table is never mutated. Nothing is cached between calls.
// ============================================================================

// Params are the user controls of one interaction.
type Params struct {
	Filters Filters `json:"filters"`
	TopN    int     `json:"topN"`  // 0 selects the default
	Query   string  `json:"query"` // "" runs no search
}

// Report is the render-ready result of Evaluate.
type Report struct {
	Metrics Metrics `json:"metrics"`
	Summary Summary `json:"summary"`

	Shown   int    `json:"shown"`
	Total   int    `json:"total"`
	Showing string `json:"showing"`

	Filters      Filters  `json:"filters"`                // effective filters, defaults filled in
	IncomeBounds *Range   `json:"incomeBounds,omitempty"` // slider domain; nil without income column
	Institutions []string `json:"institutions"`           // selector options, AllInstitutions first
	TopN         int      `json:"topN"`

	Charts map[string]*ChartConfig `json:"charts"`

	TopRisk      *TableData `json:"topRisk"`
	Ranking      *TableData `json:"ranking"`
	RuleGlossary *TableData `json:"ruleGlossary"`

	Searched bool    `json:"searched"`
	Query    string  `json:"query,omitempty"`
	Matches  []Match `json:"matches,omitempty"`
}

// Evaluate runs the whole dashboard pipeline for one set of controls.
func Evaluate(table View, p Params, opts ...Option) *Report {
	cfg := applyOptions(opts)
	log := cfg.Logger

	r := &Report{
		Metrics: ComputeMetrics(table),
		Total:   table.Len(),
		TopN:    ClampTopN(p.TopN, opts...),
		Charts:  make(map[string]*ChartConfig, len(ChartNames)),
	}
	r.Summary = BuildSummary(r.Metrics)

	f := p.Filters
	if bounds, ok := DefaultIncomeRange(table); ok {
		r.IncomeBounds = &bounds
		if f.Income == nil {
			f.Income = &bounds
		}
	}
	if f.Levels == nil {
		f.Levels = f.LevelSet()
	}
	if f.Institution == "" {
		f.Institution = AllInstitutions
	}
	r.Filters = f
	r.Institutions = append([]string{AllInstitutions}, Institutions(table)...)

	filtered := ApplyFilters(table, f)
	r.Shown = filtered.Len()
	r.Showing = ShowingLine(r.Shown, r.Total)
	log.Debug("filters applied",
		zap.Int("total", r.Total),
		zap.Int("shown", r.Shown),
		zap.Strings("levels", f.Levels),
		zap.String("institution", f.Institution),
	)

	for _, name := range ChartNames {
		chart, _ := BuildChart(name, filtered, opts...)
		if chart.IsEmpty() {
			log.Debug("chart unavailable", zap.String("chart", name), zap.String("reason", chart.Reason))
		}
		r.Charts[name] = chart
	}

	r.TopRisk = BuildTopRisk(filtered, r.TopN)
	r.Ranking = BuildInstitutionTable(filtered, opts...)
	r.RuleGlossary = BuildRuleGlossary(table, opts...)

	if q := strings.TrimSpace(p.Query); q != "" {
		r.Searched = true
		r.Query = q
		r.Matches = Search(table, q, opts...)
		log.Debug("search", zap.String("query", q), zap.Int("matches", len(r.Matches)))
	}
	return r
}
