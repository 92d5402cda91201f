package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// EVALUATE
// ============================================================================

func TestEvaluateDefaults(t *testing.T) {
	tbl := sampleTable()
	r := Evaluate(tbl, Params{}, WithLogger(zaptest.NewLogger(t)))

	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 20, r.TopN)
	assert.Equal(t, []string{AllInstitutions, "IMSS", "SAT"}, r.Institutions)
	assert.Equal(t, schema.Levels, r.Filters.Levels)
	assert.Equal(t, AllInstitutions, r.Filters.Institution)

	require.NotNil(t, r.IncomeBounds)
	require.NotNil(t, r.Filters.Income)
	assert.Equal(t, *r.IncomeBounds, *r.Filters.Income)
	// With two finite incomes the 1st/99th percentile bounds sit strictly
	// inside them, so the default view keeps no row.
	assert.InDelta(t, 309345.67, r.IncomeBounds.Low, 1e-6)
	assert.Equal(t, 0, r.Shown)
	assert.Equal(t, "Mostrando 0 de 3 declaraciones", r.Showing)

	for _, name := range ChartNames {
		assert.Contains(t, r.Charts, name)
	}
	assert.False(t, r.Searched)
	assert.Nil(t, r.Matches)
	assert.Len(t, r.RuleGlossary.Rows, 10)
}

func TestEvaluateMetricsIgnoreFilters(t *testing.T) {
	tbl := sampleTable()
	r := Evaluate(tbl, Params{Filters: Filters{
		Levels: []string{schema.LevelLow},
		Income: &Range{Low: 0, High: 1e7},
	}})

	assert.Equal(t, 1, r.Metrics.High, "metrics describe the full table")
	assert.Equal(t, 1, r.Shown)
	assert.Len(t, r.TopRisk.Rows, 1)
}

func TestEvaluateSearchUsesFullTable(t *testing.T) {
	r := Evaluate(sampleTable(), Params{
		Filters: Filters{Levels: []string{schema.LevelLow}},
		Query:   "Perez",
		TopN:    37,
	})
	assert.True(t, r.Searched)
	assert.Len(t, r.Matches, 2)
	assert.Equal(t, 35, r.TopN)
}

func TestEvaluateWithoutIncomeColumn(t *testing.T) {
	r := Evaluate(levelsTable(schema.LevelHigh, schema.LevelLow), Params{})
	assert.Nil(t, r.IncomeBounds)
	assert.Nil(t, r.Filters.Income)
	assert.Equal(t, 2, r.Shown)
	assert.True(t, r.TopRisk.IsEmpty())
}

// ============================================================================
// OPTIONS AND FORMATTING
// ============================================================================

func TestClampTopN(t *testing.T) {
	cases := map[int]int{0: 20, -4: 20, 3: 10, 10: 10, 23: 20, 25: 25, 49: 45, 50: 50, 99: 50}
	for in, want := range cases {
		assert.Equal(t, want, ClampTopN(in), "n=%d", in)
	}
	assert.Equal(t, 30, ClampTopN(0, WithTopN(30, 10, 50)))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234,567", FormatMoney(1234567.4, MissingValue))
	assert.Equal(t, "No declarado", FormatMoney(nan, NotDeclared))
	assert.Equal(t, "0.123", FormatScore(0.12345, MissingValue))
	assert.Equal(t, "12.5%", FormatPercent(0.125, 1))
	assert.Equal(t, "1,234", FormatInt(1234))

	line := ActivatedRule{Code: "R9", Description: "x"}.Line()
	assert.Equal(t, "- R9: x", line)
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(Metrics{Total: 4, High: 1, Medium: 1, Low: 2, Coverage: 0.5, MeanIncome: 1500})

	require.Len(t, s.Cards, 4)
	assert.Equal(t, "1", s.Cards[0].Value)
	assert.Equal(t, "25.0% del total", s.Cards[0].Caption)
	assert.Equal(t, "50.0% del total", s.Cards[2].Caption)

	require.Len(t, s.Stats, 2, "no anomaly card without the detector column")
	assert.Equal(t, "50.0%", s.Stats[0].Value)
	assert.Equal(t, "$1,500", s.Stats[1].Value)

	empty := BuildSummary(Metrics{AnomalyAvailable: true})
	assert.Equal(t, "0.0% del total", empty.Cards[0].Caption)
	assert.Len(t, empty.Stats, 3)
}
