package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// QUANTILES AND DEFAULT BOUNDS
// ============================================================================

func incomeTable(values ...float64) *Table {
	records := make([]Record, len(values))
	for i, v := range values {
		records[i] = rec(schema.TotalIncome, v)
	}
	return tableOf(records...)
}

func TestDefaultIncomeRangeLinearInterpolation(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[100-1-i] = float64(i + 1) // unsorted input
	}
	r, ok := DefaultIncomeRange(incomeTable(values...))
	require.True(t, ok)
	assert.InDelta(t, 1.99, r.Low, 1e-9)
	assert.InDelta(t, 99.01, r.High, 1e-9)
}

func TestDefaultIncomeRangeIgnoresNonFinite(t *testing.T) {
	r, ok := DefaultIncomeRange(incomeTable(math.Inf(1), 5, nan, math.Inf(-1)))
	require.True(t, ok)
	assert.Equal(t, Range{Low: 5, High: 5}, r)

	r, ok = DefaultIncomeRange(incomeTable(nan))
	require.True(t, ok)
	assert.Equal(t, Range{}, r)

	_, ok = DefaultIncomeRange(levelsTable(schema.LevelHigh))
	assert.False(t, ok)
}

func TestQuantile(t *testing.T) {
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(t, 3.0, Quantile([]float64{3}, 0.9))
	assert.InDelta(t, 2.5, Quantile([]float64{4, 1, 3, 2}, 0.5), 1e-12)
	assert.Equal(t, 1.0, Quantile([]float64{4, 1, 3, 2}, 0))
	assert.Equal(t, 4.0, Quantile([]float64{4, 1, 3, 2}, 1))
}

// ============================================================================
// FILTERS
// ============================================================================

func idsOf(view View) []string {
	var ids []string
	for i := 0; i < view.Len(); i++ {
		ids = append(ids, view.Text(i, schema.ID))
	}
	return ids
}

func TestApplyFiltersDefaultLevelsIsNoOp(t *testing.T) {
	tbl := sampleTable()
	out := ApplyFilters(tbl, Filters{})
	assert.Equal(t, tbl.Len(), out.Len())

	out = ApplyFilters(tbl, Filters{Levels: []string{schema.LevelHigh, schema.LevelMedium, schema.LevelLow}})
	assert.Equal(t, tbl.Len(), out.Len())
}

func TestApplyFiltersEmptyLevelsAcceptsNothing(t *testing.T) {
	out := ApplyFilters(sampleTable(), Filters{Levels: []string{}})
	assert.Zero(t, out.Len())
}

func TestApplyFiltersDropsRowsWithoutLevel(t *testing.T) {
	tbl := tableOf(
		rec(schema.ID, "1", schema.RiskLevel, schema.LevelHigh),
		rec(schema.ID, "2"),
	)
	assert.Equal(t, []string{"1"}, idsOf(ApplyFilters(tbl, Filters{})))
}

func TestApplyFiltersIncomeExcludesMissing(t *testing.T) {
	tbl := sampleTable()
	out := ApplyFilters(tbl, Filters{Income: &Range{Low: 0, High: math.MaxFloat64}})
	assert.Equal(t, []string{"1", "2"}, idsOf(out))

	out = ApplyFilters(tbl, Filters{Income: &Range{Low: 300000, High: 300000}})
	assert.Equal(t, []string{"2"}, idsOf(out), "bounds are closed")
}

func TestApplyFiltersInstitution(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, 3, ApplyFilters(tbl, Filters{Institution: AllInstitutions}).Len())
	assert.Equal(t, []string{"1", "3"}, idsOf(ApplyFilters(tbl, Filters{Institution: "SAT"})))
	assert.Zero(t, ApplyFilters(tbl, Filters{Institution: "Nadie"}).Len())
}

func TestApplyFiltersCombinedIsSubset(t *testing.T) {
	tbl := sampleTable()
	cases := []Filters{
		{Levels: []string{schema.LevelHigh}, Institution: "SAT"},
		{Levels: []string{schema.LevelLow, schema.LevelMedium}, Income: &Range{Low: 0, High: 1e6}},
		{Income: &Range{Low: 1e6, High: 2e6}, Institution: "IMSS"},
	}
	all := map[string]bool{"1": true, "2": true, "3": true}
	for _, f := range cases {
		for _, id := range idsOf(ApplyFilters(tbl, f)) {
			assert.True(t, all[id])
		}
	}

	both := ApplyFilters(tbl, Filters{Levels: []string{schema.LevelHigh}, Institution: "SAT"})
	assert.Equal(t, []string{"1"}, idsOf(both))
}

func TestApplyFiltersSkipsAbsentColumns(t *testing.T) {
	tbl := tableOf(rec(schema.ID, "1"), rec(schema.ID, "2"))
	out := ApplyFilters(tbl, Filters{
		Levels:      []string{},
		Income:      &Range{Low: 10, High: 20},
		Institution: "SAT",
	})
	assert.Equal(t, 2, out.Len())
}

func TestInstitutionsSortedDistinct(t *testing.T) {
	assert.Equal(t, []string{"IMSS", "SAT"}, Institutions(sampleTable()))
	assert.Nil(t, Institutions(levelsTable(schema.LevelHigh)))
}
