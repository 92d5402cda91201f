package engine

import (
	"math"
	"sort"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// FILTERS: Conjunctive predicates over the disclosure table
// ============================================================================
// Three optional predicates, applied in sequence. Each narrows the result of
// the previous one; being AND-combined, their order does not change the rows
// that survive. Every predicate is skipped when its column is absent.
// ============================================================================

// AllInstitutions is the selector sentinel that disables the institution
// predicate.
const AllInstitutions = "Todas"

// Range is a closed numeric interval.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies in [Low, High]. NaN and ±Inf never do.
func (r Range) Contains(v float64) bool {
	return isFinite(v) && v >= r.Low && v <= r.High
}

// Filters holds the user-selected predicates.
type Filters struct {
	// Levels is the accepted risk-level set. nil means every level; a
	// non-nil empty slice accepts nothing.
	Levels []string `json:"levels"`
	// Income bounds total income. nil skips the predicate.
	Income *Range `json:"income,omitempty"`
	// Institution selects one institution. "" or AllInstitutions skips it.
	Institution string `json:"institution,omitempty"`
}

// LevelSet returns the effective accepted levels.
func (f Filters) LevelSet() []string {
	if f.Levels == nil {
		return append([]string(nil), schema.Levels...)
	}
	return f.Levels
}

// ApplyFilters returns the view of rows passing every active predicate.
func ApplyFilters(view View, f Filters) View {
	out := view

	if out.Has(schema.RiskLevel) {
		accepted := make(map[string]bool, 3)
		for _, l := range f.LevelSet() {
			accepted[l] = true
		}
		cur := out
		out = where(cur, func(i int) bool {
			return accepted[cur.Text(i, schema.RiskLevel)]
		})
	}

	if f.Income != nil && out.Has(schema.TotalIncome) {
		bounds := *f.Income
		cur := out
		out = where(cur, func(i int) bool {
			return bounds.Contains(cur.Number(i, schema.TotalIncome))
		})
	}

	if f.Institution != "" && f.Institution != AllInstitutions && out.Has(schema.Institution) {
		name := f.Institution
		cur := out
		out = where(cur, func(i int) bool {
			return cur.Text(i, schema.Institution) == name
		})
	}

	return out
}

// Income slider bounds ignore the extreme 1% on each side.
const (
	IncomeLowQuantile  = 0.01
	IncomeHighQuantile = 0.99
)

// DefaultIncomeRange returns the 1st and 99th percentile of the finite
// total-income values of view. ok is false when the column is absent; a
// column with no finite values yields (0, 0).
func DefaultIncomeRange(view View) (r Range, ok bool) {
	if !view.Has(schema.TotalIncome) {
		return Range{}, false
	}
	values := finiteValues(view, schema.TotalIncome)
	if len(values) == 0 {
		return Range{}, true
	}
	sort.Float64s(values)
	return Range{
		Low:  quantileSorted(values, IncomeLowQuantile),
		High: quantileSorted(values, IncomeHighQuantile),
	}, true
}

// Institutions returns the distinct non-empty institutions of view, sorted.
func Institutions(view View) []string {
	if !view.Has(schema.Institution) {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < view.Len(); i++ {
		name := view.Text(i, schema.Institution)
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Quantile returns the q-quantile of values using linear interpolation
// between closest ranks: position q·(n−1) in the sorted finite values.
// Returns NaN when there is no finite value.
func Quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	return quantileSorted(clean, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	switch {
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func finiteValues(view View, col string) []float64 {
	out := make([]float64, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if v := view.Number(i, col); isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}
