package engine

import (
	"math"
	"sort"
)

// ============================================================================
// VIEW: Zero-Copy Table Access
// ============================================================================
// Implementations:
//   Table    owns the loaded []Record and the set of columns present
//   SubView  filtered subset (indices into parent, zero-copy)
//
// The base Table is immutable after load and shared by every request.
// ============================================================================

// View provides indexed, read-only access to disclosure rows.
type View interface {
	Len() int
	Text(index int, col string) string
	Number(index int, col string) float64 // NaN when missing
	Has(col string) bool                  // column present in the source table
	Columns() []string
}

// ============================================================================
// TABLE: the loaded dataset
// ============================================================================

// Table wraps a []Record slice as a View.
type Table struct {
	records []Record
	columns []string
	present map[string]bool
}

// NewTable creates a Table. columns lists the header of the source; when nil,
// it is derived from the union of record keys.
func NewTable(records []Record, columns []string) *Table {
	t := &Table{records: records}
	if columns == nil {
		columns = collectColumns(records)
	}
	t.columns = columns
	t.present = make(map[string]bool, len(columns))
	for _, c := range columns {
		t.present[c] = true
	}
	return t
}

func collectColumns(records []Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for k := range r.Text {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
		for k := range r.Numbers {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func (t *Table) Len() int { return len(t.records) }

func (t *Table) Text(i int, col string) string {
	if i < 0 || i >= len(t.records) {
		return ""
	}
	return t.records[i].Text[col]
}

func (t *Table) Number(i int, col string) float64 {
	if i < 0 || i >= len(t.records) {
		return math.NaN()
	}
	v, ok := t.records[i].Numbers[col]
	if !ok {
		return math.NaN()
	}
	return v
}

func (t *Table) Has(col string) bool { return t.present[col] }
func (t *Table) Columns() []string   { return t.columns }

// Record returns the i-th record.
func (t *Table) Record(i int) Record { return t.records[i] }

// ============================================================================
// SUB VIEW: filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent View.
// Holds indices into the parent; no data copy.
type SubView struct {
	parent  View
	indices []int
}

func newSubView(parent View, indices []int) View {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Text(i int, col string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Text(v.indices[i], col)
}

func (v *SubView) Number(i int, col string) float64 {
	if i < 0 || i >= len(v.indices) {
		return math.NaN()
	}
	return v.parent.Number(v.indices[i], col)
}

func (v *SubView) Has(col string) bool { return v.parent.Has(col) }
func (v *SubView) Columns() []string   { return v.parent.Columns() }

// where returns the subset of view whose rows satisfy keep.
func where(view View, keep func(i int) bool) View {
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if keep(i) {
			indices = append(indices, i)
		}
	}
	return newSubView(view, indices)
}

// isFinite reports whether v is neither NaN nor ±Inf.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
