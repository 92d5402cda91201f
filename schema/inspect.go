package schema

import (
	"sort"
)

// ============================================================================
// INSPECTION: Column inventory of a loaded table
// ============================================================================
// Reports which known columns arrived, which did not, and which extra columns
// the dashboard ignores. Purely informational: absent columns only disable
// the views that need them.
// ============================================================================

// Inventory summarizes a table header against a Config.
type Inventory struct {
	Name     string   `json:"name"`
	Columns  int      `json:"columns"`
	Numeric  []string `json:"numeric"`           // present and parsed as numbers
	Text     []string `json:"text"`              // present known text columns
	Rules    []Rule   `json:"rules"`             // registered rules whose column is present
	Missing  []string `json:"missing,omitempty"` // expected numeric columns not present
	Unknown  []string `json:"unknown,omitempty"` // present but unused
	HasLevel bool     `json:"hasLevel"`
	Score    string   `json:"score,omitempty"` // resolved composite score column
}

type headerSet map[string]bool

func (h headerSet) Has(col string) bool { return h[col] }

// Inspect classifies the columns of header. Output slices are sorted.
func Inspect(header []string, cfg Config) Inventory {
	present := make(headerSet, len(header))
	for _, h := range header {
		present[h] = true
	}

	numeric := cfg.NumericSet()
	inv := Inventory{
		Name:     cfg.Name,
		Columns:  len(present),
		HasLevel: present[RiskLevel],
	}
	for col := range present {
		switch {
		case numeric[col]:
			inv.Numeric = append(inv.Numeric, col)
		case cfg.Known(col):
			inv.Text = append(inv.Text, col)
		default:
			inv.Unknown = append(inv.Unknown, col)
		}
	}
	for _, col := range cfg.Numeric {
		if !present[col] {
			inv.Missing = append(inv.Missing, col)
		}
	}
	inv.Rules = cfg.Rules.Present(present)
	inv.Score, _ = Score.Resolve(present)

	sort.Strings(inv.Numeric)
	sort.Strings(inv.Text)
	sort.Strings(inv.Missing)
	sort.Strings(inv.Unknown)
	return inv
}
