package schema

// ============================================================================
// REQUIREMENTS: What a derived view needs from the table
// ============================================================================
// Each chart/table declares a Requirement up front. Check resolves it against
// the columns present in a view and returns a Capability. Builders branch on
// Capability.Present instead of testing column membership ad hoc.
// ============================================================================

// ColumnSet reports which columns a dataset carries.
type ColumnSet interface {
	Has(col string) bool
}

// Field is one logical input of a view. It resolves to the first candidate
// column present in the table.
type Field struct {
	Key        string   `json:"key"`
	Candidates []string `json:"candidates"`
}

// Column declares a field backed by exactly one column.
func Column(name string) Field {
	return Field{Key: name, Candidates: []string{name}}
}

// Score is the composite risk score, preferring the final total score over
// the raw score.
var Score = Field{Key: "score", Candidates: []string{TotalScore, RiskScore}}

// Category is the risk category used by the global counters, preferring the
// model level over the legacy category column.
var Category = Field{Key: "category", Candidates: []string{RiskLevel, RiskCategory}}

// Resolve returns the first candidate present in cols.
func (f Field) Resolve(cols ColumnSet) (string, bool) {
	for _, c := range f.Candidates {
		if cols.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Requirement lists the fields a named view depends on.
type Requirement struct {
	View   string  `json:"view"`
	Fields []Field `json:"fields"`
}

// Require builds a Requirement.
func Require(view string, fields ...Field) Requirement {
	return Requirement{View: view, Fields: fields}
}

// Capability is the outcome of checking a Requirement against a table.
type Capability struct {
	View    string            `json:"view"`
	Present bool              `json:"present"`
	Columns map[string]string `json:"columns,omitempty"` // field key → resolved column
	Missing []string          `json:"missing,omitempty"` // field keys with no candidate present
}

// Column returns the column resolved for a field key, or "" if unresolved.
func (c Capability) Column(key string) string {
	return c.Columns[key]
}

// Check resolves every field of req against cols.
func Check(cols ColumnSet, req Requirement) Capability {
	capb := Capability{
		View:    req.View,
		Columns: make(map[string]string, len(req.Fields)),
	}
	for _, f := range req.Fields {
		col, ok := f.Resolve(cols)
		if !ok {
			capb.Missing = append(capb.Missing, f.Key)
			continue
		}
		capb.Columns[f.Key] = col
	}
	capb.Present = len(capb.Missing) == 0
	return capb
}
