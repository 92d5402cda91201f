package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// RULE REGISTRY: Named anti-corruption heuristics and their flag columns
// ============================================================================
// A column is a rule flag only if it is registered here. The registry is
// built at configuration time and never inferred from column names.
// ============================================================================

// Rule is one heuristic evaluated upstream, stored as a 0/1 flag column.
type Rule struct {
	ID          string `json:"id" yaml:"id"`
	Column      string `json:"column" yaml:"column"`
	Description string `json:"description" yaml:"description"`
}

// Registry is an ordered, immutable set of rules.
type Registry struct {
	rules    []Rule
	byColumn map[string]int
}

var defaultRules = []Rule{
	{ID: "R1", Column: "R1_otros_ingresos_moderados", Description: "30-50% de ingresos de fuentes no relacionadas al cargo"},
	{ID: "R2", Column: "R2_inconsistencia_menor", Description: "Diferencia menor entre total declarado y componentes"},
	{ID: "R3", Column: "R3_otros_ingresos_alto", Description: ">50% de ingresos de fuentes no relacionadas al cargo"},
	{ID: "R4", Column: "R4_alto_ingreso_sin_patrimonio", Description: "Top 10% ingresos sin patrimonio declarado"},
	{ID: "R5", Column: "R5_inconsistencia_grave", Description: "Diferencia significativa entre total y componentes"},
	{ID: "R6", Column: "R6_patrimonio_fragmentado", Description: "Muchos bienes pero valor total bajo"},
	{ID: "R7", Column: "R7_solo_pasivos", Description: "Declara deudas pero no activos"},
	{ID: "R8", Column: "R8_rendimientos_imposibles", Description: "Ingresos financieros >15% del patrimonio"},
	{ID: "R9", Column: "R9_outlier_extremo", Description: "Outlier significativo vs pares en mismo nivel"},
	{ID: "R10", Column: "R10_ratio_anormal", Description: "Ratio patrimonio/ingresos anormal (>20 años o <2 años)"},
}

// DefaultRegistry returns the ten rules of the scoring pipeline.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(defaultRules)
	return r
}

// NewRegistry validates and indexes rules. IDs and columns must be non-empty
// and unique. Descriptions are optional.
func NewRegistry(rules []Rule) (*Registry, error) {
	reg := &Registry{
		rules:    make([]Rule, 0, len(rules)),
		byColumn: make(map[string]int, len(rules)),
	}
	ids := make(map[string]bool, len(rules))
	for i, r := range rules {
		r.ID = strings.TrimSpace(r.ID)
		r.Column = strings.TrimSpace(r.Column)
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if r.Column == "" {
			r.Column = r.ID
		}
		if ids[r.ID] {
			return nil, fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		if _, dup := reg.byColumn[r.Column]; dup {
			return nil, fmt.Errorf("rule %s: column %s already registered", r.ID, r.Column)
		}
		ids[r.ID] = true
		reg.byColumn[r.Column] = len(reg.rules)
		reg.rules = append(reg.rules, r)
	}
	return reg, nil
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	if r == nil {
		return nil
	}
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// ByColumn looks up the rule stored in a flag column.
func (r *Registry) ByColumn(col string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	i, ok := r.byColumn[col]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Describe returns the description for a rule code (column or ID).
// Unknown codes describe as "".
func (r *Registry) Describe(code string) string {
	if rule, ok := r.ByColumn(code); ok {
		return rule.Description
	}
	if r == nil {
		return ""
	}
	for _, rule := range r.rules {
		if rule.ID == code {
			return rule.Description
		}
	}
	return ""
}

// Present returns the rules whose flag column exists in cols.
func (r *Registry) Present(cols ColumnSet) []Rule {
	if r == nil {
		return nil
	}
	var out []Rule
	for _, rule := range r.rules {
		if cols.Has(rule.Column) {
			out = append(out, rule)
		}
	}
	return out
}
