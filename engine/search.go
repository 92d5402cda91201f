package engine

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// SEARCH: Name lookup with full record detail
// ============================================================================
// A row matches when any present name column contains the query as a
// substring, ignoring case and accents ("perez" finds "Pérez"). Missing
// cells never match.
// ============================================================================

// Fold lowercases s and strips combining marks.
func Fold(s string) string {
	// transform.Chain keeps state; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// MatchRows returns the indices of rows whose name columns contain query.
// A blank query matches nothing.
func MatchRows(view View, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	needle := Fold(query)

	var cols []string
	for _, c := range schema.NameColumns {
		if view.Has(c) {
			cols = append(cols, c)
		}
	}

	var hits []int
	for i := 0; i < view.Len(); i++ {
		for _, c := range cols {
			v := view.Text(i, c)
			if v != "" && strings.Contains(Fold(v), needle) {
				hits = append(hits, i)
				break
			}
		}
	}
	return hits
}

// Search returns every row matching query, in table order, rendered with
// its identity, income and risk details plus the activated rule flags.
func Search(view View, query string, opts ...Option) []Match {
	cfg := applyOptions(opts)
	hits := MatchRows(view, query)
	if len(hits) == 0 {
		return nil
	}

	scoreCol, _ := schema.Score.Resolve(view)
	rules := cfg.Rules.Present(view)

	matches := make([]Match, 0, len(hits))
	for _, i := range hits {
		matches = append(matches, describeRow(view, i, scoreCol, rules))
	}
	return matches
}

func describeRow(view View, i int, scoreCol string, rules []schema.Rule) Match {
	score := NotApplicable
	if scoreCol != "" {
		score = FormatScore(view.Number(i, scoreCol), NotApplicable)
	}
	level := NotApplicable
	if view.Has(schema.RiskLevel) {
		level = orDefault(view.Text(i, schema.RiskLevel), NotApplicable)
	}

	var names []string
	for _, c := range schema.NameColumns {
		if v := strings.TrimSpace(view.Text(i, c)); v != "" {
			names = append(names, v)
		}
	}

	m := Match{
		Title: fmt.Sprintf("%s - Score: %s (%s)", strings.Join(names, " "), score, level),
		Score: score,
		Level: level,
	}

	text := func(col string) string {
		return orDefault(view.Text(i, col), NotApplicable)
	}
	money := func(col string) string {
		return FormatMoney(view.Number(i, col), NotApplicable)
	}

	general := DetailSection{Title: "Información General", Items: []Detail{
		{Label: "ID", Value: text(schema.ID)},
		{Label: "Institución", Value: text(schema.Institution)},
		{Label: "Cargo", Value: text(schema.Position)},
		{Label: "Nivel", Value: text(schema.GovernmentLevel)},
		{Label: "Año", Value: text(schema.Year)},
	}}

	income := DetailSection{Title: "Ingresos", Items: []Detail{
		{Label: "Total", Value: money(schema.TotalIncome)},
		{Label: "Del cargo", Value: money(schema.PositionIncome)},
		{Label: "Otros", Value: money(schema.OtherIncome)},
	}}
	if v := view.Number(i, schema.OtherIncomeShare); isFinite(v) {
		income.Items = append(income.Items, Detail{Label: "% Otros", Value: FormatPercent(v, 1)})
	}

	risk := DetailSection{Title: "Evaluación de Riesgo", Items: []Detail{
		{Label: "Categoría", Value: level},
		{Label: "Score Total", Value: score},
	}}
	if v := view.Number(i, schema.RuleScore); isFinite(v) {
		risk.Items = append(risk.Items, Detail{Label: "Score Reglas", Value: FormatScore(v, NotApplicable)})
	}
	if v := view.Number(i, schema.ModelScore); isFinite(v) {
		risk.Items = append(risk.Items, Detail{Label: "Score Modelo", Value: FormatScore(v, NotApplicable)})
	}

	m.Sections = []DetailSection{general, income, risk}

	for _, r := range rules {
		if view.Number(i, r.Column) == 1 {
			m.Rules = append(m.Rules, ActivatedRule{Code: r.Column, Description: r.Description})
		}
	}
	return m
}
