package engine

import (
	"fmt"
	"sort"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// TABLE BUILDER: Formatted tables for the ranking and top-risk tabs
// ============================================================================
// Cells are display strings. Builders check their Requirement first and
// return an empty TableData with Reason set when it is not met.
// ============================================================================

var topRiskReq = schema.Require("top", schema.Score)

// topColumns are the candidate columns of the top-risk table, in display
// order. The score column is resolved per table and inserted before the
// level.
var topColumns = []Column{
	{Key: schema.ID, Label: "ID", Type: "text", Align: "left"},
	{Key: schema.Name, Label: "Nombre", Type: "text", Align: "left"},
	{Key: schema.FirstSurname, Label: "Primer Apellido", Type: "text", Align: "left"},
	{Key: schema.Institution, Label: "Institución", Type: "text", Align: "left"},
	{Key: schema.Position, Label: "Cargo", Type: "text", Align: "left"},
	{Key: schema.TotalIncome, Label: "Total Ingresos", Type: "currency", Align: "right"},
	{Key: schema.GrossAssets, Label: "Patrimonio Bruto", Type: "currency", Align: "right"},
}

// ============================================================================
// TOP-N BY RISK
// ============================================================================

// TopRisk returns the n rows with the highest finite score, highest first.
// Equal scores keep their original row order. Rows with a missing score are
// never selected. The result has min(n, scored rows) rows.
func TopRisk(view View, scoreCol string, n int) View {
	idx := make([]int, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if isFinite(view.Number(i, scoreCol)) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return view.Number(idx[a], scoreCol) > view.Number(idx[b], scoreCol)
	})
	if n < 0 {
		n = 0
	}
	if len(idx) > n {
		idx = idx[:n]
	}
	return newSubView(view, idx)
}

// BuildTopRisk renders the top n rows by composite score. Amounts use
// thousands separators; a missing income renders as "-" and missing assets
// as "No declarado".
func BuildTopRisk(view View, n int) *TableData {
	table := &TableData{
		Title:   fmt.Sprintf("Top %d Casos de Mayor Riesgo", n),
		Columns: []Column{},
		Rows:    [][]string{},
	}
	capb := schema.Check(view, topRiskReq)
	if !capb.Present {
		table.Reason = "missing score column"
		return table
	}
	scoreCol := capb.Column(schema.Score.Key)

	for _, c := range topColumns {
		if view.Has(c.Key) {
			table.Columns = append(table.Columns, c)
		}
	}
	table.Columns = append(table.Columns, Column{Key: scoreCol, Label: "Score", Type: "number", Align: "right"})
	if view.Has(schema.RiskLevel) {
		table.Columns = append(table.Columns, Column{Key: schema.RiskLevel, Label: "Nivel de Riesgo", Type: "text", Align: "center"})
	}

	top := TopRisk(view, scoreCol, n)
	for i := 0; i < top.Len(); i++ {
		row := make([]string, len(table.Columns))
		for j, c := range table.Columns {
			switch c.Key {
			case schema.TotalIncome:
				row[j] = FormatMoney(top.Number(i, c.Key), MissingValue)
			case schema.GrossAssets:
				row[j] = FormatMoney(top.Number(i, c.Key), NotDeclared)
			case scoreCol:
				row[j] = FormatScore(top.Number(i, c.Key), MissingValue)
			default:
				row[j] = top.Text(i, c.Key)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if len(table.Rows) == 0 {
		table.Reason = "no rows"
	}
	return table
}

// ============================================================================
// INSTITUTION RANKING TABLE
// ============================================================================

// BuildInstitutionTable ranks institutions by mean score. Unlike the chart it
// applies no size floor.
func BuildInstitutionTable(view View, opts ...Option) *TableData {
	cfg := applyOptions(opts)
	table := &TableData{
		Title: "Ranking de Dependencias",
		Columns: []Column{
			{Key: schema.Institution, Label: "Dependencia", Type: "text", Align: "left"},
			{Key: "total_servidores", Label: "Total Servidores", Type: "number", Align: "right"},
			{Key: "casos_riesgo_alto", Label: "Casos Riesgo Alto", Type: "number", Align: "right"},
			{Key: "score_promedio", Label: "Score Promedio", Type: "number", Align: "right"},
		},
		Rows: [][]string{},
	}
	capb := schema.Check(view, institutionReq)
	if !capb.Present {
		table.Reason = "missing " + joinMissing(capb)
		return table
	}

	stats := GroupByInstitution(view, capb.Column(schema.Score.Key))
	SortByMeanScore(stats)
	if len(stats) > cfg.TableLimit {
		stats = stats[:cfg.TableLimit]
	}
	for _, s := range stats {
		table.Rows = append(table.Rows, []string{
			s.Institution,
			FormatInt(s.Count),
			FormatInt(s.HighCount),
			FormatScore(s.MeanScore, MissingValue),
		})
	}
	if len(table.Rows) == 0 {
		table.Reason = "no institutions"
	}
	return table
}

// ============================================================================
// RULE GLOSSARY
// ============================================================================

// BuildRuleGlossary lists every registered rule and whether its column is in
// the view.
func BuildRuleGlossary(view View, opts ...Option) *TableData {
	cfg := applyOptions(opts)
	table := &TableData{
		Title: "Glosario de Reglas",
		Columns: []Column{
			{Key: "regla", Label: "Regla", Type: "text", Align: "left"},
			{Key: "columna", Label: "Columna", Type: "text", Align: "left"},
			{Key: "descripcion", Label: "Descripción", Type: "text", Align: "left"},
			{Key: "disponible", Label: "En Datos", Type: "text", Align: "center"},
		},
		Rows: [][]string{},
	}
	for _, r := range cfg.Rules.Rules() {
		present := "No"
		if view.Has(r.Column) {
			present = "Sí"
		}
		table.Rows = append(table.Rows, []string{r.ID, r.Column, r.Description, present})
	}
	if len(table.Rows) == 0 {
		table.Reason = "no rules registered"
	}
	return table
}
