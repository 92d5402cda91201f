package engine

import (
	"math"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

var nan = math.NaN()

// rec builds a Record from alternating key/value pairs. string values go to
// Text, float64 and int values to Numbers.
func rec(kv ...any) Record {
	r := Record{Text: map[string]string{}, Numbers: map[string]float64{}}
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			r.Text[key] = v
		case float64:
			r.Numbers[key] = v
		case int:
			r.Numbers[key] = float64(v)
		}
	}
	return r
}

func tableOf(records ...Record) *Table {
	return NewTable(records, nil)
}

// levelsTable has one row per level label, with no other columns.
func levelsTable(levels ...string) *Table {
	records := make([]Record, len(levels))
	for i, l := range levels {
		records[i] = rec(schema.RiskLevel, l)
	}
	return tableOf(records...)
}

// institutionRows returns n rows of one institution, the first high of them
// labelled Alto and the rest Bajo, all scored score.
func institutionRows(name string, n, high int, score float64) []Record {
	out := make([]Record, n)
	for i := range out {
		level := schema.LevelLow
		if i < high {
			level = schema.LevelHigh
		}
		out[i] = rec(
			schema.Institution, name,
			schema.RiskLevel, level,
			schema.TotalScore, score,
		)
	}
	return out
}

// sampleTable is a small, complete disclosure table.
func sampleTable() *Table {
	return tableOf(
		rec(schema.ID, "1", schema.Name, "Juan", schema.FirstSurname, "Pérez", schema.SecondSurname, "López",
			schema.Institution, "SAT", schema.Position, "Director", schema.GovernmentLevel, "Federal", schema.Year, "2023",
			schema.TotalIncome, 1234567.0, schema.PositionIncome, 1000000.0, schema.OtherIncome, 234567.0,
			schema.OtherIncomeShare, 0.19, schema.GrossAssets, 500000.0,
			schema.TotalScore, 0.812, schema.RuleScore, 0.7, schema.ModelScore, 0.9,
			schema.RiskLevel, schema.LevelHigh, schema.Anomaly, -1,
			"R1_otros_ingresos_moderados", 1, "R7_solo_pasivos", 0),
		rec(schema.ID, "2", schema.Name, "Ana", schema.FirstSurname, "García", schema.SecondSurname, "Ruiz",
			schema.Institution, "IMSS", schema.Position, "Jefa", schema.GovernmentLevel, "Federal", schema.Year, "2023",
			schema.TotalIncome, 300000.0, schema.PositionIncome, 300000.0, schema.OtherIncome, 0.0,
			schema.GrossAssets, nan,
			schema.TotalScore, 0.41, schema.RuleScore, 0.3, schema.ModelScore, 0.5,
			schema.RiskLevel, schema.LevelLow, schema.Anomaly, 1,
			"R1_otros_ingresos_moderados", 0, "R7_solo_pasivos", 1),
		rec(schema.ID, "3", schema.Name, "Luis", schema.FirstSurname, "Perezcano", schema.SecondSurname, "",
			schema.Institution, "SAT", schema.Position, "Analista", schema.GovernmentLevel, "Federal", schema.Year, "2022",
			schema.TotalIncome, nan, schema.PositionIncome, nan, schema.OtherIncome, nan,
			schema.GrossAssets, 0.0,
			schema.TotalScore, 0.6, schema.RuleScore, nan, schema.ModelScore, 0.6,
			schema.RiskLevel, schema.LevelMedium, schema.Anomaly, 1,
			"R1_otros_ingresos_moderados", 0, "R7_solo_pasivos", 1),
	)
}
