package engine

import (
	"fmt"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// SUMMARY: Headline cards and key statistics
// ============================================================================
// Both strips describe the full table (Metrics), never the filtered view.
// ============================================================================

// Summary is the text content of the metric strip and the key-stats strip.
type Summary struct {
	Cards []Card `json:"cards"`
	Stats []Card `json:"stats"`
}

// BuildSummary renders the level counters with their share of the total and
// the coverage / mean income / anomaly statistics. The anomaly card is
// omitted when the detector column is absent.
func BuildSummary(m Metrics) Summary {
	level := func(key, title string, n int, tone string) Card {
		return Card{
			Key:     key,
			Title:   title,
			Value:   FormatInt(n),
			Caption: FormatPercent(Share(n, m.Total), 1) + " del total",
			Raw:     float64(n),
			Tone:    tone,
		}
	}

	s := Summary{
		Cards: []Card{
			level("alto", "Riesgo "+schema.LevelHigh, m.High, "high"),
			level("medio", "Riesgo "+schema.LevelMedium, m.Medium, "medium"),
			level("bajo", "Riesgo "+schema.LevelLow, m.Low, "low"),
			{
				Key:     "total",
				Title:   "Total Declaraciones",
				Value:   FormatInt(m.Total),
				Caption: "Analizadas en el sistema",
				Raw:     float64(m.Total),
			},
		},
		Stats: []Card{
			{
				Key:     "cobertura",
				Title:   "Cobertura Patrimonial",
				Value:   FormatPercent(m.Coverage, 1),
				Caption: "de declaraciones con patrimonio",
				Raw:     m.Coverage,
			},
			{
				Key:     "ingreso_promedio",
				Title:   "Ingreso Promedio",
				Value:   FormatMoney(m.MeanIncome, "$0"),
				Caption: "MXN anuales",
				Raw:     m.MeanIncome,
			},
		},
	}

	if m.AnomalyAvailable {
		s.Stats = append(s.Stats, Card{
			Key:     "anomalias",
			Title:   "Anomalías Detectadas",
			Value:   FormatInt(m.Anomalies),
			Caption: fmt.Sprintf("%s del total", FormatPercent(Share(m.Anomalies, m.Total), 1)),
			Raw:     float64(m.Anomalies),
		})
	}
	return s
}

// ShowingLine renders the "shown of total" sidebar counter.
func ShowingLine(shown, total int) string {
	return fmt.Sprintf("Mostrando %s de %s declaraciones", FormatInt(shown), FormatInt(total))
}
