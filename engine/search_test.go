package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/patrimonia/schema"
)

func nameTable() *Table {
	return tableOf(
		rec(schema.ID, "1", schema.Name, "Juan", schema.FirstSurname, "PÉREZ"),
		rec(schema.ID, "2", schema.Name, "Perez", schema.FirstSurname, "Soto"),
		rec(schema.ID, "3", schema.Name, "Ana", schema.SecondSurname, "pérez"),
		rec(schema.ID, "4", schema.Name, "Ana", schema.FirstSurname, "Peralta", schema.Institution, "Perez SA"),
		rec(schema.ID, "5", schema.Name, "Lupita"),
	)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "perez", Fold("Pérez"))
	assert.Equal(t, "nunez", Fold("NÚÑEZ"))
}

func TestMatchRowsIgnoresCaseAndAccents(t *testing.T) {
	tbl := nameTable()
	for _, q := range []string{"Pérez", "perez", "PEREZ"} {
		assert.Equal(t, []int{0, 1, 2}, MatchRows(tbl, q), q)
	}
	assert.Equal(t, []int{3}, MatchRows(tbl, "alta"))
	assert.Nil(t, MatchRows(tbl, "zzz"))
}

func TestSearchEmptyQueryRunsNothing(t *testing.T) {
	for _, q := range []string{"", " ", "\t "} {
		assert.Nil(t, MatchRows(nameTable(), q), "%q", q)
		assert.Nil(t, Search(nameTable(), q), "%q", q)
	}
}

func TestSearchWithoutNameColumns(t *testing.T) {
	assert.Nil(t, Search(levelsTable(schema.LevelHigh), "alto"))
}

func TestSearchDetail(t *testing.T) {
	matches := Search(sampleTable(), "pérez")
	require.Len(t, matches, 2)

	m := matches[0]
	assert.Equal(t, "Juan Pérez López - Score: 0.812 (Alto)", m.Title)
	require.Len(t, m.Sections, 3)
	assert.Equal(t, "Información General", m.Sections[0].Title)
	assert.Contains(t, m.Sections[0].Items, Detail{Label: "Institución", Value: "SAT"})
	assert.Contains(t, m.Sections[1].Items, Detail{Label: "Total", Value: "$1,234,567"})
	assert.Contains(t, m.Sections[1].Items, Detail{Label: "% Otros", Value: "19.0%"})
	assert.Contains(t, m.Sections[2].Items, Detail{Label: "Score Modelo", Value: "0.900"})

	require.Len(t, m.Rules, 1)
	assert.Equal(t, "- R1_otros_ingresos_moderados: 30-50% de ingresos de fuentes no relacionadas al cargo", m.Rules[0].Line())

	second := matches[1]
	assert.Equal(t, "Luis Perezcano - Score: 0.600 (Medio)", second.Title)
	assert.Contains(t, second.Sections[1].Items, Detail{Label: "Total", Value: NotApplicable})
	assert.Len(t, second.Sections[2].Items, 3, "missing rule score is omitted")
}

func TestSearchRuleWithoutDescription(t *testing.T) {
	reg, err := schema.NewRegistry([]schema.Rule{{ID: "RX"}})
	require.NoError(t, err)
	tbl := tableOf(rec(schema.Name, "Juan", "RX", 1))

	matches := Search(tbl, "juan", WithRules(reg))
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Rules, 1)
	assert.Equal(t, "- RX", matches[0].Rules[0].Line())
	assert.Equal(t, "Juan - Score: N/A (N/A)", matches[0].Title)
}
