package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cols map[string]bool

func (c cols) Has(col string) bool { return c[col] }

func TestCheckResolvesScoreByPriority(t *testing.T) {
	req := Require("histogram", Score, Column(RiskLevel))

	both := Check(cols{TotalScore: true, RiskScore: true, RiskLevel: true}, req)
	assert.True(t, both.Present)
	assert.Equal(t, TotalScore, both.Column("score"))

	raw := Check(cols{RiskScore: true, RiskLevel: true}, req)
	assert.True(t, raw.Present)
	assert.Equal(t, RiskScore, raw.Column("score"))

	none := Check(cols{RiskLevel: true}, req)
	assert.False(t, none.Present)
	assert.Equal(t, []string{"score"}, none.Missing)
	assert.Equal(t, "", none.Column("score"))
}

func TestCategoryFallsBackToLegacyColumn(t *testing.T) {
	col, ok := Category.Resolve(cols{RiskCategory: true})
	require.True(t, ok)
	assert.Equal(t, RiskCategory, col)

	_, ok = Category.Resolve(cols{})
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	require.Equal(t, 10, reg.Len())

	rule, ok := reg.ByColumn("R7_solo_pasivos")
	require.True(t, ok)
	assert.Equal(t, "R7", rule.ID)
	assert.Equal(t, "Declara deudas pero no activos", reg.Describe("R7_solo_pasivos"))
	assert.Equal(t, "Declara deudas pero no activos", reg.Describe("R7"))
	assert.Equal(t, "", reg.Describe("R99_desconocida"))
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry([]Rule{{ID: ""}})
	assert.Error(t, err)

	_, err = NewRegistry([]Rule{{ID: "R1", Column: "a"}, {ID: "R1", Column: "b"}})
	assert.Error(t, err)

	_, err = NewRegistry([]Rule{{ID: "R1", Column: "a"}, {ID: "R2", Column: "a"}})
	assert.Error(t, err)

	reg, err := NewRegistry([]Rule{{ID: "X1"}})
	require.NoError(t, err)
	rule, ok := reg.ByColumn("X1")
	require.True(t, ok)
	assert.Equal(t, "", rule.Description)
}

func TestRegistryPresent(t *testing.T) {
	reg := DefaultRegistry()
	got := reg.Present(cols{"R3_otros_ingresos_alto": true, "R1_otros_ingresos_moderados": true, "Rx": true})
	require.Len(t, got, 2)
	assert.Equal(t, "R1", got[0].ID)
	assert.Equal(t, "R3", got[1].ID)

	var nilReg *Registry
	assert.Empty(t, nilReg.Present(cols{}))
	assert.Equal(t, 0, nilReg.Len())
}

func TestNumericSetIncludesRulesAndAnomaly(t *testing.T) {
	set := Default().NumericSet()
	assert.True(t, set[TotalIncome])
	assert.True(t, set[Anomaly])
	assert.True(t, set["R10_ratio_anormal"])
	assert.False(t, set[Name])
	assert.Len(t, NumericColumns, 19)
}

func TestInspect(t *testing.T) {
	header := []string{ID, Name, RiskLevel, TotalIncome, RiskScore, "R2_inconsistencia_menor", "extra"}
	inv := Inspect(header, Default())

	assert.Equal(t, 7, inv.Columns)
	assert.True(t, inv.HasLevel)
	assert.Equal(t, RiskScore, inv.Score)
	assert.Equal(t, []string{"R2_inconsistencia_menor", RiskScore, TotalIncome}, inv.Numeric)
	assert.Equal(t, []string{ID, Name, RiskLevel}, inv.Text)
	assert.Equal(t, []string{"extra"}, inv.Unknown)
	assert.Contains(t, inv.Missing, GrossAssets)
	assert.NotContains(t, inv.Missing, TotalIncome)
	require.Len(t, inv.Rules, 1)
	assert.Equal(t, "R2", inv.Rules[0].ID)
}
