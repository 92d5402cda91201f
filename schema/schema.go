package schema

// ============================================================================
// SCHEMA: Column layout of the scored disclosure table
// ============================================================================
// The upstream table carries no enforced schema. Columns listed here are the
// ones the dashboard knows how to use; any of them may be absent, in which
// case the views that need them degrade to "no data".
//
// The loader uses Config to decide which cells are numeric. The engine uses
// Requirement/Check (requirement.go) to decide which views are available.
// ============================================================================

// Identity columns (text).
const (
	ID              = "id"
	Name            = "nombre"
	FirstSurname    = "primerApellido"
	SecondSurname   = "segundoApellido"
	Institution     = "institucion"
	Position        = "cargo"
	GovernmentLevel = "nivelGobierno"
	Year            = "anio"
)

// Declared financial columns (numeric).
const (
	TotalIncome      = "total_ingresos"
	PositionIncome   = "ingreso_cargo"
	OtherIncome      = "otros_ingresos"
	GrossAssets      = "patrimonio_bruto"
	OtherIncomeShare = "prop_otros_ingresos"
	FinancialIncome  = "ingreso_financiero"
	RealEstateTotal  = "inmuebles_total"
	VehiclesTotal    = "vehiculos_total"
	MovablesTotal    = "muebles_total"
	LiabilitiesTotal = "adeudos_total"
)

// Derived analytic columns produced upstream.
const (
	RiskScore        = "riesgo_score"
	ModelScore       = "riesgo_modelo"
	RuleScore        = "score_reglas"
	TotalScore       = "score_riesgo_total"
	AssetFieldCount  = "num_campos_patrimonio"
	AssetIncomeRatio = "ratio_patrimonio_ingresos"
	ComponentGap     = "dif_total_vs_componentes"
	IncomePeerZ      = "zscore_ingresos_vs_pares"
	AssetPeerZ       = "zscore_patrimonio_vs_pares"

	RiskLevel    = "riesgo_nivel"
	RiskCategory = "categoria_riesgo"
	Anomaly      = "anomaly_iforest"
)

// Risk level categories assigned by the upstream model.
const (
	LevelHigh   = "Alto"
	LevelMedium = "Medio"
	LevelLow    = "Bajo"
)

// AnomalyFlag is the anomaly detector's outlier label.
const AnomalyFlag = -1

// Levels lists the risk categories in display order.
var Levels = []string{LevelHigh, LevelMedium, LevelLow}

// LevelColors maps each risk category to its display color.
var LevelColors = map[string]string{
	LevelHigh:   "#ef4444",
	LevelMedium: "#f59e0b",
	LevelLow:    "#10b981",
}

// NumericColumns are coerced to float64 on load. Unparseable cells become NaN.
var NumericColumns = []string{
	TotalIncome,
	PositionIncome,
	OtherIncome,
	GrossAssets,
	OtherIncomeShare,
	RiskScore,
	ModelScore,
	RuleScore,
	TotalScore,
	FinancialIncome,
	RealEstateTotal,
	VehiclesTotal,
	MovablesTotal,
	LiabilitiesTotal,
	AssetFieldCount,
	AssetIncomeRatio,
	ComponentGap,
	IncomePeerZ,
	AssetPeerZ,
}

// NameColumns are searched by free-text queries, in display order.
var NameColumns = []string{Name, FirstSurname, SecondSurname}

// Config describes how the loader classifies the columns of a table.
type Config struct {
	Name    string    `json:"name"`
	Numeric []string  `json:"numeric"`
	Rules   *Registry `json:"-"`
}

// Default returns the layout of the scored disclosure table with the
// default rule registry.
func Default() Config {
	return Config{
		Name:    "Declaraciones patrimoniales",
		Numeric: append([]string(nil), NumericColumns...),
		Rules:   DefaultRegistry(),
	}
}

// WithRules returns a copy of c that uses the given registry.
func (c Config) WithRules(r *Registry) Config {
	c.Rules = r
	return c
}

// NumericSet returns every column that is parsed as a number: the fixed
// numeric list, the anomaly label and each registered rule column.
func (c Config) NumericSet() map[string]bool {
	set := make(map[string]bool, len(c.Numeric)+12)
	for _, col := range c.Numeric {
		set[col] = true
	}
	set[Anomaly] = true
	if c.Rules != nil {
		for _, r := range c.Rules.Rules() {
			set[r.Column] = true
		}
	}
	return set
}

// Known reports whether the dashboard has a use for the column.
func (c Config) Known(col string) bool {
	switch col {
	case ID, Name, FirstSurname, SecondSurname, Institution, Position,
		GovernmentLevel, Year, RiskLevel, RiskCategory:
		return true
	}
	return c.NumericSet()[col]
}
