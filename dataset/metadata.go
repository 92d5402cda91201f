package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spektr-org/patrimonia/engine"
)

// Metadata describes the provenance of the scored table. Absent keys keep
// their zero value.
type Metadata struct {
	AnalysisDate     string  `json:"fecha_analisis,omitempty"`
	TotalRecords     int     `json:"total_declaraciones,omitempty"`
	SampleShare      float64 `json:"porcentaje_muestra,omitempty"`
	FeatureCount     int     `json:"num_features,omitempty"`
	HighIncomeCutoff float64 `json:"umbral_ingresos_altos,omitempty"`
	AssetCoverage    float64 `json:"cobertura_patrimonial,omitempty"`
}

// IsEmpty reports whether no key was loaded.
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// LoadMetadata reads the metadata JSON at path. A missing file yields empty
// metadata and no error; malformed JSON is an error.
func LoadMetadata(path string) (Metadata, error) {
	var m Metadata
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return m, nil
}

// Details renders the footer of the dashboard. Missing values fall back to
// "N/A" for the date and to zero for the figures.
func (m Metadata) Details() []engine.Detail {
	date := m.AnalysisDate
	if date == "" {
		date = engine.NotApplicable
	}
	return []engine.Detail{
		{Label: "Fecha de Análisis", Value: date},
		{Label: "Total Declaraciones", Value: engine.FormatInt(m.TotalRecords)},
		{Label: "Porcentaje de Muestra", Value: engine.FormatPercent(m.SampleShare, 0)},
		{Label: "Features Utilizadas", Value: strconv.Itoa(m.FeatureCount)},
		{Label: "Umbral Ingresos Altos", Value: engine.FormatMoney(m.HighIncomeCutoff, "$0")},
		{Label: "Cobertura Patrimonial", Value: engine.FormatPercent(m.AssetCoverage, 1)},
	}
}
