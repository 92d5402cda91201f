package engine

// ============================================================================
// ENGINE TYPES: Disclosure records and render-ready outputs
// ============================================================================
// The engine never computes risk. It reads the scored table through a View,
// filters it, aggregates it and returns chart/table specs that any frontend
// can draw.
// ============================================================================

// ============================================================================
// RECORD: One financial disclosure
// ============================================================================

// Record is a single disclosure row. Text holds identity and category cells
// ("" when missing). Numbers holds coerced numeric cells (NaN when missing or
// unparseable).
type Record struct {
	Text    map[string]string  `json:"text"`
	Numbers map[string]float64 `json:"numbers"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart. A config with no series is the
// explicit "no data" chart.
type ChartConfig struct {
	ChartType   string        `json:"chartType"` // "pie", "histogram", "box", "bar"
	Title       string        `json:"title"`
	XAxis       string        `json:"xAxis,omitempty"`
	YAxis       string        `json:"yAxis,omitempty"`
	Orientation string        `json:"orientation,omitempty"` // "h" for horizontal bars
	LogScale    bool          `json:"logScale,omitempty"`    // value axis is logarithmic
	Stacked     bool          `json:"stacked,omitempty"`
	Series      []ChartSeries `json:"series"`
	Markers     []Marker      `json:"markers,omitempty"`
	Colors      []string      `json:"colors,omitempty"`
	ShowLegend  bool          `json:"showLegend"`
	Reason      string        `json:"reason,omitempty"` // why the chart is empty
}

// IsEmpty reports whether the chart has nothing to draw.
func (c *ChartConfig) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, s := range c.Series {
		if len(s.Data) > 0 || s.Box != nil {
			return false
		}
	}
	return true
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data,omitempty"`
	Box   *BoxStats    `json:"box,omitempty"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"` // pre-formatted annotation
}

// Marker is a reference line on the value axis.
type Marker struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
	Color string  `json:"color"`
}

// BoxStats is a five-number summary with Tukey whiskers.
type BoxStats struct {
	Count       int     `json:"count"`
	Min         float64 `json:"min"`
	Q1          float64 `json:"q1"`
	Median      float64 `json:"median"`
	Q3          float64 `json:"q3"`
	Max         float64 `json:"max"`
	LowerFence  float64 `json:"lowerFence"`
	UpperFence  float64 `json:"upperFence"`
	OutlierLows int     `json:"outlierLows"`
	OutlierHigh int     `json:"outlierHighs"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Reason  string     `json:"reason,omitempty"` // why the table is empty
}

// IsEmpty reports whether the table has no rows.
func (t *TableData) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency"
	Align string `json:"align"` // "left", "center", "right"
}

// Header returns the column keys in order.
func (t *TableData) Header() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Key
	}
	return out
}

// ============================================================================
// METRICS TYPES
// ============================================================================

// Metrics are the global counters of the full table.
type Metrics struct {
	Total      int     `json:"total"`
	High       int     `json:"alto"`
	Medium     int     `json:"medio"`
	Low        int     `json:"bajo"`
	Coverage   float64 `json:"cobertura_patrimonial"`
	MeanIncome float64 `json:"ingreso_promedio"`

	Anomalies        int  `json:"anomalias"`
	AnomalyAvailable bool `json:"anomaliasDisponibles"`
}

// Card is one headline figure of the summary strip.
type Card struct {
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Value   string  `json:"value"`
	Caption string  `json:"caption"`
	Raw     float64 `json:"raw"`
	Tone    string  `json:"tone,omitempty"` // "high", "medium", "low"
}

// ============================================================================
// SEARCH TYPES
// ============================================================================

// Match is one search hit rendered with full detail.
type Match struct {
	Title    string          `json:"title"`
	Score    string          `json:"score"`
	Level    string          `json:"level"`
	Sections []DetailSection `json:"sections"`
	Rules    []ActivatedRule `json:"rules,omitempty"`
}

// DetailSection groups related label/value pairs.
type DetailSection struct {
	Title string   `json:"title"`
	Items []Detail `json:"items"`
}

// Detail is a label-value pair.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ActivatedRule is a rule flag equal to 1 on a matched record.
type ActivatedRule struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Line renders the rule as a bullet.
func (r ActivatedRule) Line() string {
	if r.Description == "" {
		return "- " + r.Code
	}
	return "- " + r.Code + ": " + r.Description
}
