package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// ============================================================================
// CSV OUTPUT: Chart series ready for a spreadsheet
// ============================================================================

// writeChartCSV writes one row per label: a single series gives two
// columns, several series give one column each. Box series write their
// five-number summary instead.
func writeChartCSV(w io.Writer, chart *engine.ChartConfig) error {
	cw := csv.NewWriter(w)

	if chart.IsEmpty() {
		cw.Write([]string{"Result", "No data"})
		cw.Flush()
		return cw.Error()
	}

	if chart.Series[0].Box != nil {
		cw.Write([]string{"series", "count", "min", "q1", "median", "q3", "max"})
		for _, s := range chart.Series {
			if s.Box == nil {
				continue
			}
			b := s.Box
			cw.Write([]string{s.Name, fmt.Sprint(b.Count), fmtNum(b.Min), fmtNum(b.Q1), fmtNum(b.Median), fmtNum(b.Q3), fmtNum(b.Max)})
		}
		cw.Flush()
		return cw.Error()
	}

	xLabel := chart.XAxis
	yLabel := chart.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	// Single series → two columns
	if len(chart.Series) == 1 {
		cw.Write([]string{xLabel, yLabel})
		for _, d := range chart.Series[0].Data {
			cw.Write([]string{d.Label, fmtNum(d.Value)})
		}
		cw.Flush()
		return cw.Error()
	}

	// Multi-series → label + one column per series
	headers := []string{xLabel}
	for _, s := range chart.Series {
		headers = append(headers, s.Name)
	}
	cw.Write(headers)
	for i, d := range chart.Series[0].Data {
		row := []string{d.Label}
		for _, s := range chart.Series {
			if i < len(s.Data) {
				row = append(row, fmtNum(s.Data[i].Value))
			} else {
				row = append(row, "")
			}
		}
		cw.Write(row)
	}
	cw.Flush()
	return cw.Error()
}

// ============================================================================
// TEXT OUTPUT
// ============================================================================

func writeTableText(w io.Writer, table *engine.TableData) error {
	if table.IsEmpty() {
		_, err := fmt.Fprintf(w, "%s: no data (%s)\n", table.Title, table.Reason)
		return err
	}
	fmt.Fprintln(w, table.Title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	labels := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		labels[i] = c.Label
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeSummaryText(w io.Writer, s engine.Summary) error {
	for _, group := range [][]engine.Card{s.Cards, s.Stats} {
		for _, c := range group {
			if _, err := fmt.Fprintf(w, "%-24s %14s  %s\n", c.Title, c.Value, c.Caption); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMatchesText(w io.Writer, query string, matches []engine.Match) error {
	if len(matches) == 0 {
		_, err := fmt.Fprintf(w, "No se encontraron resultados para %q\n", query)
		return err
	}
	fmt.Fprintf(w, "Encontrados %d resultados\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(w, "\n%s\n", m.Title)
		for _, sec := range m.Sections {
			fmt.Fprintf(w, "  %s\n", sec.Title)
			for _, d := range sec.Items {
				fmt.Fprintf(w, "    %s: %s\n", d.Label, d.Value)
			}
		}
		if len(m.Rules) > 0 {
			fmt.Fprintln(w, "  Reglas Activadas")
			for _, r := range m.Rules {
				fmt.Fprintf(w, "    %s\n", r.Line())
			}
		}
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
