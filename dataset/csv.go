package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/spektr-org/patrimonia/engine"
	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// CSV: Parses the scored table into an engine.Table
// ============================================================================
// Numeric columns (schema.Config.NumericSet) are coerced cell by cell: an
// empty or unparseable cell becomes NaN instead of failing the load. Every
// other column is kept as trimmed text. Rule flag columns also accept
// True/False as 1/0.
// ============================================================================

const utf8BOM = "\ufeff"

// ParseTable parses CSV bytes into a Table. The header row defines which
// columns are present, even when the table has no data rows.
func ParseTable(data []byte, cfg schema.Config) (*engine.Table, error) {
	reader := gocsv.LazyCSVReader(bytes.NewReader(data))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return engine.NewTable(nil, []string{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	numeric := cfg.NumericSet()
	flags := make(map[string]bool)
	if cfg.Rules != nil {
		for _, r := range cfg.Rules.Rules() {
			flags[r.Column] = true
		}
	}
	isNumber := make([]bool, len(header))
	isFlag := make([]bool, len(header))
	for i, h := range header {
		isNumber[i] = numeric[h]
		isFlag[i] = flags[h]
	}

	var records []engine.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		// Short or long rows keep the cells they have.
		if err != nil && !errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}

		rec := engine.Record{
			Text:    make(map[string]string),
			Numbers: make(map[string]float64),
		}
		for i, col := range header {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if isFlag[i] {
				rec.Numbers[col] = ParseFlag(cell)
			} else if isNumber[i] {
				rec.Numbers[col] = ParseNumber(cell)
			} else if cell != "" {
				rec.Text[col] = cell
			}
		}
		records = append(records, rec)
	}

	return engine.NewTable(records, header), nil
}

// ParseNumber converts a cell to float64. Empty and unparseable cells yield
// NaN. Thousands separators are not accepted.
func ParseNumber(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseFlag converts a rule flag cell. Boolean spellings of any case map to
// 1 and 0; anything else goes through ParseNumber.
func ParseFlag(cell string) float64 {
	switch strings.ToLower(cell) {
	case "true":
		return 1
	case "false":
		return 0
	}
	return ParseNumber(cell)
}

// ============================================================================
// EXPORT
// ============================================================================

// WriteTableCSV writes a formatted table as CSV: UTF-8 with a leading BOM,
// one header row of column keys, then the display cells.
func WriteTableCSV(w io.Writer, table *engine.TableData) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := out.Write(table.Header()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range table.Rows {
		if err := out.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}

// ExportName is the download name of a top-N export.
func ExportName(n int) string {
	return fmt.Sprintf("top_%d_casos_riesgo.csv", n)
}
