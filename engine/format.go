package engine

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ============================================================================
// FORMATTING: Display strings for amounts, scores and counts
// ============================================================================
// Grouping separators come from an English message.Printer ("1,234,567"),
// matching the dashboard's MXN display.
// ============================================================================

// Sentinels for cells with no value.
const (
	MissingValue  = "-"
	NotDeclared   = "No declarado"
	NotApplicable = "N/A"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders v as "$1,234" (no decimals). NaN and ±Inf render as
// missing.
func FormatMoney(v float64, missing string) string {
	if !isFinite(v) {
		return missing
	}
	return printer.Sprintf("$%.0f", v)
}

// FormatScore renders a score with three decimals, or missing.
func FormatScore(v float64, missing string) string {
	if !isFinite(v) {
		return missing
	}
	return fmt.Sprintf("%.3f", v)
}

// FormatPercent renders a ratio in [0,1] as a percentage with the given
// decimals ("12.5%").
func FormatPercent(ratio float64, decimals int) string {
	if !isFinite(ratio) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f%%", decimals, ratio*100)
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	return printer.Sprintf("%d", n)
}

// orDefault returns s, or def when s is blank.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
