package engine

import (
	"math"
	"sort"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// AGGREGATORS: Global counters, grouping and means via View
// ============================================================================
// Every ratio guards its denominator: an empty input yields 0, never NaN or
// a panic.
// ============================================================================

// ComputeMetrics computes the headline counters of a table. It is meant for
// the full, unfiltered table.
func ComputeMetrics(view View) Metrics {
	m := Metrics{Total: view.Len()}

	if col, ok := schema.Category.Resolve(view); ok {
		for i := 0; i < view.Len(); i++ {
			switch view.Text(i, col) {
			case schema.LevelHigh:
				m.High++
			case schema.LevelMedium:
				m.Medium++
			case schema.LevelLow:
				m.Low++
			}
		}
	}

	if view.Has(schema.GrossAssets) && m.Total > 0 {
		withAssets := 0
		for i := 0; i < view.Len(); i++ {
			if view.Number(i, schema.GrossAssets) > 0 {
				withAssets++
			}
		}
		m.Coverage = float64(withAssets) / float64(m.Total)
	}

	if view.Has(schema.TotalIncome) {
		m.MeanIncome = MeanNumber(view, schema.TotalIncome)
	}

	if view.Has(schema.Anomaly) {
		m.AnomalyAvailable = true
		for i := 0; i < view.Len(); i++ {
			if view.Number(i, schema.Anomaly) == schema.AnomalyFlag {
				m.Anomalies++
			}
		}
	}

	return m
}

// Share returns part/total, or 0 when total is 0.
func Share(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// MeanNumber averages the finite values of a column. Returns 0 when there
// are none.
func MeanNumber(view View, col string) float64 {
	var sum float64
	var n int
	for i := 0; i < view.Len(); i++ {
		v := view.Number(i, col)
		if !isFinite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ============================================================================
// INSTITUTION GROUPING
// ============================================================================

// InstitutionStats aggregates the rows of one institution.
type InstitutionStats struct {
	Institution string  `json:"institution"`
	Count       int     `json:"count"`
	HighCount   int     `json:"highCount"`
	HighShare   float64 `json:"highShare"`
	MeanScore   float64 `json:"meanScore"` // NaN when no row has a finite score
	View        View    `json:"-"`
}

// GroupByInstitution groups view by non-empty institution, in first-seen
// order, computing row count, high-risk count/share and mean score.
func GroupByInstitution(view View, scoreCol string) []InstitutionStats {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.Text(i, schema.Institution)
		if key == "" {
			continue
		}
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	stats := make([]InstitutionStats, 0, len(order))
	for _, key := range order {
		sub := newSubView(view, grouped[key])
		s := InstitutionStats{
			Institution: key,
			Count:       sub.Len(),
			View:        sub,
			MeanScore:   math.NaN(),
		}
		var sum float64
		var scored int
		for i := 0; i < sub.Len(); i++ {
			if sub.Text(i, schema.RiskLevel) == schema.LevelHigh {
				s.HighCount++
			}
			if v := sub.Number(i, scoreCol); isFinite(v) {
				sum += v
				scored++
			}
		}
		if scored > 0 {
			s.MeanScore = sum / float64(scored)
		}
		s.HighShare = Share(s.HighCount, s.Count)
		stats = append(stats, s)
	}
	return stats
}

// SortByHighShare orders groups by high-risk share, descending; ties by
// institution name.
func SortByHighShare(stats []InstitutionStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].HighShare != stats[j].HighShare {
			return stats[i].HighShare > stats[j].HighShare
		}
		return stats[i].Institution < stats[j].Institution
	})
}

// SortByMeanScore orders groups by mean score, descending; NaN means last,
// ties by institution name.
func SortByMeanScore(stats []InstitutionStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i].MeanScore, stats[j].MeanScore
		an, bn := math.IsNaN(a), math.IsNaN(b)
		switch {
		case an != bn:
			return bn
		case !an && a != b:
			return a > b
		}
		return stats[i].Institution < stats[j].Institution
	})
}
