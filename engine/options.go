package engine

import (
	"go.uber.org/zap"

	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// ENGINE OPTIONS: Functional options for Evaluate() and the builders
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Logger        *zap.Logger
	Rules         *schema.Registry
	HistogramBins int
	RankingFloor  int // minimum rows for an institution to be ranked
	RankingLimit  int // institutions kept in the ranking chart
	TableLimit    int // institutions kept in the ranking table
	MediumMarker  float64
	HighMarker    float64
	DefaultTopN   int
	MinTopN       int
	MaxTopN       int
}

// WithLogger sets the logger used by Evaluate.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithRules sets the rule registry used by the activation chart, the
// glossary and search details.
func WithRules(r *schema.Registry) Option {
	return func(c *config) {
		if r != nil {
			c.Rules = r
		}
	}
}

// WithHistogramBins sets the number of score histogram bins.
func WithHistogramBins(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.HistogramBins = n
		}
	}
}

// WithRanking sets the institution ranking floor (minimum rows) and the
// number of institutions kept in the chart.
func WithRanking(floor, limit int) Option {
	return func(c *config) {
		if floor > 0 {
			c.RankingFloor = floor
		}
		if limit > 0 {
			c.RankingLimit = limit
		}
	}
}

// WithTopN sets the default, minimum and maximum top-N sizes.
func WithTopN(def, min, max int) Option {
	return func(c *config) {
		if min > 0 && max >= min {
			c.MinTopN, c.MaxTopN = min, max
		}
		if def > 0 {
			c.DefaultTopN = def
		}
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Logger:        zap.NewNop(),
		Rules:         schema.DefaultRegistry(),
		HistogramBins: 50,
		RankingFloor:  5,
		RankingLimit:  15,
		TableLimit:    20,
		MediumMarker:  0.5,
		HighMarker:    0.75,
		DefaultTopN:   20,
		MinTopN:       10,
		MaxTopN:       50,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ClampTopN maps a requested top-N size onto the slider domain: 0 selects
// the default, values are clamped to [min, max] and rounded down to a
// multiple of 5 above min.
func ClampTopN(n int, opts ...Option) int {
	cfg := applyOptions(opts)
	if n <= 0 {
		n = cfg.DefaultTopN
	}
	if n < cfg.MinTopN {
		n = cfg.MinTopN
	}
	if n > cfg.MaxTopN {
		n = cfg.MaxTopN
	}
	return cfg.MinTopN + (n-cfg.MinTopN)/5*5
}
