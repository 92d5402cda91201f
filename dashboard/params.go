package dashboard

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/spektr-org/patrimonia/engine"
	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// PARAMS: Dashboard controls from the query string
// ============================================================================
//   nivel=Alto&nivel=Medio     risk levels (repeatable or comma separated)
//   ingreso_min / ingreso_max  income bounds; a missing bound takes the default
//   institucion=SAT            one institution, or "Todas"
//   top=25                     top-N size, clamped to the slider domain
//   q=perez                    name search
// ============================================================================

// BadRequestError marks a control value that cannot be parsed.
type BadRequestError struct {
	Param string
	Value string
	Err   error
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Param, e.Value, e.Err)
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// ParseParams reads the controls. table supplies the default income bounds
// when only one bound is given.
func ParseParams(q url.Values, table engine.View) (engine.Params, error) {
	var p engine.Params

	if raw, ok := q["nivel"]; ok {
		p.Filters.Levels = []string{}
		for _, v := range raw {
			for _, l := range strings.Split(v, ",") {
				l = strings.TrimSpace(l)
				if l == "" {
					continue
				}
				if !isLevel(l) {
					return p, &BadRequestError{Param: "nivel", Value: l, Err: fmt.Errorf("must be one of %s", strings.Join(schema.Levels, ", "))}
				}
				p.Filters.Levels = append(p.Filters.Levels, l)
			}
		}
	}

	low, err := parseBound(q, "ingreso_min")
	if err != nil {
		return p, err
	}
	high, err := parseBound(q, "ingreso_max")
	if err != nil {
		return p, err
	}
	if low != nil || high != nil {
		bounds, _ := engine.DefaultIncomeRange(table)
		if low != nil {
			bounds.Low = *low
		}
		if high != nil {
			bounds.High = *high
		}
		if bounds.Low > bounds.High {
			return p, &BadRequestError{Param: "ingreso_min", Value: q.Get("ingreso_min"), Err: fmt.Errorf("greater than ingreso_max")}
		}
		p.Filters.Income = &bounds
	}

	p.Filters.Institution = strings.TrimSpace(q.Get("institucion"))

	if v := strings.TrimSpace(q.Get("top")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, &BadRequestError{Param: "top", Value: v, Err: err}
		}
		p.TopN = n
	}

	p.Query = strings.TrimSpace(q.Get("q"))
	return p, nil
}

func parseBound(q url.Values, key string) (*float64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, &BadRequestError{Param: key, Value: v, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &BadRequestError{Param: key, Value: v, Err: fmt.Errorf("must be finite")}
	}
	return &f, nil
}

func isLevel(l string) bool {
	for _, known := range schema.Levels {
		if l == known {
			return true
		}
	}
	return false
}
