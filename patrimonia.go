// Package patrimonia is a read-only risk dashboard over public servants'
// asset declarations that an upstream pipeline has already scored.
//
// Usage:
//
//	cache := dataset.NewCache(dataset.NewLoader(src, "metadatos_analisis.json", logger), time.Hour)
//	ds, err := cache.Get(ctx)
//	report := engine.Evaluate(ds.Table, engine.Params{
//	    Filters: engine.Filters{Levels: []string{schema.LevelHigh}},
//	    TopN:    20,
//	})
//
// The engine takes the loaded table and the user controls and returns
// render-ready output (metric cards, chart configs, tables, search hits).
// It never computes risk and never mutates the table.
//
// The dashboard package serves the same report over HTTP; cmd/patrimonia
// exposes it as a CLI.
package patrimonia
