package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/patrimonia/dashboard"
	"github.com/spektr-org/patrimonia/dataset"
	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// FILTER FLAGS: Same controls as the dashboard sidebar
// ============================================================================

type filterFlags struct {
	levels      []string
	incomeMin   string
	incomeMax   string
	institution string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.levels, "nivel", nil, "Risk levels to keep (Alto, Medio, Bajo); default all")
	cmd.Flags().StringVar(&f.incomeMin, "ingreso-min", "", "Lower total income bound (default: 1st percentile)")
	cmd.Flags().StringVar(&f.incomeMax, "ingreso-max", "", "Upper total income bound (default: 99th percentile)")
	cmd.Flags().StringVar(&f.institution, "institucion", "", "Institution to keep (default: all)")
}

// values encodes the flags as dashboard query parameters so both surfaces
// share one parser.
func (f *filterFlags) values(cmd *cobra.Command) url.Values {
	q := url.Values{}
	if cmd.Flags().Changed("nivel") {
		q["nivel"] = append([]string{""}, f.levels...)
	}
	if f.incomeMin != "" {
		q.Set("ingreso_min", f.incomeMin)
	}
	if f.incomeMax != "" {
		q.Set("ingreso_max", f.incomeMax)
	}
	if f.institution != "" {
		q.Set("institucion", f.institution)
	}
	return q
}

// evaluate loads the table once and runs the dashboard pipeline.
func (a *app) evaluate(ctx context.Context, q url.Values) (*dataset.Dataset, *engine.Report, error) {
	l, err := a.loader()
	if err != nil {
		return nil, nil, err
	}
	ds, err := l.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := dashboard.ParseParams(q, ds.Table)
	if err != nil {
		return nil, nil, err
	}
	return ds, engine.Evaluate(ds.Table, p, a.opts...), nil
}

// ============================================================================
// SERVE
// ============================================================================

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var warm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.ListenAddr = addr
			}
			l, err := a.loader()
			if err != nil {
				return err
			}
			cache := dataset.NewCache(l, a.cfg.Data.CacheTTL)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if warm {
				if _, err := cache.Get(ctx); err != nil {
					a.logger.Warn("initial load failed; retrying on first request", zap.Error(err))
				}
			}

			refresher := dashboard.NewRefresher(cache, a.cfg.Data.RefreshInterval, a.logger)
			if err := refresher.Start(); err != nil {
				return err
			}
			defer refresher.Stop()

			srv := dashboard.NewServer(cache, a.logger, a.opts...)
			return srv.ListenAndServe(ctx, a.cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	cmd.Flags().BoolVar(&warm, "warm", true, "Load the dataset before accepting requests")
	return cmd
}

// ============================================================================
// METRICS
// ============================================================================

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print the headline counters of the full table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loader()
			if err != nil {
				return err
			}
			ds, err := l.Load(cmd.Context())
			if err != nil {
				return err
			}
			m := engine.ComputeMetrics(ds.Table)
			summary := engine.BuildSummary(m)

			w, closeOut, err := a.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			switch a.format {
			case "json", "pretty":
				return writeJSON(w, map[string]any{"metrics": m, "summary": summary, "metadata": ds.Metadata}, a.format)
			default:
				if err := writeSummaryText(w, summary); err != nil {
					return err
				}
				for _, d := range ds.Metadata.Details() {
					fmt.Fprintf(w, "%-24s %s\n", d.Label, d.Value)
				}
				return nil
			}
		},
	}
}

// ============================================================================
// TOP
// ============================================================================

func newTopCmd(a *app) *cobra.Command {
	var n int
	var export string
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the highest-risk declarations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := filters.values(cmd)
			if n > 0 {
				q.Set("top", strconv.Itoa(n))
			}
			_, report, err := a.evaluate(cmd.Context(), q)
			if err != nil {
				return err
			}

			if export != "" {
				if err := exportTop(export, report); err != nil {
					return err
				}
				a.logger.Info("top-N exported", zap.String("path", export), zap.Int("rows", len(report.TopRisk.Rows)))
			}

			w, closeOut, err := a.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			switch a.format {
			case "csv":
				return dataset.WriteTableCSV(w, report.TopRisk)
			case "json", "pretty":
				return writeJSON(w, report.TopRisk, a.format)
			default:
				fmt.Fprintln(w, report.Showing)
				return writeTableText(w, report.TopRisk)
			}
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 0, "Number of cases, 10 to 50 (default: dashboard.top_default)")
	cmd.Flags().StringVar(&export, "export", "", "Also write the table as CSV to this path; a directory gets top_<n>_casos_riesgo.csv")
	filters.register(cmd)
	return cmd
}

func exportTop(path string, report *engine.Report) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, dataset.ExportName(report.TopN))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	if err := dataset.WriteTableCSV(f, report.TopRisk); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ============================================================================
// SEARCH
// ============================================================================

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <name>",
		Short: "Find declarations by name, ignoring case and accents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			l, err := a.loader()
			if err != nil {
				return err
			}
			ds, err := l.Load(cmd.Context())
			if err != nil {
				return err
			}
			matches := engine.Search(ds.Table, query, a.opts...)

			w, closeOut, err := a.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			switch a.format {
			case "json", "pretty":
				if matches == nil {
					matches = []engine.Match{}
				}
				return writeJSON(w, map[string]any{"query": query, "matches": matches}, a.format)
			default:
				return writeMatchesText(w, query, matches)
			}
		},
	}
}

// ============================================================================
// CHART
// ============================================================================

func newChartCmd(a *app) *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:       "chart <name>",
		Short:     "Build one dashboard chart (" + strings.Join(engine.ChartNames, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: engine.ChartNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !knownChart(name) {
				return fmt.Errorf("unknown chart %q; expected one of %s", name, strings.Join(engine.ChartNames, ", "))
			}
			_, report, err := a.evaluate(cmd.Context(), filters.values(cmd))
			if err != nil {
				return err
			}
			chart := report.Charts[name]

			w, closeOut, err := a.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			switch a.format {
			case "svg":
				return dashboard.RenderSVG(w, chart)
			case "csv", "text":
				return writeChartCSV(w, chart)
			default:
				return writeJSON(w, chart, a.format)
			}
		},
	}
	filters.register(cmd)
	return cmd
}

func knownChart(name string) bool {
	for _, n := range engine.ChartNames {
		if n == name {
			return true
		}
	}
	return false
}

// ============================================================================
// SNAPSHOT
// ============================================================================

func newSnapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <path>",
		Short: "Fetch the scored table once and store it as a snappy snapshot (" + dataset.SnapshotExt + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !dataset.IsSnapshot(path) {
				path += dataset.SnapshotExt
			}
			src := dataset.NewSource(a.cfg.Data.TableURL, nil, a.cfg.Data.FetchTimeout)
			raw, compressed, err := dataset.WriteSnapshot(cmd.Context(), src, path)
			if err != nil {
				return err
			}
			a.logger.Info("snapshot written",
				zap.String("source", src.String()),
				zap.String("path", path),
				zap.Int("raw", raw),
				zap.Int("compressed", compressed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d → %d bytes\n", path, raw, compressed)
			return nil
		},
	}
}

// ============================================================================
// SCHEMA
// ============================================================================

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show which known columns the loaded table carries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loader()
			if err != nil {
				return err
			}
			ds, err := l.Load(cmd.Context())
			if err != nil {
				return err
			}
			inv := ds.Inventory

			w, closeOut, err := a.output(cmd)
			if err != nil {
				return err
			}
			defer closeOut()

			if a.format == "json" || a.format == "pretty" {
				return writeJSON(w, inv, a.format)
			}
			fmt.Fprintf(w, "%s: %d columns, %d rows\n", inv.Name, inv.Columns, ds.Table.Len())
			fmt.Fprintf(w, "score column: %s\n", orNone(inv.Score))
			fmt.Fprintf(w, "risk level:   %t\n", inv.HasLevel)
			fmt.Fprintf(w, "numeric:      %s\n", orNone(strings.Join(inv.Numeric, ", ")))
			fmt.Fprintf(w, "text:         %s\n", orNone(strings.Join(inv.Text, ", ")))
			ids := make([]string, len(inv.Rules))
			for i, r := range inv.Rules {
				ids[i] = r.ID
			}
			fmt.Fprintf(w, "rules:        %s\n", orNone(strings.Join(ids, ", ")))
			fmt.Fprintf(w, "missing:      %s\n", orNone(strings.Join(inv.Missing, ", ")))
			fmt.Fprintf(w, "unknown:      %s\n", orNone(strings.Join(inv.Unknown, ", ")))
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
