package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spektr-org/patrimonia/config"
	"github.com/spektr-org/patrimonia/dataset"
	"github.com/spektr-org/patrimonia/engine"
)

// ============================================================================
// PATRIMONIA CLI: Anti-corruption risk dashboard over scored disclosures
// ============================================================================

const version = "0.3.0"

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfgPath string
	table   string
	verbose bool
	format  string
	outFile string

	cfg    config.Config
	logger *zap.Logger
	opts   []engine.Option
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "patrimonia",
		Short: "PatrimonIA - risk dashboard for public servants' asset declarations",
		Long: `PatrimonIA reads a table of asset declarations already scored by an
upstream risk pipeline and presents it: global counters, filters, charts,
top-N risk cases, institution rankings and name search.

Run "patrimonia serve" for the web dashboard, or use the other
subcommands to query the same data from the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "Path to YAML config (default: built-in settings)")
	root.PersistentFlags().StringVar(&a.table, "table", "", "Scored table URL or path (overrides data.table_url)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "text", "Output format: text, json, pretty, csv, svg (chart only)")
	root.PersistentFlags().StringVarP(&a.outFile, "out", "o", "", "Write output to file instead of stdout")

	root.AddCommand(
		newServeCmd(a),
		newMetricsCmd(a),
		newTopCmd(a),
		newSearchCmd(a),
		newChartCmd(a),
		newSnapshotCmd(a),
		newSchemaCmd(a),
	)
	return root
}

// init loads the config and builds the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.table != "" {
		cfg.Data.TableURL = a.table
	}
	a.cfg = cfg

	a.logger, err = buildLogger(cfg.Log, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	a.opts = append([]engine.Option{engine.WithLogger(a.logger)}, opts...)
	return nil
}

func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// loader builds the dataset loader from the config.
func (a *app) loader() (*dataset.Loader, error) {
	reg, err := a.cfg.Registry()
	if err != nil {
		return nil, err
	}
	src := dataset.NewSource(a.cfg.Data.TableURL, nil, a.cfg.Data.FetchTimeout)
	l := dataset.NewLoader(src, a.cfg.Data.MetadataPath, a.logger)
	l.Schema = l.Schema.WithRules(reg)
	return l, nil
}

// output returns the destination writer and a close func.
func (a *app) output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if a.outFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(a.outFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
