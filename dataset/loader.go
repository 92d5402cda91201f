package dataset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/patrimonia/engine"
	"github.com/spektr-org/patrimonia/schema"
)

// ============================================================================
// LOADER: (table, metadata) from a source and a local path
// ============================================================================

// Dataset is one loaded, immutable copy of the scored table and its
// metadata. It is shared read-only by every request.
type Dataset struct {
	Table     *engine.Table
	Metadata  Metadata
	Inventory schema.Inventory
	Source    string
	LoadedAt  time.Time
	Bytes     int
}

// Loader fetches the scored table and reads its metadata.
type Loader struct {
	Source       Source
	MetadataPath string
	Schema       schema.Config
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewLoader builds a Loader with the default schema.
func NewLoader(src Source, metadataPath string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Source:       src,
		MetadataPath: metadataPath,
		Schema:       schema.Default(),
		Logger:       logger,
		Now:          time.Now,
	}
}

// Load fetches and parses the table while reading the metadata. A fetch
// failure wraps ErrFetch; a malformed metadata file is returned as is.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := l.now()
	ds := &Dataset{Source: l.Source.String()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := l.Source.Fetch(gctx)
		if err != nil {
			return err
		}
		table, err := ParseTable(raw, l.Schema)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", l.Source, err)
		}
		ds.Table = table
		ds.Inventory = schema.Inspect(table.Columns(), l.Schema)
		ds.Bytes = len(raw)
		return nil
	})
	g.Go(func() error {
		m, err := LoadMetadata(l.MetadataPath)
		if err != nil {
			return err
		}
		ds.Metadata = m
		return nil
	})
	if err := g.Wait(); err != nil {
		l.logger().Error("dataset load failed", zap.String("source", ds.Source), zap.Error(err))
		return nil, err
	}

	ds.LoadedAt = l.now()
	l.logger().Info("dataset loaded",
		zap.String("source", ds.Source),
		zap.Int("rows", ds.Table.Len()),
		zap.Int("columns", len(ds.Table.Columns())),
		zap.Int("bytes", ds.Bytes),
		zap.Bool("metadata", !ds.Metadata.IsEmpty()),
		zap.Duration("took", ds.LoadedAt.Sub(start)),
	)
	if inv := ds.Inventory; len(inv.Missing) > 0 || len(inv.Unknown) > 0 {
		l.logger().Warn("column inventory",
			zap.Strings("missing", inv.Missing),
			zap.Strings("unknown", inv.Unknown),
			zap.Int("rules", len(inv.Rules)),
			zap.String("score", inv.Score),
		)
	}
	return ds, nil
}

func (l *Loader) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
