package dataset

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ============================================================================
// CACHE: Process-wide dataset, loaded on first access
// ============================================================================
// Get loads the dataset the first time it is called; concurrent first
// callers share one load. Afterwards the cached dataset is returned as is
// until it is older than the TTL, at which point Get reloads it. Refresh
// forces a reload. A failed reload keeps serving the previous dataset; a
// failed first load is returned to the caller.
// ============================================================================

// Cache holds the current Dataset.
type Cache struct {
	loader  *Loader
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	group   singleflight.Group
	current atomic.Pointer[Dataset]
}

// NewCache wraps a Loader. ttl <= 0 disables expiry.
func NewCache(loader *Loader, ttl time.Duration) *Cache {
	return &Cache{
		loader: loader,
		ttl:    ttl,
		now:    loader.now,
		logger: loader.logger(),
	}
}

// Current returns the cached dataset without loading. nil before the first
// successful load.
func (c *Cache) Current() *Dataset {
	return c.current.Load()
}

// Stale reports whether ds has outlived the TTL at time now.
func (c *Cache) Stale(ds *Dataset, now time.Time) bool {
	if ds == nil {
		return true
	}
	if c.ttl <= 0 {
		return false
	}
	return now.Sub(ds.LoadedAt) >= c.ttl
}

// Get returns the cached dataset, loading or reloading it when needed.
func (c *Cache) Get(ctx context.Context) (*Dataset, error) {
	ds := c.current.Load()
	if !c.Stale(ds, c.now()) {
		return ds, nil
	}
	fresh, err := c.Refresh(ctx)
	if err != nil {
		if ds != nil {
			c.logger.Warn("reload failed, serving previous dataset",
				zap.Time("loadedAt", ds.LoadedAt), zap.Error(err))
			return ds, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Refresh reloads the dataset and swaps it in on success. Concurrent calls
// share a single load.
func (c *Cache) Refresh(ctx context.Context) (*Dataset, error) {
	v, err, shared := c.group.Do("dataset", func() (any, error) {
		ds, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.current.Store(ds)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("joined in-flight dataset load")
	}
	return v.(*Dataset), nil
}
