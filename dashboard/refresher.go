package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/spektr-org/patrimonia/dataset"
)

// Refresher reloads the dataset cache on a fixed interval so requests
// rarely pay for a load.
type Refresher struct {
	cache     *dataset.Cache
	interval  time.Duration
	logger    *zap.Logger
	scheduler *gocron.Scheduler
}

// NewRefresher builds a Refresher. interval <= 0 makes Start a no-op.
func NewRefresher(cache *dataset.Cache, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{cache: cache, interval: interval, logger: logger}
}

// Start schedules the reload. The first run happens one interval from now.
func (r *Refresher) Start() error {
	if r.interval <= 0 {
		return nil
	}
	if r.scheduler != nil {
		return errors.New("refresher already started")
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(r.interval).WaitForSchedule().Do(r.refresh); err != nil {
		return err
	}
	r.logger.Info("scheduled dataset refresh", zap.Duration("interval", r.interval))
	s.StartAsync()
	r.scheduler = s
	return nil
}

// Stop halts the schedule. Safe to call when never started.
func (r *Refresher) Stop() {
	if r.scheduler == nil {
		return
	}
	r.scheduler.Stop()
	r.scheduler = nil
	r.logger.Info("dataset refresh stopped")
}

func (r *Refresher) refresh() {
	ds, err := r.cache.Refresh(context.Background())
	if err != nil {
		r.logger.Warn("scheduled refresh failed", zap.Error(err))
		return
	}
	r.logger.Info("scheduled refresh done", zap.Int("rows", ds.Table.Len()))
}
