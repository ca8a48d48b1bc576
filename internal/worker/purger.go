// Package worker runs background maintenance jobs.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/utrscan/utrscan/internal/metrics"
)

// DefaultPurgeInterval is the time between purge runs.
const DefaultPurgeInterval = time.Hour

// ExpiredLogPurger deletes logs whose retention has elapsed.
type ExpiredLogPurger interface {
	PurgeExpiredLogs(ctx context.Context, now time.Time) (int64, error)
}

// LogPurger periodically removes expired logs.
type LogPurger struct {
	store    ExpiredLogPurger
	logger   *slog.Logger
	metrics  metrics.Recorder
	interval time.Duration
	now      func() time.Time
	started  atomic.Bool
}

// NewLogPurger creates a purger that runs every interval.
func NewLogPurger(store ExpiredLogPurger, interval time.Duration, logger *slog.Logger, recorder metrics.Recorder) *LogPurger {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LogPurger{
		store:    store,
		logger:   logger.With("component", "worker.log_purger"),
		metrics:  recorder,
		interval: interval,
		now:      time.Now,
	}
}

// Run purges once immediately and then on every tick. Blocks until ctx is
// cancelled, at which point it returns nil.
func (p *LogPurger) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("log purger already started")
	}

	p.logger.Info("log purger started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("log purger stopping")
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// PurgeOnce runs a single purge pass and returns the number of deleted logs.
func (p *LogPurger) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := p.store.PurgeExpiredLogs(ctx, p.now().UTC())
	if err != nil {
		return 0, err
	}
	p.metrics.AddLogsPurged(n)
	return n, nil
}

func (p *LogPurger) runOnce(ctx context.Context) {
	n, err := p.PurgeOnce(ctx)
	switch {
	case err == nil:
		if n > 0 {
			p.logger.Info("expired logs purged", "count", n)
		}
	case errors.Is(err, context.Canceled):
	default:
		p.logger.Error("purge failed", "error", err)
	}
}
