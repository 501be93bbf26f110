package jobs

import (
	"context"
	"time"

	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/pkg/logger"
	"github.com/wonny/talos/pkg/redis"
)

// PnLSnapshotJob periodically mirrors the daily PnL snapshot to redis so
// dashboards can read it without touching the ledger.
type PnLSnapshotJob struct {
	ledger  *ledger.Ledger
	feed    *market.Feed
	cache   *redis.Cache
	symbols []string
	logger  *logger.Logger
}

// NewPnLSnapshotJob creates the PnL snapshot job
func NewPnLSnapshotJob(led *ledger.Ledger, feed *market.Feed, cache *redis.Cache, symbols []string, log *logger.Logger) *PnLSnapshotJob {
	return &PnLSnapshotJob{
		ledger:  led,
		feed:    feed,
		cache:   cache,
		symbols: symbols,
		logger:  log,
	}
}

// Name returns the job name
func (j *PnLSnapshotJob) Name() string {
	return "pnl_snapshot"
}

// Schedule returns the cron schedule (every minute, with seconds)
func (j *PnLSnapshotJob) Schedule() string {
	return "0 * * * * *"
}

// Run computes a mark-to-market snapshot and caches it
func (j *PnLSnapshotJob) Run(ctx context.Context) error {
	marks := j.feed.LastPrices(j.symbols)
	snap := j.ledger.PnL(marks)

	date := time.Now().UTC().Format("2006-01-02")
	if err := j.cache.Set(ctx, redis.PnLKey(date), snap, 48*time.Hour); err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"realized":   snap.RealizedToday,
		"unrealized": snap.Unrealized,
	}).Debug("PnL snapshot cached")
	return nil
}
