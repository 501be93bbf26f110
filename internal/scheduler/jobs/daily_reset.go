package jobs

import (
	"context"

	"github.com/wonny/talos/internal/ledger"
	"github.com/wonny/talos/pkg/logger"
)

// DailyResetJob zeroes the running daily realized PnL at UTC midnight.
// Positions and trade history survive the reset.
// ⭐ SSOT: 일일 PnL 리셋은 이 Job에서만
type DailyResetJob struct {
	ledger *ledger.Ledger
	logger *logger.Logger
}

// NewDailyResetJob creates the daily PnL reset job
func NewDailyResetJob(led *ledger.Ledger, log *logger.Logger) *DailyResetJob {
	return &DailyResetJob{ledger: led, logger: log}
}

// Name returns the job name
func (j *DailyResetJob) Name() string {
	return "daily_reset"
}

// Schedule returns the cron schedule (UTC midnight, with seconds)
func (j *DailyResetJob) Schedule() string {
	return "0 0 0 * * *"
}

// Run resets the daily realized PnL counter
func (j *DailyResetJob) Run(ctx context.Context) error {
	realized := j.ledger.RealizedToday()
	j.ledger.ResetDay()

	j.logger.WithFields(map[string]interface{}{
		"closed_day_realized": realized,
	}).Info("Daily PnL reset")
	return nil
}
