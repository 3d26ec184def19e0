// Package usagesweep removes local usage counters that fell out of the
// retention window.
package usagesweep

import (
	"context"
	"fmt"
	"time"

	"careerguide/internal/metrics"
	"careerguide/internal/model"
	"careerguide/internal/usage"

	"github.com/rs/zerolog"
)

// Cutoff is the first month that is kept: counters for earlier months are
// removed. retentionMonths counts the current month.
func Cutoff(now time.Time, retentionMonths int) model.YearMonth {
	if retentionMonths < 1 {
		retentionMonths = 1
	}
	return model.MonthOf(now).AddMonths(-(retentionMonths - 1))
}

// SweepOnce removes counters older than the retention window.
func SweepOnce(ctx context.Context, logger zerolog.Logger, sweeper usage.Sweeper, now time.Time, retentionMonths int) (int64, error) {
	before := Cutoff(now, retentionMonths)
	n, err := sweeper.Sweep(ctx, before)
	if err != nil {
		return 0, err
	}
	metrics.UsageSwept.Add(float64(n))
	logger.Info().Int64("removed", n).Str("before", before.String()).Msg("Swept usage counters")
	return n, nil
}

// Run starts the usage sweep orchestrator. It sweeps once immediately, then
// every interval. A non-positive interval is rejected.
func Run(ctx context.Context, logger zerolog.Logger, sweeper usage.Sweeper, interval time.Duration, retentionMonths int) error {
	if interval <= 0 {
		return fmt.Errorf("usage sweep interval must be positive, got %s", interval)
	}
	logger.Info().Dur("interval", interval).Int("retention_months", retentionMonths).Msg("Starting usage sweep orchestrator")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := SweepOnce(ctx, logger, sweeper, time.Now(), retentionMonths); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Error sweeping usage counters")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down usage sweep orchestrator")
			return nil
		case <-ticker.C:
		}
	}
}
