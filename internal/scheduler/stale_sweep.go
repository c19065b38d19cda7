package scheduler

import (
	"context"
	"time"

	"aprendeai-extraction-worker/internal/logger"
	"aprendeai-extraction-worker/internal/telemetry"
)

const StaleSweepTag = "stale-running-sweep"

// StaleFailer marks RUNNING extractions older than olderThan as FAILED.
type StaleFailer interface {
	FailStaleRunning(ctx context.Context, olderThan time.Duration) (int64, error)
}

// StaleSweep returns a job that fails extractions left RUNNING by a crashed worker.
func StaleSweep(store StaleFailer, olderThan time.Duration, metrics *telemetry.Metrics) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := store.FailStaleRunning(ctx, olderThan)
		if err != nil {
			logger.Error("Stale extraction sweep failed", "error", err)
			return
		}
		if count > 0 {
			logger.Warn("Marked stale extractions as FAILED", "count", count, "older_than", olderThan.String())
		}
		metrics.RecordStaleSwept(ctx, count)
	}
}

// ScheduleStaleSweep registers the sweep on s every interval.
func ScheduleStaleSweep(s *Scheduler, store StaleFailer, interval, olderThan time.Duration, metrics *telemetry.Metrics) error {
	return s.ScheduleInterval(StaleSweepTag, interval, StaleSweep(store, olderThan, metrics))
}
