package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PassRunner runs one queue pass.
type PassRunner interface {
	RunPass(ctx context.Context)
}

// SchedulerWorker triggers a queue pass every interval.
type SchedulerWorker struct {
	runner   PassRunner
	interval time.Duration
	logger   *zap.Logger
}

func NewSchedulerWorker(runner PassRunner, interval time.Duration, logger *zap.Logger) *SchedulerWorker {
	return &SchedulerWorker{runner: runner, interval: interval, logger: logger}
}

// Run ticks every interval and runs a pass. Stops cleanly when ctx is
// cancelled; a pass already in progress is finished first.
func (sw *SchedulerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("ping scheduler started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("ping scheduler stopping")
			return
		case <-ticker.C:
			sw.runner.RunPass(ctx)
		}
	}
}
