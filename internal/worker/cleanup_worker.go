package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/service"
)

// CleanupRunner performs one retention sweep.
type CleanupRunner interface {
	Run(ctx context.Context) (service.CleanupReport, error)
}

// CleanupWorker runs the retention sweep on a fixed interval.
type CleanupWorker struct {
	runner   CleanupRunner
	interval time.Duration
	logger   *zap.Logger
}

// NewCleanupWorker creates the worker. A non-positive interval disables it.
func NewCleanupWorker(runner CleanupRunner, interval time.Duration, logger *zap.Logger) *CleanupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupWorker{runner: runner, interval: interval, logger: logger}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *CleanupWorker) Start(ctx context.Context) {
	if w.runner == nil || w.interval <= 0 {
		w.logger.Info("retention cleanup worker disabled")
		return
	}
	go w.loop(ctx)
}

func (w *CleanupWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	report, err := w.runner.Run(ctx)
	if err != nil {
		w.logger.Warn("retention cleanup finished with errors",
			zap.Strings("failed_tenants", report.FailedTenantIDs),
			zap.Error(err))
	}
}
