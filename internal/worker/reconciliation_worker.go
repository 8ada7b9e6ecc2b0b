package worker

import (
	"context"
	"sync"
	"time"

	"github.com/omniwallet/omniwallet/internal/observability"
	"github.com/omniwallet/omniwallet/internal/service"
	"go.uber.org/zap"
)

// ReconciliationWorker tracks the manual reconciliation backlog: transfers
// whose compensation could not restore the source balance automatically. It
// surfaces the queue size as a gauge for operator alerting.
type ReconciliationWorker struct {
	coord    *service.Coordinator
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciliationWorker constructs a worker with a default five-minute
// interval.
func NewReconciliationWorker(coord *service.Coordinator) *ReconciliationWorker {
	return &ReconciliationWorker{
		coord:    coord,
		interval: 5 * time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and refreshes the backlog gauge at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	backlog, err := w.coord.RequiringReconciliation(ctx, 0)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation scan failed", zap.Error(err))
		return
	}
	observability.SetReconciliationQueueSize(int64(len(backlog)))
	observability.IncrementWorkerRun("reconciliation", "success")
	if len(backlog) > 0 {
		zap.L().Warn("transfers awaiting manual reconciliation", zap.Int("count", len(backlog)))
	}
}
