package worker

import (
	"context"
	"sync"
	"time"

	"github.com/omniwallet/omniwallet/internal/observability"
	"github.com/omniwallet/omniwallet/internal/service"
	"go.uber.org/zap"
)

// ResumeWorker periodically re-queues non-terminal transfers so sagas survive
// crashes and full execution queues. The coordinator skips records it is
// already driving, so overlapping runs are harmless.
type ResumeWorker struct {
	coord     *service.Coordinator
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewResumeWorker constructs a worker with a default one-minute interval.
func NewResumeWorker(coord *service.Coordinator) *ResumeWorker {
	return &ResumeWorker{
		coord:     coord,
		interval:  time.Minute,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ResumeWorker) WithInterval(interval time.Duration) *ResumeWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize updates how many in-flight records each run re-queues.
func (w *ResumeWorker) WithBatchSize(n int) *ResumeWorker {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// Start blocks and re-queues in-flight transfers at the configured interval.
func (w *ResumeWorker) Start(ctx context.Context) {
	zap.L().Info("resume worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup to pick up pre-crash records.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("resume worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("resume worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ResumeWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ResumeWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ResumeWorker) runOnce(ctx context.Context) {
	queued, err := w.coord.Resume(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("resume", "failed")
		zap.L().Error("resume run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("resume", "success")
	if queued > 0 {
		zap.L().Info("re-queued in-flight transfers", zap.Int("count", queued))
	}
}
