package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpDurationHistogram     *prometheus.HistogramVec
	transferTransitionCounter *prometheus.CounterVec
	adapterCallCounter        *prometheus.CounterVec
	portfolioStaleCounter     *prometheus.CounterVec
	reconciliationQueueGauge  prometheus.Gauge
	workerRunCounter          *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_state_transitions_total",
			Help: "Transfer saga state transitions",
		}, []string{"state"})

		adapterCallCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_adapter_calls_total",
			Help: "Chain adapter call outcomes",
		}, []string{"backend", "op", "outcome"})

		portfolioStaleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_stale_snapshots_total",
			Help: "Wallet snapshots served stale during portfolio aggregation",
		}, []string{"backend"})

		reconciliationQueueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transfer_manual_reconciliation_queue_size",
			Help: "Current number of transfers requiring manual reconciliation",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferTransitionCounter,
			adapterCallCounter,
			portfolioStaleCounter,
			reconciliationQueueGauge,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransferTransition(state string) {
	if transferTransitionCounter == nil {
		return
	}
	transferTransitionCounter.WithLabelValues(state).Inc()
}

func IncrementAdapterCall(backend, op, outcome string) {
	if adapterCallCounter == nil {
		return
	}
	adapterCallCounter.WithLabelValues(backend, op, outcome).Inc()
}

func IncrementPortfolioStale(backend string) {
	if portfolioStaleCounter == nil {
		return
	}
	portfolioStaleCounter.WithLabelValues(backend).Inc()
}

func SetReconciliationQueueSize(size int64) {
	if reconciliationQueueGauge == nil {
		return
	}
	reconciliationQueueGauge.Set(float64(size))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
