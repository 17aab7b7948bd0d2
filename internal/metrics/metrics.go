package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/osvaldoandrade/xebench/internal/backoff"
)

const (
	namespace    = "xebench"
	pushAttempts = 3
)

var (
	TaskStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_started_total",
			Help:      "Total number of recorded tasks that started.",
		},
		[]string{"task_type"},
	)

	TaskFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_finished_total",
			Help:      "Total number of recorded tasks that finished, labeled by outcome.",
		},
		[]string{"task_type", "outcome"},
	)

	TaskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of recorded tasks (seconds).",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200, 14400},
		},
		[]string{"task_type"},
	)

	SnapshotWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Total number of worker snapshot rewrites.",
		},
	)

	AggregateFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_files_total",
			Help:      "Snapshot files seen by the aggregator, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	FidelityXEB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fidelity_xeb",
			Help:      "Most recent linear cross-entropy fidelity estimate.",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Report API requests, labeled by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Report API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		TaskStartedTotal,
		TaskFinishedTotal,
		TaskDurationSeconds,
		SnapshotWritesTotal,
		AggregateFilesTotal,
		FidelityXEB,
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
	)
}

// Push sends the default registry to a Prometheus pushgateway, grouped by job
// id so every worker keeps its own series. Batch workers exit before any
// scrape, so this is the only way their counters leave the process. Failed
// pushes are retried a few times with jittered backoff.
func Push(ctx context.Context, gatewayURL, job, jobID string) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("job_id", jobID)
	err := backoff.Retry(ctx, pushAttempts, backoff.ExpFullJitter, 200*time.Millisecond, 2*time.Second, func() error {
		return pusher.PushContext(ctx)
	})
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
