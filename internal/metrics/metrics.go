// Package metrics holds the prometheus collectors for sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "access_mirror_sync_duration_seconds",
			Help:    "Duration of sync invocations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_mirror_sync_records_total",
			Help: "Records written by sync invocations",
		},
		[]string{"operation", "outcome"}, // outcome: new, updated, deactivated, upserted, deleted
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_mirror_sync_errors_total",
			Help: "Failed sync invocations and members by error kind",
		},
		[]string{"operation", "kind"},
	)

	RequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_mirror_request_retries_total",
			Help: "Remote requests retried after a retryable failure",
		},
		[]string{"kind"},
	)

	ThrottleWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_mirror_throttle_waits_total",
			Help: "Pre-flight throttle waits by quota band",
		},
		[]string{"band"},
	)

	QuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "access_mirror_quota_remaining",
			Help: "Last observed remaining remote quota",
		},
	)

	QuotaLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "access_mirror_quota_limit",
			Help: "Last observed remote quota ceiling",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "access_mirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordSync records the duration and error kind of one sync invocation.
// errKind is empty on success.
func RecordSync(operation string, duration time.Duration, errKind string) {
	SyncDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errKind != "" {
		SyncErrors.WithLabelValues(operation, errKind).Inc()
	}
}

// AddRecords adds n to the record counter for operation and outcome.
func AddRecords(operation, outcome string, n int) {
	if n > 0 {
		SyncRecords.WithLabelValues(operation, outcome).Add(float64(n))
	}
}
