package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BatchesSucceeded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_egress_batches_succeeded_total",
			Help: "Total number of batches written durably",
		},
		[]string{"database", "shard"},
	)

	BatchesRetried = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_egress_batches_retried_total",
			Help: "Total number of batch write attempts that hit a recoverable failure",
		},
		[]string{"database", "shard"},
	)

	BatchesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_egress_batches_failed_total",
			Help: "Total number of batches dropped on unrecoverable failure",
		},
		[]string{"database", "shard"},
	)

	MessagesFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_egress_messages_flushed_total",
			Help: "Total number of messages flushed to storage",
		},
		[]string{"database", "shard"},
	)

	BytesFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_egress_bytes_flushed_total",
			Help: "Total number of payload bytes flushed to storage",
		},
		[]string{"database", "shard"},
	)

	FlushLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_egress_flush_latency_seconds",
			Help:    "Histogram of storage write latency per flush",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"database", "shard"},
	)
)

// ObserveFlushSuccess records a durable batch write.
// Fire-and-forget: must never block or fail the flush path.
func ObserveFlushSuccess(database string, shard int, messages, bytes int, elapsedSeconds float64) {
	s := strconv.Itoa(shard)
	BatchesSucceeded.WithLabelValues(database, s).Inc()
	MessagesFlushed.WithLabelValues(database, s).Add(float64(messages))
	BytesFlushed.WithLabelValues(database, s).Add(float64(bytes))
	FlushLatency.WithLabelValues(database, s).Observe(elapsedSeconds)
}

// ObserveFlushRetry records a recoverable write failure.
func ObserveFlushRetry(database string, shard int) {
	BatchesRetried.WithLabelValues(database, strconv.Itoa(shard)).Inc()
}

// ObserveFlushFailure records an unrecoverable write failure.
func ObserveFlushFailure(database string, shard int) {
	BatchesFailed.WithLabelValues(database, strconv.Itoa(shard)).Inc()
}
