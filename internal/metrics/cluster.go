package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sqee"

// Cluster Prometheus metrics.
var (
	ClusterOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_operations_total",
			Help:      "Total number of registry operations",
		},
		[]string{"op", "outcome"},
	)

	ClusterOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_operation_duration_seconds",
			Help:      "Registry operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	BulkItemErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_item_errors_total",
			Help:      "Documents rejected inside bulk commits and deletes",
		},
		[]string{"op"},
	)

	ForcedRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_refresh_total",
			Help:      "Document writes that asked for immediate visibility",
		},
		[]string{"op"},
	)

	QueryIndices = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_indices",
			Help:      "Number of indices a query fans out to",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		},
	)

	CollectionsCached = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collections_cached",
			Help:      "Collections held by a registry",
		},
		[]string{"scope"},
	)
)

var registerOnce sync.Once

// RegisterClusterMetrics registers the registry metrics. Must be called once from main.
func RegisterClusterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ClusterOperationsTotal,
			ClusterOperationDuration,
			BulkItemErrorsTotal,
			ForcedRefreshTotal,
			QueryIndices,
			CollectionsCached,
		)
	})
}

// ObserveOperation records the outcome and latency of one registry operation.
func ObserveOperation(op, outcome string, start time.Time) {
	ClusterOperationsTotal.WithLabelValues(op, outcome).Inc()
	ClusterOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
