package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sync pipeline Prometheus metrics.
var (
	ObjectsSyncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentdex",
			Name:      "objects_synced_total",
			Help:      "Content objects successfully indexed",
		},
		[]string{"indexable"},
	)

	ObjectsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentdex",
			Name:      "objects_failed_total",
			Help:      "Content objects that exhausted bulk retries",
		},
		[]string{"indexable"},
	)

	ObjectsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentdex",
			Name:      "objects_skipped_total",
			Help:      "Content objects excluded before indexing",
		},
		[]string{"indexable", "reason"}, // "kill_switch" / "gone"
	)

	BulkRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "contentdex",
			Name:      "bulk_retries_total",
			Help:      "Retry submissions of failed bulk subsets",
		},
	)

	PageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contentdex",
			Name:      "sync_page_duration_seconds",
			Help:      "Duration of one sync page (fetch, map, bulk, persist)",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"indexable"},
	)

	ESRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentdex",
			Name:      "elasticsearch_requests_total",
			Help:      "Elasticsearch requests by operation and outcome",
		},
		[]string{"operation", "status"}, // status: "success" / "error"
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers sync metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(ObjectsSyncedTotal)
	prometheus.MustRegister(ObjectsFailedTotal)
	prometheus.MustRegister(ObjectsSkippedTotal)
	prometheus.MustRegister(BulkRetriesTotal)
	prometheus.MustRegister(PageDuration)
	prometheus.MustRegister(ESRequestsTotal)
	syncMetricsRegistered = true
}
