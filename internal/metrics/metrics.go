package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	itemsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "items_enqueued_total",
			Help:      "Items accepted into the sync queue, by collection.",
		},
		[]string{"collection"},
	)

	itemsSynced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "items_synced_total",
			Help:      "Items confirmed against the remote store, by collection.",
		},
		[]string{"collection"},
	)

	itemRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "item_retries_total",
			Help:      "Failed attempts that were rescheduled, by collection.",
		},
		[]string{"collection"},
	)

	itemsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "items_dropped_total",
			Help:      "Items abandoned after exhausting their retry budget.",
		},
		[]string{"collection"},
	)

	drains = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "drains_total",
			Help:      "Completed drain cycles.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "driftq",
			Name:      "queue_depth",
			Help:      "Pending items currently mirrored in memory.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(itemsEnqueued, itemsSynced, itemRetries, itemsDropped, drains, queueDepth)
	})
}

func IncEnqueued(collection string) {
	itemsEnqueued.WithLabelValues(collection).Inc()
}

func IncSynced(collection string) {
	itemsSynced.WithLabelValues(collection).Inc()
}

func IncRetry(collection string) {
	itemRetries.WithLabelValues(collection).Inc()
}

func IncDropped(collection string) {
	itemsDropped.WithLabelValues(collection).Inc()
}

func IncDrain() {
	drains.Inc()
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
