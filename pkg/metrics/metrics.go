package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Document store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Catalog metrics
	MoveConflicts prometheus.Counter
	Migrations    prometheus.Counter

	// Public read path
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Broker metrics
	EventsPublished *prometheus.CounterVec
	Exports         *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg. A nil
// registerer falls back to the prometheus default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of document store operations",
		}, []string{"operation", "status"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of document store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		MoveConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_move_conflicts_total",
			Help:      "Number of reorder attempts rejected by a version conflict",
		}),
		Migrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_migrated_records_total",
			Help:      "Number of records stamped with the default category",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "public_cache_hits_total",
			Help:      "Public listing cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "public_cache_misses_total",
			Help:      "Public listing cache misses",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change events published to the broker",
		}, []string{"channel", "status"}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "static_exports_total",
			Help:      "Static page export runs",
		}, []string{"trigger", "status"}),
	}
}

// ObserveStore records the outcome of a store operation. Safe on a nil receiver.
func (m *Metrics) ObserveStore(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(operation, status).Inc()
	m.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncMoveConflict() {
	if m != nil {
		m.MoveConflicts.Inc()
	}
}

func (m *Metrics) AddMigrated(n int) {
	if m != nil && n > 0 {
		m.Migrations.Add(float64(n))
	}
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) IncPublished(channel string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) IncExport(trigger string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Exports.WithLabelValues(trigger, status).Inc()
}
