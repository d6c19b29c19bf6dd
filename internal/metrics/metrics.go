// Package metrics exposes Prometheus instruments for the catalog core.
//
// A *Metrics is built against an explicit registerer so tests and embedders
// can use private registries. All methods are safe on a nil receiver, which
// turns instrumentation off.
package metrics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog"

// Activity outcomes.
const (
	ActivityEnqueued = "enqueued"
	ActivityWritten  = "written"
	ActivityFailed   = "failed"
	ActivityDropped  = "dropped"
)

type Metrics struct {
	registerer prometheus.Registerer

	AcquireWait    *prometheus.HistogramVec
	PoolExhausted  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	SearchResults  prometheus.Histogram
	ActivityEvents *prometheus.CounterVec
}

// New creates and registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registerer: reg,
		AcquireWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled connection.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"pool"}),
		PoolExhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_exhausted_total",
			Help:      "Acquisitions rejected because no connection was available in time.",
		}, []string{"pool"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency including category hydration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of books returned per search page.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		ActivityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "events_total",
			Help:      "Activity log entries by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveAcquire records how long a caller waited for a connection.
func (m *Metrics) ObserveAcquire(pool string, wait time.Duration) {
	if m == nil {
		return
	}
	m.AcquireWait.WithLabelValues(pool).Observe(wait.Seconds())
}

// PoolExhaustedInc counts a rejected acquisition.
func (m *Metrics) PoolExhaustedInc(pool string) {
	if m == nil {
		return
	}
	m.PoolExhausted.WithLabelValues(pool).Inc()
}

// ObserveSearch records one search call. mode is "text" or "list".
func (m *Metrics) ObserveSearch(mode string, took time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(mode).Observe(took.Seconds())
	m.SearchResults.Observe(float64(results))
}

// Activity counts one activity entry outcome.
func (m *Metrics) Activity(outcome string) {
	if m == nil {
		return
	}
	m.ActivityEvents.WithLabelValues(outcome).Inc()
}

// RegisterDBStats exports database/sql pool statistics for db under name.
func (m *Metrics) RegisterDBStats(name string, db *sql.DB) error {
	if m == nil {
		return nil
	}
	if err := m.registerer.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		return fmt.Errorf("failed to register db stats for %s: %w", name, err)
	}
	return nil
}
