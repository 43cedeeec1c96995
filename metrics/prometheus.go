package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector backed by a prometheus registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	reconcileTime   prometheus.Histogram
	differences     prometheus.Histogram
	rollbacks       *prometheus.CounterVec
	snapshotsWiped  prometheus.Counter
	transitions     *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		registry: registry,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_cache_hits_total",
			Help: "Cache reads served from a fresh entry.",
		}, []string{"key"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_cache_misses_total",
			Help: "Cache reads that degraded to no-cache, by reason.",
		}, []string{"key", "reason"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_cache_evictions_total",
			Help: "Entries evicted under quota pressure.",
		}, []string{"key"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_reconciliations_total",
			Help: "Completed reconciliation passes, by outcome.",
		}, []string{"outcome"}),
		reconcileTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quotesync_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
		differences: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quotesync_reconciliation_differences",
			Help:    "Number of diverging fields found per pass.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_rollbacks_total",
			Help: "Rollback compensating transactions, by outcome.",
		}, []string{"outcome"}),
		snapshotsWiped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotesync_rollback_snapshots_deleted_total",
			Help: "Snapshots deleted by rollback transactions.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotesync_state_transitions_total",
			Help: "Sync state machine transitions.",
		}, []string{"from", "to"}),
	}

	registry.MustRegister(
		c.cacheHits, c.cacheMisses, c.cacheEvictions,
		c.reconciliations, c.reconcileTime, c.differences,
		c.rollbacks, c.snapshotsWiped, c.transitions,
	)

	return c
}

// Handler returns an http.Handler exposing the collector's registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *PrometheusCollector) RecordCacheHit(key string) {
	c.cacheHits.WithLabelValues(key).Inc()
}

func (c *PrometheusCollector) RecordCacheMiss(key, reason string) {
	c.cacheMisses.WithLabelValues(key, reason).Inc()
}

func (c *PrometheusCollector) RecordCacheEviction(key string) {
	c.cacheEvictions.WithLabelValues(key).Inc()
}

func (c *PrometheusCollector) RecordReconciliation(hasDifferences bool, d time.Duration) {
	outcome := "clean"
	if hasDifferences {
		outcome = "divergent"
	}
	c.reconciliations.WithLabelValues(outcome).Inc()
	c.reconcileTime.Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordDifferences(count int) {
	c.differences.Observe(float64(count))
}

func (c *PrometheusCollector) RecordRollback(success bool, snapshotsDeleted int) {
	outcome := "failure"
	if success {
		outcome = "success"
		c.snapshotsWiped.Add(float64(snapshotsDeleted))
	}
	c.rollbacks.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) RecordStateTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}
