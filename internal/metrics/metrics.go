// Package metrics exposes Prometheus metrics for the sync engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all sync engine metrics.
type Registry struct {
	// Source fetch metrics
	SourceFetches *prometheus.CounterVec

	// Snapshot metrics
	RangesCurrent *prometheus.GaugeVec

	// Reconciliation metrics
	RuleOps           *prometheus.CounterVec
	SyncRuns          *prometheus.CounterVec
	SyncDuration      prometheus.Histogram
	LastSyncTimestamp prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rangesync",
		Name:      "source_fetch_total",
		Help:      "Source fetch attempts by source and result",
	}, []string{"source", "result"})

	r.RangesCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rangesync",
		Name:      "ranges_current",
		Help:      "Ranges in the most recent snapshot by IP version",
	}, []string{"version"})

	r.RuleOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rangesync",
		Name:      "rule_ops_total",
		Help:      "Rule operations by operation and status",
	}, []string{"op", "status"})

	r.SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rangesync",
		Name:      "sync_runs_total",
		Help:      "Completed sync passes by result",
	}, []string{"result"})

	r.SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rangesync",
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync passes",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	r.LastSyncTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rangesync",
		Name:      "last_sync_timestamp",
		Help:      "Unix time of the last successful sync pass",
	})

	return r
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	Get()
	return promhttp.Handler()
}
