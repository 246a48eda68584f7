// Package metrics provides Prometheus metrics for the solve statistics engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns all Prometheus metrics for the engine.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	// Fetch path
	pagesFetched    prometheus.Counter
	submissionsSeen prometheus.Counter
	fetchErrors     prometheus.Counter
	fetchLatency    prometheus.Histogram
	inFlightFetches prometheus.Gauge

	// Cache path
	cacheLoads         prometheus.Counter
	cacheInvalidations prometheus.Counter
	cacheSaveErrors    prometheus.Counter

	// Batch path
	accountsProcessed prometheus.Counter
	accountsFailed    prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager()
}

// NewManager creates a metrics manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "cfstat",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.pagesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "judge_pages_fetched_total",
		Help:      "Total submission pages fetched from the judge API",
	})
	m.submissionsSeen = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "judge_submissions_seen_total",
		Help:      "Total submissions returned by the judge API",
	})
	m.fetchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "judge_fetch_errors_total",
		Help:      "Total failed judge API calls",
	})
	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "judge_fetch_latency_seconds",
		Help:      "Latency of individual judge API page requests",
		Buckets:   m.buckets,
	})
	m.inFlightFetches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "judge_inflight_fetches",
		Help:      "Accounts currently being fetched",
	})

	m.cacheLoads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_loads_total",
		Help:      "Total account cache load operations",
	})
	m.cacheInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_invalidations_total",
		Help:      "Account cache records reset due to corruption or version mismatch",
	})
	m.cacheSaveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_save_errors_total",
		Help:      "Failed account cache writes",
	})

	m.accountsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "accounts_processed_total",
		Help:      "Accounts summarized successfully",
	})
	m.accountsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "accounts_failed_total",
		Help:      "Accounts that failed with a fetch error",
	})

	return m
}

// Handler returns an HTTP handler exposing the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package-level helpers recording on the global manager.

func RecordPageFetched()           { globalManager.pagesFetched.Inc() }
func RecordSubmissionsSeen(n int)  { globalManager.submissionsSeen.Add(float64(n)) }
func RecordFetchError()            { globalManager.fetchErrors.Inc() }
func RecordFetchLatency(s float64) { globalManager.fetchLatency.Observe(s) }
func IncInFlightFetches()          { globalManager.inFlightFetches.Inc() }
func DecInFlightFetches()          { globalManager.inFlightFetches.Dec() }
func RecordCacheLoad()             { globalManager.cacheLoads.Inc() }
func RecordCacheInvalidation()     { globalManager.cacheInvalidations.Inc() }
func RecordCacheSaveError()        { globalManager.cacheSaveErrors.Inc() }
func RecordAccountProcessed()      { globalManager.accountsProcessed.Inc() }
func RecordAccountFailed()         { globalManager.accountsFailed.Inc() }

// Handler exposes the global manager's registry.
func Handler() http.Handler { return globalManager.Handler() }
