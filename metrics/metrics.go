// Package metrics exposes Prometheus collectors for the sync layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studysync"

var (
	// Registry holds the studysync collectors
	Registry = prometheus.NewRegistry()

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads by resource and result (hit, miss, stale).",
		},
		[]string{"resource", "result"},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of entries currently held by the query cache.",
		},
	)

	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries marked stale by invalidation.",
		},
		[]string{"resource"},
	)

	cacheCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "collected_total",
			Help:      "Inactive entries removed by garbage collection.",
		},
	)

	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetches_total",
			Help:      "Network fetches issued for queries, by outcome.",
		},
		[]string{"resource", "outcome"},
	)

	fetchDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "deduplicated_total",
			Help:      "Reads that joined a fetch already in flight.",
		},
		[]string{"resource"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "mutations_total",
			Help:      "Mutations by resource, operation and outcome.",
		},
		[]string{"resource", "op", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Backend requests by method and status (0 for network failures).",
		},
		[]string{"method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method"},
	)

	tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "task_runs_total",
			Help:      "Scheduled maintenance task runs by task and outcome.",
		},
		[]string{"task", "outcome"},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "messages_total",
			Help:      "Invalidation messages by direction (sent, applied, ignored, failed).",
		},
		[]string{"transport", "direction"},
	)
)

func init() {
	Registry.MustRegister(
		cacheLookups,
		cacheEntries,
		cacheInvalidations,
		cacheCollected,
		fetches,
		fetchDeduplicated,
		mutations,
		httpRequests,
		httpDuration,
		tasks,
		broadcasts,
	)
}

// Handler returns an HTTP handler exposing the registered collectors
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Lookup results
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
)

// ObserveLookup records one cache read
func ObserveLookup(resource, result string) {
	cacheLookups.WithLabelValues(resource, result).Inc()
}

// SetEntries records the current cache size
func SetEntries(n int) {
	cacheEntries.Set(float64(n))
}

// ObserveInvalidation records entries of a resource marked stale
func ObserveInvalidation(resource string, n int) {
	cacheInvalidations.WithLabelValues(resource).Add(float64(n))
}

// ObserveCollected records entries removed by GC
func ObserveCollected(n int) {
	cacheCollected.Add(float64(n))
}

// ObserveFetch records a completed fetch
func ObserveFetch(resource string, err error) {
	fetches.WithLabelValues(resource, outcome(err)).Inc()
}

// ObserveDeduplicated records a read that joined an in-flight fetch
func ObserveDeduplicated(resource string) {
	fetchDeduplicated.WithLabelValues(resource).Inc()
}

// ObserveMutation records a completed mutation
func ObserveMutation(resource, op string, err error) {
	mutations.WithLabelValues(resource, op, outcome(err)).Inc()
}

// ObserveRequest records a backend request; status 0 means no response
func ObserveRequest(method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveTask records one run of a scheduled task
func ObserveTask(task string, err error) {
	tasks.WithLabelValues(task, outcome(err)).Inc()
}

// Broadcast directions
const (
	BroadcastSent    = "sent"
	BroadcastApplied = "applied"
	BroadcastIgnored = "ignored"
	BroadcastFailed  = "failed"
)

// ObserveBroadcast records one invalidation message
func ObserveBroadcast(transport, direction string) {
	broadcasts.WithLabelValues(transport, direction).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
