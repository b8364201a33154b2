package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache effectiveness and store health.
var (
	// cacheHits counts successful cache reads.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses counts cache reads that fell through to computation,
	// including reads degraded to misses by store failures.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheErrors counts store and codec failures by operation.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache store or codec errors",
		},
		[]string{"operation"},
	)

	// cacheStampedesPrevented counts get-or-compute callers that shared
	// another caller's in-flight computation instead of recomputing.
	cacheStampedesPrevented = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_stampedes_prevented_total",
			Help: "Total number of duplicate computations avoided by in-flight sharing",
		},
	)
)
