package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for router behavior.
var (
	// routerRequests counts routed queries by outcome.
	routerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_requests_total",
			Help: "Total number of routed queries by outcome",
		},
		[]string{"status"},
	)

	// sourceDispatches counts per-source dispatch outcomes.
	sourceDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_source_dispatches_total",
			Help: "Total number of source dispatches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// dispatchDuration measures source dispatch latency in seconds.
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_source_dispatch_duration_seconds",
			Help:    "Source dispatch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	// contextChars measures composed context size in characters.
	contextChars = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "router_context_chars",
			Help:    "Composed context size in characters",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
	)
)
