// Package metrics holds the Prometheus collectors of the match engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilmatch_search_requests_total",
			Help: "Total number of search and score requests",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nilmatch_search_duration_seconds",
			Help:    "Duration of ranked searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	CandidatesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilmatch_candidates_scored_total",
			Help: "Total number of candidates scored",
		},
		[]string{"mode"},
	)

	SearchPartial = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nilmatch_search_partial_total",
			Help: "Searches that returned partial results after a fetch timeout",
		},
	)

	RefreshInteractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilmatch_refresh_interactions_total",
			Help: "Interactions processed by the score refresh job",
		},
		[]string{"result"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilmatch_cache_requests_total",
			Help: "Store cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nilmatch_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Label values shared by callers.
const (
	StatusOK    = "ok"
	StatusError = "error"

	ResultUpdated = "updated"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)
