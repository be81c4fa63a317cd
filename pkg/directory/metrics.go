package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbackStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_fallback_stages_total",
			Help: "Fallback stage outcomes per source (hit, miss, failed).",
		},
		[]string{"source", "outcome"},
	)

	aggregateDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_aggregate_degraded_total",
			Help: "Aggregate computations that lost one source's contribution.",
		},
		[]string{"source"},
	)

	customInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_custom_invalidations_total",
			Help: "Custom catalog change notifications processed.",
		},
	)
)
