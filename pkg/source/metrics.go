package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for upstream fetches.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_source_fetches_total",
		Help: "Total successful upstream fetches by source",
	}, []string{"source"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_source_fetch_errors_total",
		Help: "Total upstream fetch failures by source and error kind",
	}, []string{"source", "kind"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "directory_source_fetch_duration_seconds",
		Help:    "Upstream fetch duration in seconds by source",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})
)
