package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limiting.
var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "directory_ratelimit_queue_depth",
		Help: "Current number of queued tasks by limiter",
	}, []string{"limiter"})

	admittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_ratelimit_admitted_total",
		Help: "Total tasks admitted through the window by limiter",
	}, []string{"limiter"})

	limiterCleared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_ratelimit_cleared_total",
		Help: "Total queued tasks failed by Clear by limiter",
	}, []string{"limiter"})
)
