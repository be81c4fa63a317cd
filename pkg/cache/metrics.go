package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_cache_hits_total",
		Help: "Total cache hits by store",
	}, []string{"store"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_cache_misses_total",
		Help: "Total cache misses by store",
	}, []string{"store"})

	cacheCorrupted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_cache_corrupted_total",
		Help: "Total corrupted cache entries evicted by store",
	}, []string{"store"})

	cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "directory_cache_entries",
		Help: "Current number of resident cache entries by store",
	}, []string{"store"})

	cacheFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_cache_flushes_total",
		Help: "Total snapshot flushes by store",
	}, []string{"store"})

	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_cache_invalidations_total",
		Help: "Total full discards triggered by the invalidation flag",
	}, []string{"store"})
)
