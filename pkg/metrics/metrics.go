// Package metrics provides the centralized Prometheus registry for the
// directory engine. All metrics are defined in their respective
// packages (cache, ratelimit, source, directory) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the directory
// engine. All metrics are automatically registered via promauto in
// their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - directory_cache_hits_total{store} (Counter): Cache hits by store
//   - directory_cache_misses_total{store} (Counter): Cache misses by store
//   - directory_cache_corrupted_total{store} (Counter): Entries evicted after a digest mismatch
//   - directory_cache_entries{store} (Gauge): Resident entries per store
//   - directory_cache_flushes_total{store} (Counter): Snapshot flushes of the persistent store
//   - directory_cache_invalidations_total{store} (Counter): Invalidation-flag discards
//
// Rate Limit Metrics (pkg/ratelimit):
//   - directory_ratelimit_queue_depth{limiter} (Gauge): Tasks waiting for admission
//   - directory_ratelimit_admitted_total{limiter} (Counter): Tasks admitted into the window
//   - directory_ratelimit_cleared_total{limiter} (Counter): Queued tasks failed by Clear
//
// Source Metrics (pkg/source):
//   - directory_source_fetches_total{source} (Counter): Successful upstream fetches
//   - directory_source_fetch_errors_total{source, kind} (Counter): Fetch failures by error kind
//   - directory_source_fetch_duration_seconds{source} (Histogram): Upstream fetch latency
//
// Aggregator Metrics (pkg/directory):
//   - directory_fallback_stages_total{source, outcome} (Counter): Fallback stage outcomes (hit, miss, failed)
//   - directory_aggregate_degraded_total{source} (Counter): Aggregate computations missing one source
//   - directory_custom_invalidations_total (Counter): Custom catalog change notifications processed
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(directory_cache_hits_total[5m])) /
//   (sum(rate(directory_cache_hits_total[5m])) + sum(rate(directory_cache_misses_total[5m])))
//
//   # Share of single-entity lookups answered by the custom catalog
//   rate(directory_fallback_stages_total{source="custom",outcome="hit"}[5m]) /
//   sum(rate(directory_fallback_stages_total{outcome="hit"}[5m]))
//
//   # Degraded Aggregates
//   rate(directory_aggregate_degraded_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(directory_source_fetch_duration_seconds_bucket[5m]))
