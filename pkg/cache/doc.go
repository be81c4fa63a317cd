// Package cache provides the TTL and integrity-checked cache store that
// shields callers from upstream catalog latency.
//
// Two variants exist:
//
//   - Store: transient, memory-only, with a shorter default TTL
//   - PersistentStore: memory plus a periodic disk snapshot and an
//     externally triggered invalidation flag
//
// Every entry carries a SHA-256 digest of its payload computed at write
// time. The digest is re-checked on every read; a mismatch means the
// entry is corrupted, and it is evicted and reported as absent.
//
// # Basic Usage
//
//	store := cache.New(cache.Config{Name: "transient"}, logger)
//
//	store.Set("providers", providers, 30*time.Minute)
//
//	if raw, ok := store.Get("providers"); ok {
//		// raw is the serialized payload
//	}
//
// # Persistent Variant
//
//	store := cache.NewPersistent(cache.PersistentConfig{
//		Name: "directory",
//		Dir:  cfg.CacheDir,
//	}, logger)
//	defer store.Destroy()
//
// The snapshot file maps key -> {value, expires, created} and is loaded
// once at construction. A corrupt or unreadable snapshot is tolerated:
// the store starts empty. A sibling zero-byte flag file forces a full
// in-memory discard at the next maintenance check, after which the flag
// is deleted. External processes (e.g. a custom-catalog importer) use
// the flag for out-of-process cache busting.
//
// # Failure Model
//
// All operations are fail-soft: faults are logged and converted to
// absent/false/0 results. The single exception is Warm, which
// propagates its fetch failure because the caller needs to know that
// warming failed.
//
// # Metrics
//
//   - directory_cache_hits_total{store}
//   - directory_cache_misses_total{store}
//   - directory_cache_corrupted_total{store}
//   - directory_cache_entries{store}
//   - directory_cache_flushes_total{store}
//   - directory_cache_invalidations_total{store}
package cache
