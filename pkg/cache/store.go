package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MinTTL is the floor applied to any requested TTL.
	MinTTL = 1 * time.Second

	// DefaultTransientTTL is the default TTL of the memory-only store.
	DefaultTransientTTL = 1 * time.Hour
)

// Config holds store configuration.
type Config struct {
	// Name labels the store in logs and metrics.
	Name string

	// DefaultTTL is applied when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// Disabled turns every operation into a fail-soft no-op.
	Disabled bool
}

// Store is an in-memory TTL cache with integrity-checked entries.
// All operations are fail-soft: internal faults are logged and reported
// as absent/false/0, never as errors. The single exception is Warm,
// which propagates the fetch failure because the caller needs to know
// that warming failed.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	name       string
	defaultTTL time.Duration
	disabled   bool
	logger     zerolog.Logger

	// now is swapped in tests to simulate clock advancement.
	now func() time.Time
}

// HealthReport is the result of a full integrity scan.
type HealthReport struct {
	TotalKeys     int `json:"totalKeys"`
	CorruptedKeys int `json:"corruptedKeys"`
	CleanedKeys   int `json:"cleanedKeys"`
	MemoryUsage   int `json:"memoryUsage"`
}

// New creates a transient (memory-only) store.
func New(cfg Config, logger zerolog.Logger) *Store {
	if cfg.Name == "" {
		cfg.Name = "transient"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTransientTTL
	}
	return &Store{
		entries:    make(map[string]*Entry),
		name:       cfg.Name,
		defaultTTL: cfg.DefaultTTL,
		disabled:   cfg.Disabled,
		logger:     logger.With().Str("store", cfg.Name).Logger(),
		now:        time.Now,
	}
}

// Get returns the payload for key, or absent if the store is disabled,
// the key is missing, expired, or fails the integrity check. Expired and
// corrupted entries are evicted on the way out.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	if s.disabled {
		return nil, false
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		cacheMisses.WithLabelValues(s.name).Inc()
		return nil, false
	}

	if entry.IsExpired(s.now()) {
		s.evict(key, entry)
		cacheMisses.WithLabelValues(s.name).Inc()
		return nil, false
	}

	if !entry.Valid() {
		s.logger.Warn().Str("key", key).Msg("Corrupted cache entry evicted")
		cacheCorrupted.WithLabelValues(s.name).Inc()
		s.evict(key, entry)
		return nil, false
	}

	cacheHits.WithLabelValues(s.name).Inc()
	return entry.Value, true
}

// Set stores a value under key. A TTL below MinTTL is clamped up to
// MinTTL; a zero TTL uses the configured default. Returns false (never
// an error) when the store is disabled or the value cannot be serialized.
func (s *Store) Set(key string, value any, ttl time.Duration) bool {
	if s.disabled {
		return false
	}

	raw, err := marshalValue(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Cache set failed to serialize value")
		return false
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	} else if ttl < MinTTL {
		ttl = MinTTL
	}

	now := s.now()
	entry := &Entry{
		Value:     raw,
		Digest:    digestOf(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.entries[key] = entry
	size := len(s.entries)
	s.mu.Unlock()

	cacheEntries.WithLabelValues(s.name).Set(float64(size))
	s.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached value")
	return true
}

// SetForever stores a value that never expires.
func (s *Store) SetForever(key string, value any) bool {
	if s.disabled {
		return false
	}
	raw, err := marshalValue(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Cache set failed to serialize value")
		return false
	}
	now := s.now()
	s.mu.Lock()
	s.entries[key] = &Entry{Value: raw, Digest: digestOf(raw), CreatedAt: now}
	s.mu.Unlock()
	return true
}

// Delete removes key and returns the number of entries removed (0 or 1).
func (s *Store) Delete(key string) int {
	if s.disabled {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return 0
	}
	delete(s.entries, key)
	return 1
}

// Clear removes all entries.
func (s *Store) Clear() {
	if s.disabled {
		return
	}
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	cacheEntries.WithLabelValues(s.name).Set(0)
}

// Keys returns the keys of all resident, non-expired entries.
func (s *Store) Keys() []string {
	if s.disabled {
		return nil
	}
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if entry.IsExpired(now) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Has reports whether key is resident and not expired.
func (s *Store) Has(key string) bool {
	if s.disabled {
		return false
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return ok && !entry.IsExpired(s.now())
}

// GetTTL returns the remaining TTL for key. Entries that never expire
// report a zero duration with ok=true.
func (s *Store) GetTTL(key string) (time.Duration, bool) {
	if s.disabled {
		return 0, false
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || entry.IsExpired(s.now()) {
		return 0, false
	}
	return entry.TTL(s.now()), true
}

// InvalidatePattern removes every resident key matching a glob with a
// single wildcard token and returns the number removed.
func (s *Store) InvalidatePattern(pattern string) int {
	if s.disabled {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if matchPattern(pattern, key) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Str("pattern", pattern).Int("removed", removed).Msg("Invalidated keys by pattern")
	}
	return removed
}

// InvalidateKeys removes the listed keys and returns the number removed.
func (s *Store) InvalidateKeys(keys []string) int {
	if s.disabled {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Warm returns the cached payload for key, fetching and storing it when
// absent. A fetch failure is propagated to the caller; this is the one
// operation that surfaces errors.
func (s *Store) Warm(ctx context.Context, key string, fetch func(context.Context) (any, error), ttl time.Duration) (json.RawMessage, error) {
	if value, ok := s.Get(key); ok {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm %q: %w", key, err)
	}

	raw, err := marshalValue(value)
	if err != nil {
		return nil, fmt.Errorf("warm %q: serialize: %w", key, err)
	}

	s.Set(key, json.RawMessage(raw), ttl)
	return raw, nil
}

// HealthCheck iterates all entries, re-validates structure and digest,
// deletes any that fail, and reports the scan result.
func (s *Store) HealthCheck() HealthReport {
	if s.disabled {
		return HealthReport{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report := HealthReport{TotalKeys: len(s.entries)}
	for key, entry := range s.entries {
		if entry == nil || len(entry.Value) == 0 || !entry.Valid() {
			report.CorruptedKeys++
			report.CleanedKeys++
			cacheCorrupted.WithLabelValues(s.name).Inc()
			delete(s.entries, key)
			continue
		}
		report.MemoryUsage += len(entry.Value)
	}

	if report.CleanedKeys > 0 {
		s.logger.Warn().Int("cleaned", report.CleanedKeys).Msg("Health check removed corrupted entries")
	}
	return report
}

// pruneExpired removes expired entries and returns the number removed.
func (s *Store) pruneExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if entry.IsExpired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// snapshot copies the live entry map for persistence.
func (s *Store) snapshot() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Entry, len(s.entries))
	for key, entry := range s.entries {
		out[key] = entry
	}
	return out
}

// restore replaces the live entry map, used at snapshot load time.
func (s *Store) restore(entries map[string]*Entry) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// evict removes key only while it still holds the observed entry, so a
// Set racing between the read and the delete keeps its fresh value.
func (s *Store) evict(key string, observed *Entry) {
	s.mu.Lock()
	if current, ok := s.entries[key]; ok && current == observed {
		delete(s.entries, key)
	}
	s.mu.Unlock()
}

// marshalValue serializes a value, passing raw JSON through unchanged.
func marshalValue(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(value)
	}
}

// matchPattern matches a glob containing at most one "*" token against a
// key. Without a wildcard the match is exact equality.
func matchPattern(pattern, key string) bool {
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return pattern == key
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	return len(key) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(key, prefix) &&
		strings.HasSuffix(key, suffix)
}
