package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPersistentTTL is the default TTL of the persistent store.
	DefaultPersistentTTL = 24 * time.Hour

	// DefaultFlushInterval is how often the maintenance loop prunes
	// expired entries and flushes the snapshot to disk.
	DefaultFlushInterval = 10 * time.Minute

	// snapshotSuffix and flagSuffix name the on-disk sibling files.
	snapshotSuffix = ".json"
	flagSuffix     = ".invalidate"
)

// PersistentConfig holds persistent store configuration.
type PersistentConfig struct {
	// Name labels the store and names its snapshot files.
	Name string

	// Dir is the directory holding the snapshot and invalidation flag.
	Dir string

	// DefaultTTL is applied when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// FlushInterval controls the maintenance timer. Zero disables the
	// timer entirely (test-style configuration); maintenance can still
	// be driven manually through Maintain.
	FlushInterval time.Duration

	// Disabled turns every operation into a fail-soft no-op.
	Disabled bool
}

// PersistentStore is a Store with a file-backed snapshot, a periodic
// maintenance loop, and an externally triggered invalidation flag.
//
// The snapshot is loaded once at construction and flushed on every
// maintenance tick and on Destroy. A sibling zero-byte flag file,
// written by an external process after a custom-catalog import, forces
// a full in-memory discard at the next maintenance check.
type PersistentStore struct {
	*Store

	snapshotPath string
	flagPath     string
	interval     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// snapshotEntry is the on-disk representation of one cache entry.
// Timestamps are unix milliseconds; a zero expires means never.
type snapshotEntry struct {
	Value   json.RawMessage `json:"value"`
	Expires int64           `json:"expires"`
	Created int64           `json:"created"`
}

// NewPersistent creates a persistent store rooted at cfg.Dir, loading
// any prior snapshot. A corrupt or unreadable snapshot is never fatal:
// the store starts empty and logs the problem.
func NewPersistent(cfg PersistentConfig, logger zerolog.Logger) *PersistentStore {
	if cfg.Name == "" {
		cfg.Name = "persistent"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultPersistentTTL
	}

	base := New(Config{
		Name:       cfg.Name,
		DefaultTTL: cfg.DefaultTTL,
		Disabled:   cfg.Disabled,
	}, logger)

	p := &PersistentStore{
		Store:        base,
		snapshotPath: filepath.Join(cfg.Dir, cfg.Name+snapshotSuffix),
		flagPath:     filepath.Join(cfg.Dir, cfg.Name+flagSuffix),
		interval:     cfg.FlushInterval,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	if cfg.Disabled {
		close(p.done)
		return p
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		p.logger.Error().Err(err).Str("dir", cfg.Dir).Msg("Cache directory unavailable, running memory-only")
	} else {
		p.load()
	}

	if p.interval > 0 {
		go p.maintenanceLoop()
	} else {
		close(p.done)
	}

	return p
}

// Maintain performs one maintenance pass: honor the invalidation flag,
// prune expired entries, and flush the snapshot to disk.
func (p *PersistentStore) Maintain() {
	if p.disabled {
		return
	}

	if p.checkInvalidationFlag() {
		p.Clear()
	}

	if removed := p.pruneExpired(); removed > 0 {
		p.logger.Debug().Int("removed", removed).Msg("Pruned expired entries")
	}

	p.flush()
}

// Destroy stops the maintenance loop and performs a final flush.
// Calling Destroy twice, or on a disabled store, is a no-op.
func (p *PersistentStore) Destroy() {
	if p.disabled {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
		p.flush()
	})
}

func (p *PersistentStore) maintenanceLoop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Maintain()
		case <-p.stop:
			return
		}
	}
}

// checkInvalidationFlag reports whether the flag file is present and
// removes it, so the discard happens at most once per flag write.
func (p *PersistentStore) checkInvalidationFlag() bool {
	if _, err := os.Stat(p.flagPath); err != nil {
		return false
	}
	if err := os.Remove(p.flagPath); err != nil {
		p.logger.Warn().Err(err).Str("path", p.flagPath).Msg("Failed to remove invalidation flag")
	}
	p.logger.Info().Str("path", p.flagPath).Msg("Invalidation flag detected, discarding cache")
	cacheInvalidations.WithLabelValues(p.name).Inc()
	return true
}

// load reads the prior snapshot into memory. Digests are recomputed
// from the persisted payloads; expired entries are dropped.
func (p *PersistentStore) load() {
	data, err := os.ReadFile(p.snapshotPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn().Err(err).Str("path", p.snapshotPath).Msg("Snapshot unreadable, starting empty")
		}
		return
	}

	var raw map[string]snapshotEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		p.logger.Warn().Err(err).Str("path", p.snapshotPath).Msg("Snapshot corrupt, starting empty")
		return
	}

	now := p.now()
	entries := make(map[string]*Entry, len(raw))
	for key, se := range raw {
		entry := &Entry{
			Value:     se.Value,
			Digest:    digestOf(se.Value),
			CreatedAt: time.UnixMilli(se.Created),
		}
		if se.Expires > 0 {
			entry.ExpiresAt = time.UnixMilli(se.Expires)
		}
		if entry.IsExpired(now) {
			continue
		}
		entries[key] = entry
	}

	p.restore(entries)
	p.logger.Info().Int("entries", len(entries)).Str("path", p.snapshotPath).Msg("Loaded cache snapshot")
}

// flush writes the full in-memory map to disk via a temp-file rename.
func (p *PersistentStore) flush() {
	entries := p.snapshot()
	raw := make(map[string]snapshotEntry, len(entries))
	for key, entry := range entries {
		se := snapshotEntry{
			Value:   entry.Value,
			Created: entry.CreatedAt.UnixMilli(),
		}
		if !entry.ExpiresAt.IsZero() {
			se.Expires = entry.ExpiresAt.UnixMilli()
		}
		raw[key] = se
	}

	data, err := json.Marshal(raw)
	if err != nil {
		p.logger.Error().Err(err).Msg("Snapshot serialization failed")
		return
	}

	tmp := p.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		p.logger.Error().Err(err).Str("path", tmp).Msg("Snapshot write failed")
		return
	}
	if err := os.Rename(tmp, p.snapshotPath); err != nil {
		p.logger.Error().Err(err).Str("path", p.snapshotPath).Msg("Snapshot rename failed")
		return
	}

	cacheFlushes.WithLabelValues(p.name).Inc()
	p.logger.Debug().Int("entries", len(raw)).Msg("Flushed cache snapshot")
}

// SnapshotPath returns the snapshot file location.
func (p *PersistentStore) SnapshotPath() string { return p.snapshotPath }

// FlagPath returns the invalidation flag file location.
func (p *PersistentStore) FlagPath() string { return p.flagPath }
