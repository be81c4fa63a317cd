package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Entry represents a cached payload with TTL and integrity metadata.
type Entry struct {
	// Value is the opaque serialized payload.
	Value json.RawMessage `json:"value"`

	// Digest is the SHA-256 hex digest of Value, computed at write time.
	// A mismatch on read means the entry is corrupted.
	Digest string `json:"digest"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created"`

	// ExpiresAt is when the entry becomes stale. The zero time means the
	// entry never expires.
	ExpiresAt time.Time `json:"expires"`
}

// IsExpired reports whether the entry is stale at the given instant.
func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// TTL returns the remaining time until expiration. Entries that never
// expire report 0 remaining with ok semantics left to the caller.
func (e *Entry) TTL(now time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Valid re-computes the digest and reports whether the entry is intact.
func (e *Entry) Valid() bool {
	if e.Digest == "" {
		return false
	}
	return digestOf(e.Value) == e.Digest
}

// digestOf computes the SHA-256 hex digest of a payload.
func digestOf(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}
