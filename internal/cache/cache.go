// Package cache provides the content-addressed response cache for generated
// text. Entries are keyed by a stable hash over (canonicalized prompt text,
// model identifier) so different models never collide on one entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Store is the cache contract. Implementations must be safe for concurrent
// use; a Put must be visible to subsequent Gets from other goroutines, but
// strict linearizability across entries is not required.
type Store interface {
	// Get returns the cached text for key, or ok=false on a miss.
	// Expired entries are treated as misses and may be removed lazily.
	Get(ctx context.Context, key string) (text string, ok bool, err error)

	// Put stores text under key with the given time-to-live.
	Put(ctx context.Context, key string, text string, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}

// Key computes the cache key for a prompt/model pair. The prompt is
// canonicalized (surrounding whitespace trimmed) before hashing; the model
// id is mixed in behind a NUL separator, which no model identifier
// contains, so distinct pairs cannot collide by concatenation.
func Key(prompt, model string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(prompt)))
	h.Write([]byte{0x00})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}
