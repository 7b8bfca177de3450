// Package contextcache provides a time-bounded cache around a single
// external context fetch, with a synthetic fallback when the fetch fails.
//
// Concurrent callers that find an entry cold or expired may each trigger
// their own fetch. Fetches are idempotent and cheap, so duplicate fetches
// are accepted instead of serializing callers behind a lock.
package contextcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/storepulse/sales-engine/internal/metrics"
)

// DefaultTTL is used when Get is called with a non-positive ttl.
const DefaultTTL = 30 * time.Minute

// Entry is a cached value with the time it was fetched.
type Entry[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Backend stores entries by key. Implementations must be safe for
// concurrent use.
type Backend[T any] interface {
	// Load returns the entry for key. ok is false on a miss.
	Load(ctx context.Context, key string) (entry Entry[T], ok bool, err error)

	// Store saves the entry. ttl is a hint for backends with native expiry.
	Store(ctx context.Context, key string, entry Entry[T], ttl time.Duration) error
}

// FetchFunc retrieves a fresh value from the external source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// FallbackFunc synthesizes a value when the fetch fails.
type FallbackFunc[T any] func(ctx context.Context, cause error) T

// Cache wraps a Backend with TTL and fallback policy.
type Cache[T any] struct {
	backend Backend[T]
	now     func() time.Time
}

// New creates a cache over backend.
func New[T any](backend Backend[T]) *Cache[T] {
	return &Cache[T]{backend: backend, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache[T]) WithClock(now func() time.Time) *Cache[T] {
	c.now = now
	return c
}

// Get returns the cached value for key when it is younger than ttl.
// Otherwise it calls fetch and caches the result. When fetch fails, the
// failure is not cached: fallback is called and its value returned without
// being stored, so the next call retries the real fetch.
func (c *Cache[T]) Get(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[T], fallback FallbackFunc[T]) T {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	entry, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		slog.Warn("context cache load failed", "key", key, "err", err)
	}
	if ok && c.now().Sub(entry.FetchedAt) < ttl {
		metrics.ContextCacheLookups.WithLabelValues("hit").Inc()
		return entry.Value
	}

	v, err := fetch(ctx)
	if err != nil {
		metrics.ContextCacheLookups.WithLabelValues("fallback").Inc()
		slog.Warn("context fetch failed, using fallback", "key", key, "err", err)
		return fallback(ctx, err)
	}
	metrics.ContextCacheLookups.WithLabelValues("miss").Inc()

	if err := c.backend.Store(ctx, key, Entry[T]{Value: v, FetchedAt: c.now()}, ttl); err != nil {
		slog.Warn("context cache store failed", "key", key, "err", err)
	}
	return v
}
