package contextcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores JSON-encoded entries in Redis so that several
// instances share one cached reading.
type RedisBackend[T any] struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisBackend creates a Redis backend. Keys are stored as prefix+key.
func NewRedisBackend[T any](rdb redis.Cmdable, prefix string) *RedisBackend[T] {
	return &RedisBackend[T]{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend[T]) Load(ctx context.Context, key string) (Entry[T], bool, error) {
	var e Entry[T]
	data, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	return e, true, nil
}

// Store writes the entry with a Redis expiry of ttl. The TTL check in
// Cache.Get still uses FetchedAt, so clock skew between instances cannot
// serve a stale entry.
func (b *RedisBackend[T]) Store(ctx context.Context, key string, entry Entry[T], ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.rdb.Set(ctx, b.prefix+key, data, ttl).Err()
}
