package publish

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes envelopes to Redis pub/sub so that subscribers
// attached to other instances receive them. The Redis channel name is
// prefix+channel.
type RedisTransport struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisTransport creates a Redis pub/sub transport.
func NewRedisTransport(rdb redis.Cmdable, prefix string) *RedisTransport {
	return &RedisTransport{rdb: rdb, prefix: prefix}
}

func (t *RedisTransport) Publish(ctx context.Context, channel, event string, payload []byte) error {
	data, err := json.Marshal(Envelope{Channel: channel, Event: event, Data: payload})
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, t.prefix+channel, data).Err()
}
