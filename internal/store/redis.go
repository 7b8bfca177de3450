package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storepulse/sales-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for single-product lookups. The ledger is never cached: analytics
// must always see the current order set.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	data, err := s.rdb.Get(ctx, productKey(id)).Bytes()
	if err == nil {
		var p model.Product
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, productKey(id), data, s.ttl)
	}
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) AppendOrder(ctx context.Context, order *model.Order) error {
	return s.primary.AppendOrder(ctx, order)
}

func (s *CachedStore) ListOrderLines(ctx context.Context) ([]model.OrderLine, error) {
	return s.primary.ListOrderLines(ctx)
}

func (s *CachedStore) ListOrdersSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	return s.primary.ListOrdersSince(ctx, since)
}

func (s *CachedStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.primary.ListProducts(ctx)
}

func (s *CachedStore) ListActiveByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return s.primary.ListActiveByCategory(ctx, category)
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }
