package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/storepulse/sales-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*model.Product
	ledger   []model.Order
}

// NewMemoryStore creates an in-memory store holding the given products.
func NewMemoryStore(products ...model.Product) *MemoryStore {
	s := &MemoryStore{
		products: make(map[int64]*model.Product),
	}
	for _, p := range products {
		cp := p
		s.products[p.ID] = &cp
	}
	return s
}

// AddProduct inserts or replaces a catalog entry.
func (s *MemoryStore) AddProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
}

func (s *MemoryStore) AppendOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[order.ProductID]; !ok {
		return fmt.Errorf("append order %s: %w", order.ID, ErrProductNotFound)
	}
	s.ledger = append(s.ledger, *order)
	return nil
}

func (s *MemoryStore) ListOrderLines(_ context.Context) ([]model.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]model.OrderLine, 0, len(s.ledger))
	for _, o := range s.ledger {
		p, ok := s.products[o.ProductID] // direct access, already under RLock
		if !ok {
			continue
		}
		lines = append(lines, model.OrderLine{Order: o, Product: *p})
	}
	return lines, nil
}

func (s *MemoryStore) ListOrdersSince(_ context.Context, since time.Time) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Order
	for _, o := range s.ledger {
		if !o.CreatedAt.Before(since) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, ErrProductNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) ListActiveByCategory(ctx context.Context, category string) ([]model.Product, error) {
	all, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	var result []model.Product
	for _, p := range all {
		if p.Active && p.Category == category {
			result = append(result, p)
		}
	}
	return result, nil
}
