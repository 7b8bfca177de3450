// Package store defines the persistence interfaces for the sales engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// product cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/storepulse/sales-engine/internal/model"
)

// ErrProductNotFound is returned when a product ID is not in the catalog.
var ErrProductNotFound = errors.New("store: product not found")

// Ledger is the append-only order ledger.
type Ledger interface {
	// AppendOrder persists an immutable order.
	AppendOrder(ctx context.Context, order *model.Order) error

	// ListOrderLines returns every order joined with its product.
	ListOrderLines(ctx context.Context) ([]model.OrderLine, error)

	// ListOrdersSince returns orders with created_at >= since.
	ListOrdersSince(ctx context.Context, since time.Time) ([]model.Order, error)
}

// Catalog gives read access to products.
type Catalog interface {
	// GetProduct retrieves a product by ID. Returns ErrProductNotFound
	// when it does not exist.
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	// ListProducts returns all products ordered by ID.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// ListActiveByCategory returns the active products of one category.
	ListActiveByCategory(ctx context.Context, category string) ([]model.Product, error)
}

// Store combines the ledger and the catalog.
type Store interface {
	Ledger
	Catalog
}
