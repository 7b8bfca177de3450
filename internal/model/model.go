// Package model defines the core domain types shared across the sales engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when an order quantity is not positive.
	ErrInvalidQuantity = errors.New("model: quantity must be positive")

	// ErrInvalidPrice is returned when a unit price is negative.
	ErrInvalidPrice = errors.New("model: unit price must not be negative")
)

// Order is an immutable record of one sale.
// Once created, orders are never modified or deleted.
type Order struct {
	ID        string          `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Total     decimal.Decimal `json:"total" db:"total"` // quantity * unit_price, fixed at creation
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NewOrder builds an order and fixes its total. It is the only place an
// order total is computed.
func NewOrder(productID, quantity int64, unitPrice decimal.Decimal, now time.Time) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return &Order{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     unitPrice.Mul(decimal.NewFromInt(quantity)),
		CreatedAt: now.UTC(),
	}, nil
}

// Product is a catalog entry. Read-only from the analytics point of view.
type Product struct {
	ID       int64           `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Category string          `json:"category" db:"category"`
	Price    decimal.Decimal `json:"price" db:"price"` // list price
	Active   bool            `json:"active" db:"active"`
}

// OrderLine is an order joined with the product it was placed for.
type OrderLine struct {
	Order   Order
	Product Product
}

// ProductStat aggregates sales of one product.
type ProductStat struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// CategoryStat aggregates sales of one product category.
type CategoryStat struct {
	Category      string          `json:"category"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// Snapshot is a point-in-time aggregate view of the ledger.
// It is derived on demand and never persisted.
type Snapshot struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TopProducts       []ProductStat   `json:"top_products"`
	RevenueLastWindow decimal.Decimal `json:"revenue_last_window"`
	OrdersLastWindow  int64           `json:"orders_last_window"`
	CategoryBreakdown []CategoryStat  `json:"category_breakdown"`
	WindowSeconds     float64         `json:"window_seconds"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// ContextReading is an externally sourced weather signal.
type ContextReading struct {
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"` // °C
	Conditions  string    `json:"conditions"`
	IsHot       bool      `json:"is_hot"`
	Synthetic   bool      `json:"synthetic"` // produced by a fallback generator
	FetchedAt   time.Time `json:"fetched_at"`
}

// RecommendationType enumerates the kinds of recommendation produced.
type RecommendationType string

const (
	RecTopProductPromo RecommendationType = "top_product_promo"
	RecWeatherBased    RecommendationType = "weather_based"
	RecCategoryBoost   RecommendationType = "category_boost"
	RecDynamicPricing  RecommendationType = "dynamic_pricing"
	RecError           RecommendationType = "error"
)

// Valid reports whether t is one of the known recommendation types.
func (t RecommendationType) Valid() bool {
	switch t {
	case RecTopProductPromo, RecWeatherBased, RecCategoryBoost, RecDynamicPricing, RecError:
		return true
	}
	return false
}

// Recommendation is a single promotional suggestion.
type Recommendation struct {
	Type       RecommendationType `json:"type"`
	Message    string             `json:"message"`
	ProductID  *int64             `json:"product_id,omitempty"`
	Category   string             `json:"category,omitempty"`
	Confidence float64            `json:"confidence"` // [0, 1]
}
