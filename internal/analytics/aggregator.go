// Package analytics computes sales snapshots from the order ledger.
//
// Snapshots are always derived from a fresh scan of the ledger. Nothing is
// cached between calls: recency correctness matters more than recompute
// cost at single-store scale.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storepulse/sales-engine/internal/model"
	"github.com/storepulse/sales-engine/internal/store"
)

// ErrLedger is returned when the ledger cannot be read.
var ErrLedger = errors.New("analytics: ledger query failed")

const (
	// DefaultWindow is the trailing interval used for recency metrics.
	DefaultWindow = time.Minute

	// TopProductsLimit caps the length of Snapshot.TopProducts.
	TopProductsLimit = 5
)

// Aggregator derives snapshots from a ledger.
type Aggregator struct {
	ledger store.Ledger
	now    func() time.Time
}

// NewAggregator creates an aggregator reading from ledger.
func NewAggregator(ledger store.Ledger) *Aggregator {
	return &Aggregator{ledger: ledger, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// ComputeSnapshot scans the ledger and returns the current aggregate view.
// A window <= 0 selects DefaultWindow. An empty ledger yields a zero
// snapshot, never an error.
func (a *Aggregator) ComputeSnapshot(ctx context.Context, window time.Duration) (model.Snapshot, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	now := a.now().UTC()

	lines, err := a.ledger.ListOrderLines(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrLedger, err)
	}
	recent, err := a.ledger.ListOrdersSince(ctx, now.Add(-window))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrLedger, err)
	}

	snap := model.Snapshot{
		TotalRevenue:      decimal.Zero,
		RevenueLastWindow: decimal.Zero,
		WindowSeconds:     window.Seconds(),
		ComputedAt:        now,
	}

	byProduct := make(map[int64]*model.ProductStat)
	byCategory := make(map[string]*model.CategoryStat)

	for _, l := range lines {
		snap.TotalRevenue = snap.TotalRevenue.Add(l.Order.Total)

		ps, ok := byProduct[l.Order.ProductID]
		if !ok {
			ps = &model.ProductStat{
				ProductID:    l.Order.ProductID,
				Name:         l.Product.Name,
				Category:     l.Product.Category,
				TotalRevenue: decimal.Zero,
			}
			byProduct[l.Order.ProductID] = ps
		}
		ps.TotalQuantity += l.Order.Quantity
		ps.TotalRevenue = ps.TotalRevenue.Add(l.Order.Total)

		cs, ok := byCategory[l.Product.Category]
		if !ok {
			cs = &model.CategoryStat{Category: l.Product.Category, TotalRevenue: decimal.Zero}
			byCategory[l.Product.Category] = cs
		}
		cs.TotalQuantity += l.Order.Quantity
		cs.TotalRevenue = cs.TotalRevenue.Add(l.Order.Total)
	}

	for _, o := range recent {
		snap.RevenueLastWindow = snap.RevenueLastWindow.Add(o.Total)
		snap.OrdersLastWindow++
	}

	snap.TopProducts = rankProducts(byProduct, TopProductsLimit)
	snap.CategoryBreakdown = rankCategories(byCategory)
	return snap, nil
}

// rankProducts sorts by revenue descending, ties by product ID ascending,
// and truncates to limit.
func rankProducts(agg map[int64]*model.ProductStat, limit int) []model.ProductStat {
	stats := make([]model.ProductStat, 0, len(agg))
	for _, ps := range agg {
		stats = append(stats, *ps)
	}
	sort.Slice(stats, func(i, j int) bool {
		if c := stats[i].TotalRevenue.Cmp(stats[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return stats[i].ProductID < stats[j].ProductID
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// rankCategories sorts by revenue descending. Equal revenue falls back to
// category name so the last element is stable.
func rankCategories(agg map[string]*model.CategoryStat) []model.CategoryStat {
	stats := make([]model.CategoryStat, 0, len(agg))
	for _, cs := range agg {
		stats = append(stats, *cs)
	}
	sort.Slice(stats, func(i, j int) bool {
		if c := stats[i].TotalRevenue.Cmp(stats[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}
