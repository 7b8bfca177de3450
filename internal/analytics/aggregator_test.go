package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/sales-engine/internal/model"
	"github.com/storepulse/sales-engine/internal/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAggregator(t *testing.T, products ...model.Product) (*Aggregator, *store.MemoryStore) {
	t.Helper()
	if len(products) == 0 {
		products = store.DefaultCatalog()
	}
	ms := store.NewMemoryStore(products...)
	agg := NewAggregator(ms).WithClock(func() time.Time { return testNow })
	return agg, ms
}

func addOrder(t *testing.T, ms *store.MemoryStore, productID, qty int64, price string, at time.Time) {
	t.Helper()
	o, err := model.NewOrder(productID, qty, d(price), at)
	require.NoError(t, err)
	require.NoError(t, ms.AppendOrder(context.Background(), o))
}

func TestComputeSnapshot_EmptyLedger(t *testing.T) {
	agg, _ := newTestAggregator(t)

	snap, err := agg.ComputeSnapshot(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, snap.TotalRevenue.IsZero())
	assert.NotNil(t, snap.TopProducts)
	assert.Empty(t, snap.TopProducts)
	assert.NotNil(t, snap.CategoryBreakdown)
	assert.Empty(t, snap.CategoryBreakdown)
	assert.Equal(t, int64(0), snap.OrdersLastWindow)
	assert.Equal(t, DefaultWindow.Seconds(), snap.WindowSeconds)
	assert.Equal(t, testNow, snap.ComputedAt)
}

func TestComputeSnapshot_ExactDecimalTotals(t *testing.T) {
	agg, ms := newTestAggregator(t)
	addOrder(t, ms, 3, 2, "10.99", testNow.Add(-time.Hour))
	addOrder(t, ms, 3, 2, "10.99", testNow.Add(-time.Hour))

	snap, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.True(t, snap.TotalRevenue.Equal(d("43.96")), "got %s", snap.TotalRevenue)
}

func TestComputeSnapshot_SingleCoffeeOrder(t *testing.T) {
	agg, ms := newTestAggregator(t)
	addOrder(t, ms, 1, 2, "3.99", testNow.Add(-10*time.Second))

	snap, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.True(t, snap.TotalRevenue.Equal(d("7.98")))
	require.Len(t, snap.TopProducts, 1)
	top := snap.TopProducts[0]
	assert.Equal(t, int64(1), top.ProductID)
	assert.Equal(t, "Coffee", top.Name)
	assert.Equal(t, "Hot Drinks", top.Category)
	assert.Equal(t, int64(2), top.TotalQuantity)
	assert.True(t, top.TotalRevenue.Equal(d("7.98")))
	assert.Equal(t, int64(1), snap.OrdersLastWindow)
	assert.True(t, snap.RevenueLastWindow.Equal(d("7.98")))
}

func TestComputeSnapshot_WindowBoundary(t *testing.T) {
	agg, ms := newTestAggregator(t)
	// Exactly at the edge is included; one second earlier is not.
	addOrder(t, ms, 1, 1, "1.00", testNow.Add(-time.Minute))
	addOrder(t, ms, 1, 1, "2.00", testNow.Add(-time.Minute-time.Second))
	addOrder(t, ms, 2, 1, "4.00", testNow)

	snap, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(2), snap.OrdersLastWindow)
	assert.True(t, snap.RevenueLastWindow.Equal(d("5.00")))
	assert.True(t, snap.TotalRevenue.Equal(d("7.00")))

	wide, err := agg.ComputeSnapshot(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), wide.OrdersLastWindow)
}

func TestComputeSnapshot_TopProductsOrderingAndLimit(t *testing.T) {
	var products []model.Product
	for i := int64(1); i <= 8; i++ {
		products = append(products, model.Product{
			ID: i, Name: fmt.Sprintf("P%d", i), Category: "Food", Price: d("1"), Active: true,
		})
	}
	agg, ms := newTestAggregator(t, products...)

	// Products 7 and 3 tie on revenue; 3 must come first.
	addOrder(t, ms, 7, 5, "2.00", testNow)
	addOrder(t, ms, 3, 10, "1.00", testNow)
	addOrder(t, ms, 5, 1, "50.00", testNow)
	addOrder(t, ms, 1, 1, "1.00", testNow)
	addOrder(t, ms, 2, 1, "2.00", testNow)
	addOrder(t, ms, 4, 1, "3.00", testNow)
	addOrder(t, ms, 6, 1, "0.50", testNow)

	snap, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.NoError(t, err)

	require.Len(t, snap.TopProducts, TopProductsLimit)
	var ids []int64
	for _, p := range snap.TopProducts {
		ids = append(ids, p.ProductID)
	}
	assert.Equal(t, []int64{5, 3, 7, 4, 2}, ids)

	for i := 1; i < len(snap.TopProducts); i++ {
		prev, cur := snap.TopProducts[i-1], snap.TopProducts[i]
		c := prev.TotalRevenue.Cmp(cur.TotalRevenue)
		assert.True(t, c > 0 || (c == 0 && prev.ProductID < cur.ProductID),
			"ordering violated at %d", i)
	}
}

func TestComputeSnapshot_CategoryBreakdown(t *testing.T) {
	agg, ms := newTestAggregator(t)
	addOrder(t, ms, 1, 2, "3.99", testNow) // Hot Drinks 7.98
	addOrder(t, ms, 6, 1, "4.29", testNow) // Hot Drinks 4.29
	addOrder(t, ms, 3, 3, "5.99", testNow) // Food 17.97
	addOrder(t, ms, 7, 1, "2.49", testNow) // Bakery 2.49
	addOrder(t, ms, 2, 4, "2.99", testNow) // Cold Drinks 11.96

	snap, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.NoError(t, err)

	require.Len(t, snap.CategoryBreakdown, 4)
	seen := map[string]bool{}
	for _, c := range snap.CategoryBreakdown {
		assert.False(t, seen[c.Category], "duplicate category %s", c.Category)
		seen[c.Category] = true
	}

	assert.Equal(t, "Food", snap.CategoryBreakdown[0].Category)
	assert.Equal(t, "Hot Drinks", snap.CategoryBreakdown[1].Category)
	assert.Equal(t, int64(3), snap.CategoryBreakdown[1].TotalQuantity)
	assert.True(t, snap.CategoryBreakdown[1].TotalRevenue.Equal(d("12.27")))
	assert.Equal(t, "Cold Drinks", snap.CategoryBreakdown[2].Category)
	assert.Equal(t, "Bakery", snap.CategoryBreakdown[3].Category)
}

type failingLedger struct{ store.Ledger }

func (failingLedger) ListOrderLines(context.Context) ([]model.OrderLine, error) {
	return nil, errors.New("connection reset")
}

func TestComputeSnapshot_LedgerError(t *testing.T) {
	agg := NewAggregator(failingLedger{})

	_, err := agg.ComputeSnapshot(context.Background(), time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedger)
}
