package sales_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/sales-engine/internal/analytics"
	"github.com/storepulse/sales-engine/internal/model"
	"github.com/storepulse/sales-engine/internal/publish"
	"github.com/storepulse/sales-engine/internal/recommend"
	"github.com/storepulse/sales-engine/internal/sales"
	"github.com/storepulse/sales-engine/internal/store"
)

type event struct {
	channel, name string
	payload       []byte
}

type recordingTransport struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingTransport) Publish(_ context.Context, channel, name string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{channel, name, payload})
	return nil
}

func (r *recordingTransport) channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.channel)
	}
	return out
}

type fixedWeather struct{ reading model.ContextReading }

func (f fixedWeather) Current(context.Context) model.ContextReading { return f.reading }

// failingAppendStore rejects every ledger write.
type failingAppendStore struct{ *store.MemoryStore }

func (failingAppendStore) AppendOrder(context.Context, *model.Order) error {
	return errors.New("disk full")
}

var hotDay = model.ContextReading{Location: "Cairo", Temperature: 33, Conditions: "Sunny", IsHot: true}

type testEnv struct {
	store     *store.MemoryStore
	transport *recordingTransport
	router    chi.Router
}

// newTestEnv creates a Service over the in-memory store with the default
// catalog and a chi router carrying the sales routes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore(store.DefaultCatalog()...)
	return newTestEnvWithStore(t, ms, ms)
}

func newTestEnvWithStore(t *testing.T, ms *store.MemoryStore, st store.Store) *testEnv {
	t.Helper()
	rt := &recordingTransport{}
	engine := recommend.NewEngine(nil, st, time.Second)
	svc := sales.NewService(st, analytics.NewAggregator(st), fixedWeather{hotDay}, engine, publish.NewPublisher(rt), time.Minute)

	r := chi.NewRouter()
	r.Post("/api/v1/orders", svc.CreateOrder)
	r.Get("/api/v1/analytics", svc.GetAnalytics)
	r.Get("/api/v1/recommendations", svc.GetRecommendations)
	r.Get("/api/v1/products", svc.ListProducts)

	return &testEnv{store: ms, transport: rt, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) order(t *testing.T, req map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, "/api/v1/orders", string(body))
}

func decodeErrors(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Errors
}

// --- Order intake ---

func TestCreateOrder_CoffeeScenario(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 1, "quantity": 2, "price": "3.99"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created sales.OrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "Order created successfully", created.Message)
	assert.True(t, created.Order.Total.Equal(decimal.RequireFromString("7.98")))
	assert.Equal(t, "Coffee", created.Product.Name)
	assert.NotEmpty(t, created.Order.ID)

	w = env.do(t, http.MethodGet, "/api/v1/analytics?publish=false", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.True(t, snap.TotalRevenue.Equal(decimal.RequireFromString("7.98")))
	require.Len(t, snap.TopProducts, 1)
	assert.Equal(t, int64(1), snap.TopProducts[0].ProductID)
	assert.Equal(t, int64(2), snap.TopProducts[0].TotalQuantity)
	assert.Equal(t, int64(1), snap.OrdersLastWindow)
}

func TestCreateOrder_PublishesOrderThenAnalytics(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 2, "quantity": 1, "price": 2.99})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, []string{publish.ChannelOrders, publish.ChannelAnalytics}, env.transport.channels())

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(env.transport.events[1].payload, &snap))
	assert.True(t, snap.TotalRevenue.Equal(decimal.RequireFromString("2.99")))
}

func TestCreateOrder_DefaultsToCatalogPrice(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 3, "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code)

	var created sales.OrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.True(t, created.Order.UnitPrice.Equal(decimal.RequireFromString("5.99")))
	assert.True(t, created.Order.Total.Equal(decimal.RequireFromString("11.98")))
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   map[string]any
		field string
	}{
		{"missing product", map[string]any{"quantity": 1}, "product_id"},
		{"unknown product", map[string]any{"product_id": 99, "quantity": 1}, "product_id"},
		{"zero quantity", map[string]any{"product_id": 1, "quantity": 0}, "quantity"},
		{"negative quantity", map[string]any{"product_id": 1, "quantity": -3}, "quantity"},
		{"negative price", map[string]any{"product_id": 1, "quantity": 1, "price": "-1.00"}, "price"},
		{"sub-cent price", map[string]any{"product_id": 1, "quantity": 10, "price": "1.999"}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.order(t, tt.req)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Contains(t, decodeErrors(t, w), tt.field)

			lines, err := env.store.ListOrderLines(context.Background())
			require.NoError(t, err)
			assert.Empty(t, lines, "rejected order must not reach the ledger")
			assert.Empty(t, env.transport.channels(), "rejected order must not notify")
		})
	}
}

func TestCreateOrder_UnknownProductMessage(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 42, "quantity": 1})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Selected product does not exist", decodeErrors(t, w)["product_id"])
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/orders", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_AppendFailurePublishesNothing(t *testing.T) {
	ms := store.NewMemoryStore(store.DefaultCatalog()...)
	env := newTestEnvWithStore(t, ms, failingAppendStore{ms})

	w := env.order(t, map[string]any{"product_id": 1, "quantity": 1})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full", "internal errors are not leaked")
	assert.Empty(t, env.transport.channels())
}

func TestPlaceOrder_ExactDecimalTotals(t *testing.T) {
	ms := store.NewMemoryStore(
		model.Product{ID: 10, Name: "Gadget", Category: "Misc", Price: decimal.RequireFromString("10.99"), Active: true},
	)
	svc := sales.NewService(ms, analytics.NewAggregator(ms), fixedWeather{hotDay}, recommend.NewEngine(nil, ms, time.Second), nil, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		order, _, err := svc.PlaceOrder(ctx, sales.OrderRequest{ProductID: 10, Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, "21.98", order.Total.String())
	}

	snap, err := analytics.NewAggregator(ms).ComputeSnapshot(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "43.96", snap.TotalRevenue.String())
}

// --- Analytics ---

func TestGetAnalytics_PublishesByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/analytics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{publish.ChannelAnalytics}, env.transport.channels())

	w = env.do(t, http.MethodGet, "/api/v1/analytics?publish=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.transport.channels(), 1)
}

func TestGetAnalytics_EmptyLedger(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/analytics?window=90s", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "0", body["total_revenue"])
	assert.Equal(t, []any{}, body["top_products"])
	assert.Equal(t, []any{}, body["category_breakdown"])
	assert.Equal(t, 90.0, body["window_seconds"])
}

func TestGetAnalytics_BadQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"?window=soon", "?window=-5s", "?publish=maybe"} {
		w := env.do(t, http.MethodGet, "/api/v1/analytics"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

// --- Recommendations ---

func TestGetRecommendations_FallbackOnHotDay(t *testing.T) {
	env := newTestEnv(t)
	env.order(t, map[string]any{"product_id": 3, "quantity": 3})
	env.order(t, map[string]any{"product_id": 1, "quantity": 1})

	w := env.do(t, http.MethodGet, "/api/v1/recommendations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp sales.RecommendationsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, model.RecTopProductPromo, resp.Recommendations[0].Type)
	assert.Equal(t, hotDay.Temperature, resp.WeatherData.Temperature)
	assert.True(t, resp.WeatherData.IsHot)
	require.Len(t, resp.TopProducts, 2)
	assert.Equal(t, int64(3), resp.TopProducts[0].ProductID)
	assert.False(t, resp.Timestamp.IsZero())

	var drink *model.Recommendation
	for i := range resp.Recommendations {
		if resp.Recommendations[i].Type == model.RecWeatherBased {
			drink = &resp.Recommendations[i]
		}
	}
	require.NotNil(t, drink)
	assert.Equal(t, recommend.CategoryColdDrinks, drink.Category)
}

func TestGetRecommendations_NeverEmpty(t *testing.T) {
	ms := store.NewMemoryStore() // no catalog, no orders
	env := newTestEnvWithStore(t, ms, ms)

	w := env.do(t, http.MethodGet, "/api/v1/recommendations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp sales.RecommendationsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, model.RecError, resp.Recommendations[0].Type)
}

// --- Catalog ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/products", "")
	require.Equal(t, http.StatusOK, w.Code)

	var products []model.Product
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&products))
	assert.Len(t, products, len(store.DefaultCatalog()))
	assert.Equal(t, int64(1), products[0].ID)
}

func TestCreateOrder_PriceWithTrailingZeroIsAccepted(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 1, "quantity": 10, "price": "1.990"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created sales.OrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.True(t, created.Order.Total.Equal(decimal.RequireFromString("19.90")))
	assert.True(t, created.Order.Total.Equal(created.Order.UnitPrice.Mul(decimal.NewFromInt(10))))
}

func TestCreateOrder_SubCentPriceMessage(t *testing.T) {
	env := newTestEnv(t)

	w := env.order(t, map[string]any{"product_id": 1, "quantity": 10, "price": "1.999"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Must have at most 2 decimal places", decodeErrors(t, w)["price"])
}
