// Package sales provides the HTTP handlers and business logic for
// recording orders and serving analytics and recommendations.
//
// All monetary values use shopspring/decimal, never float64.
package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/storepulse/sales-engine/internal/analytics"
	"github.com/storepulse/sales-engine/internal/metrics"
	"github.com/storepulse/sales-engine/internal/model"
	"github.com/storepulse/sales-engine/internal/publish"
	"github.com/storepulse/sales-engine/internal/recommend"
	"github.com/storepulse/sales-engine/internal/store"
)

// ContextSource supplies the current weather reading. Implementations never
// fail; they degrade to a fallback reading instead.
type ContextSource interface {
	Current(ctx context.Context) model.ContextReading
}

// Service handles order intake and the read-side endpoints. It holds no
// locks of its own: the ledger serializes appends and snapshots are read
// at query time.
type Service struct {
	store      store.Store
	aggregator *analytics.Aggregator
	weather    ContextSource
	engine     *recommend.Engine
	publisher  *publish.Publisher // optional
	window     time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

// NewService creates a sales service.
// Pass nil for pub if update notifications are not needed.
func NewService(st store.Store, agg *analytics.Aggregator, weather ContextSource, engine *recommend.Engine, pub *publish.Publisher, window time.Duration) *Service {
	if window <= 0 {
		window = analytics.DefaultWindow
	}
	return &Service{
		store:      st,
		aggregator: agg,
		weather:    weather,
		engine:     engine,
		publisher:  pub,
		window:     window,
		validate:   newValidator(),
		now:        time.Now,
	}
}

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /api/v1/orders.
type OrderRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int64            `json:"quantity" validate:"required,min=1,max=10000"`
	Price     *decimal.Decimal `json:"price" validate:"omitempty,gte=0"` // nil → catalog price
}

// OrderResponse is the JSON body returned from POST /api/v1/orders.
type OrderResponse struct {
	Message string        `json:"message"`
	Order   model.Order   `json:"order"`
	Product model.Product `json:"product"`
}

// RecommendationsResponse is the JSON body for GET /api/v1/recommendations.
type RecommendationsResponse struct {
	Recommendations []model.Recommendation `json:"recommendations"`
	WeatherData     model.ContextReading   `json:"weather_data"`
	TopProducts     []model.ProductStat    `json:"top_products"`
	Timestamp       time.Time              `json:"timestamp"`
}

// --- Business logic ---

// PlaceOrder validates req, appends the order to the ledger, and then
// notifies subscribers. Nothing is published unless the append succeeded.
// Notification failures are logged and never fail the order.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (*model.Order, *model.Product, error) {
	if err := s.validate.Struct(req); err != nil {
		metrics.OrderRejections.Inc()
		return nil, nil, toValidationError(err)
	}

	product, err := s.store.GetProduct(ctx, req.ProductID)
	if errors.Is(err, store.ErrProductNotFound) {
		metrics.OrderRejections.Inc()
		return nil, nil, fieldError("product_id", "Selected product does not exist")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load product %d: %w", req.ProductID, err)
	}

	price := product.Price
	if req.Price != nil {
		price = *req.Price
		// Ledger columns hold cents; finer prices would not round-trip.
		if !price.Equal(price.Round(2)) {
			metrics.OrderRejections.Inc()
			return nil, nil, fieldError("price", "Must have at most 2 decimal places")
		}
	}
	order, err := model.NewOrder(product.ID, req.Quantity, price, s.now())
	switch {
	case errors.Is(err, model.ErrInvalidQuantity):
		metrics.OrderRejections.Inc()
		return nil, nil, fieldError("quantity", "Must be at least 1")
	case errors.Is(err, model.ErrInvalidPrice):
		metrics.OrderRejections.Inc()
		return nil, nil, fieldError("price", "Must be greater than or equal to 0")
	case err != nil:
		return nil, nil, err
	}

	if err := s.store.AppendOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("append order: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues(product.Category).Inc()

	slog.Info("order recorded",
		"order_id", order.ID,
		"product_id", order.ProductID,
		"qty", order.Quantity,
		"total", order.Total.String(),
	)

	s.publisher.PublishOrder(ctx, *order, *product)
	if snap, err := s.snapshot(ctx, s.window); err != nil {
		slog.Warn("post-order snapshot failed", "order_id", order.ID, "err", err)
	} else {
		s.publisher.PublishSnapshot(ctx, snap)
	}

	return order, product, nil
}

func (s *Service) snapshot(ctx context.Context, window time.Duration) (model.Snapshot, error) {
	timer := prometheus.NewTimer(metrics.SnapshotLatency)
	defer timer.ObserveDuration()
	return s.aggregator.ComputeSnapshot(ctx, window)
}

// Recommend computes a snapshot and fetches the weather reading
// concurrently, then asks the engine for recommendations.
func (s *Service) Recommend(ctx context.Context) (RecommendationsResponse, error) {
	var (
		snap    model.Snapshot
		reading model.ContextReading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.snapshot(gctx, s.window)
		return err
	})
	g.Go(func() error {
		reading = s.weather.Current(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return RecommendationsResponse{}, err
	}

	return RecommendationsResponse{
		Recommendations: s.engine.Recommend(ctx, snap, reading),
		WeatherData:     reading,
		TopProducts:     snap.TopProducts,
		Timestamp:       s.now().UTC(),
	}, nil
}

// --- HTTP Handlers ---

// CreateOrder handles POST /api/v1/orders
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, product, err := s.PlaceOrder(r.Context(), req)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, ve)
			return
		}
		slog.Error("order creation failed", "product_id", req.ProductID, "err", err)
		writeError(w, "failed to record order", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, OrderResponse{
		Message: "Order created successfully",
		Order:   *order,
		Product: *product,
	})
}

// GetAnalytics handles GET /api/v1/analytics
// ?window=90s overrides the recent-activity window; ?publish=false skips
// the analytics notification.
func (s *Service) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	window := s.window
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		window = d
	}
	publishUpdate := true
	if raw := r.URL.Query().Get("publish"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, "publish must be a boolean", http.StatusBadRequest)
			return
		}
		publishUpdate = b
	}

	ctx := r.Context()
	snap, err := s.snapshot(ctx, window)
	if err != nil {
		slog.Error("snapshot failed", "err", err)
		writeError(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}
	if publishUpdate {
		s.publisher.PublishSnapshot(ctx, snap)
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetRecommendations handles GET /api/v1/recommendations
func (s *Service) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Recommend(r.Context())
	if err != nil {
		slog.Error("recommendations failed", "err", err)
		writeError(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProducts handles GET /api/v1/products
func (s *Service) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeError(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
