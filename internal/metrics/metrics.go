// Package metrics provides Prometheus instrumentation for the sales engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersTotal counts orders recorded, partitioned by product category.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storepulse_orders_total",
		Help: "Total number of orders recorded",
	}, []string{"category"})

	// OrderRejections counts orders rejected by validation.
	OrderRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storepulse_order_rejections_total",
		Help: "Orders rejected by request validation",
	})

	// SnapshotLatency tracks how long a full ledger aggregation takes.
	SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storepulse_snapshot_latency_seconds",
		Help:    "Analytics snapshot computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Recommendations counts recommendation lists served, by source
	// ("inference" or "fallback").
	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storepulse_recommendations_total",
		Help: "Recommendation lists produced, by source",
	}, []string{"source"})

	// ContextCacheLookups counts context cache lookups by result
	// ("hit", "miss", "fallback").
	ContextCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storepulse_context_cache_lookups_total",
		Help: "Context cache lookups by result",
	}, []string{"result"})

	// Notifications counts published notifications by channel and result
	// ("sent", "dropped", "error").
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storepulse_notifications_total",
		Help: "Notifications published to subscribers",
	}, []string{"channel", "result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storepulse_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storepulse_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storepulse_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps label cardinality bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
