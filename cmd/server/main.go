package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/storepulse/sales-engine/internal/analytics"
	"github.com/storepulse/sales-engine/internal/config"
	"github.com/storepulse/sales-engine/internal/contextcache"
	"github.com/storepulse/sales-engine/internal/inference"
	"github.com/storepulse/sales-engine/internal/metrics"
	"github.com/storepulse/sales-engine/internal/model"
	"github.com/storepulse/sales-engine/internal/publish"
	"github.com/storepulse/sales-engine/internal/recommend"
	"github.com/storepulse/sales-engine/internal/sales"
	"github.com/storepulse/sales-engine/internal/store"
	"github.com/storepulse/sales-engine/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx, store.DefaultCatalog()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore(store.DefaultCatalog()...)
	}

	// --- WebSocket hub ---
	wsHub := publish.NewWSHub()
	go wsHub.Run(ctx)

	// --- Redis: product cache, context cache, pub/sub ---
	var transport publish.Transport = wsHub
	var weatherBackend contextcache.Backend[model.ContextReading] = contextcache.NewMemoryBackend[model.ContextReading]()

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		st = store.NewCachedStore(st, rdb, 30*time.Second)
		weatherBackend = contextcache.NewRedisBackend[model.ContextReading](rdb, "storepulse:ctx:")
		transport = publish.Fanout{wsHub, publish.NewRedisTransport(rdb, "storepulse:")}
		slog.Info("Redis cache and pub/sub enabled")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Weather source ---
	if cfg.Weather.APIKey == "" {
		slog.Warn("WEATHER_API_KEY not set, serving synthetic weather readings")
	}
	weatherSrc := weather.NewSource(
		weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.Timeout),
		contextcache.New(weatherBackend),
		weather.NewSynthesizer(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))),
		cfg.Weather.Location,
		cfg.Weather.TTL,
	)

	// --- Recommendation engine ---
	// A nil interface, not a typed nil, keeps the engine on its rule set.
	var submitter inference.Submitter
	if cfg.Inference.APIKey != "" {
		submitter = inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.Model, cfg.Inference.APIKey, cfg.Inference.Timeout)
		if cfg.Inference.RatePerMinute > 0 {
			submitter = inference.NewLimited(submitter, cfg.Inference.RatePerMinute, cfg.Inference.Burst)
		}
		slog.Info("generative recommendations enabled", "model", cfg.Inference.Model)
	} else {
		slog.Warn("GEMINI_API_KEY not set, using rule-based recommendations only")
	}
	engine := recommend.NewEngine(submitter, st, cfg.Inference.Timeout)

	// --- Sales service ---
	salesSvc := sales.NewService(
		st,
		analytics.NewAggregator(st),
		weatherSrc,
		engine,
		publish.NewPublisher(transport),
		cfg.Analytics.Window,
	)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"sales-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for order and analytics updates.
		r.Get("/ws", wsHub.HandleWS)

		r.Post("/orders", salesSvc.CreateOrder)
		r.Get("/analytics", salesSvc.GetAnalytics)
		r.Get("/recommendations", salesSvc.GetRecommendations)
		r.Get("/products", salesSvc.ListProducts)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // recommendations may wait on inference
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("sales-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down sales-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stop()
	fmt.Println("sales-engine stopped")
}
