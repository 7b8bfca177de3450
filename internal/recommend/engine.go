// Package recommend turns analytics snapshots and weather readings into
// promotional recommendations.
//
// A generative model is asked first. Its output is extracted from free text,
// validated as a whole, and used only if every element is usable. Any
// failure along that path falls back to a deterministic rule set, so
// Recommend always returns a non-empty list and never an error.
package recommend

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/storepulse/sales-engine/internal/inference"
	"github.com/storepulse/sales-engine/internal/metrics"
	"github.com/storepulse/sales-engine/internal/model"
)

// DefaultTimeout bounds one inference call.
const DefaultTimeout = 10 * time.Second

// DefaultGenerationConfig is the sampling config sent with each prompt.
var DefaultGenerationConfig = inference.GenerationConfig{Temperature: 0.4, MaxTokens: 1024}

// ProductFinder lists active products by category.
type ProductFinder interface {
	ListActiveByCategory(ctx context.Context, category string) ([]model.Product, error)
}

// Engine produces recommendations.
type Engine struct {
	submitter inference.Submitter // optional
	catalog   ProductFinder
	timeout   time.Duration
	genCfg    inference.GenerationConfig

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewEngine creates an engine. submitter may be nil, in which case only
// the rule set is used.
func NewEngine(submitter inference.Submitter, catalog ProductFinder, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		submitter: submitter,
		catalog:   catalog,
		timeout:   timeout,
		genCfg:    DefaultGenerationConfig,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xd1ce)),
	}
}

// WithRand replaces the random source used for the drink pick.
func (e *Engine) WithRand(rng *rand.Rand) *Engine {
	e.mu.Lock()
	e.rng = rng
	e.mu.Unlock()
	return e
}

// Recommend returns one to four recommendations for the given snapshot
// and weather reading.
func (e *Engine) Recommend(ctx context.Context, snap model.Snapshot, reading model.ContextReading) []model.Recommendation {
	if e.submitter != nil {
		recs, err := e.infer(ctx, snap, reading)
		if err == nil {
			metrics.Recommendations.WithLabelValues("inference").Inc()
			slog.Info("recommendations generated", "source", "inference", "count", len(recs))
			return recs
		}
		slog.Warn("inference recommendations unusable, using rule set", "err", err)
	}

	recs := e.Fallback(ctx, snap, reading)
	metrics.Recommendations.WithLabelValues("fallback").Inc()
	slog.Info("recommendations generated", "source", "fallback", "count", len(recs))
	return recs
}

func (e *Engine) infer(ctx context.Context, snap model.Snapshot, reading model.ContextReading) ([]model.Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.submitter.Submit(ctx, BuildPrompt(snap, reading), e.genCfg)
	if err != nil {
		return nil, err
	}
	return ParseModelOutput(text, snap.TopProducts)
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}
