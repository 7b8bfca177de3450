package weather

import (
	"context"
	"errors"
	"time"

	"github.com/storepulse/sales-engine/internal/contextcache"
	"github.com/storepulse/sales-engine/internal/model"
)

// Source serves the current reading for one location through a cache.
type Source struct {
	client   *Client
	cache    *contextcache.Cache[model.ContextReading]
	synth    *Synthesizer
	location string
	ttl      time.Duration
}

// NewSource creates a cached weather source for location.
func NewSource(client *Client, cache *contextcache.Cache[model.ContextReading], synth *Synthesizer, location string, ttl time.Duration) *Source {
	return &Source{
		client:   client,
		cache:    cache,
		synth:    synth,
		location: location,
		ttl:      ttl,
	}
}

// Current returns a reading that is at most ttl old, or a synthetic one
// when the provider cannot be reached. It never fails.
func (s *Source) Current(ctx context.Context) model.ContextReading {
	return s.cache.Get(ctx, "weather:"+s.location, s.ttl,
		func(ctx context.Context) (model.ContextReading, error) {
			return s.client.Fetch(ctx, s.location)
		},
		func(_ context.Context, cause error) model.ContextReading {
			// Without credentials a varied demo reading is more useful
			// than a constant one.
			if errors.Is(cause, ErrNoAPIKey) {
				return s.synth.Reading(s.location)
			}
			return Default()
		},
	)
}
