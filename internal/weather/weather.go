// Package weather fetches current conditions from the OpenWeather API and
// synthesizes substitute readings when the provider is unavailable.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/storepulse/sales-engine/internal/model"
)

// HotThreshold is the temperature (°C) above which a reading is hot.
const HotThreshold = 25.0

// DefaultBaseURL is the public OpenWeather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org"

var (
	// ErrProvider is wrapped by every fetch failure: unreachable endpoint,
	// timeout, non-2xx response or malformed payload.
	ErrProvider = errors.New("weather: provider unavailable")

	// ErrNoAPIKey is returned when the client has no credentials.
	ErrNoAPIKey = errors.New("weather: no API key configured")
)

// Client is an OpenWeather current-weather client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// NewClient creates a client. timeout bounds each fetch.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// currentWeather is the subset of the OpenWeather response we read.
type currentWeather struct {
	Name string `json:"name"`
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

// Fetch returns the current reading for location.
func (c *Client) Fetch(ctx context.Context, location string) (model.ContextReading, error) {
	if c.apiKey == "" {
		return model.ContextReading{}, fmt.Errorf("%w: %w", ErrProvider, ErrNoAPIKey)
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return model.ContextReading{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ContextReading{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return model.ContextReading{}, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	var cw currentWeather
	if err := json.NewDecoder(resp.Body).Decode(&cw); err != nil {
		return model.ContextReading{}, fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}
	if cw.Main == nil || len(cw.Weather) == 0 {
		return model.ContextReading{}, fmt.Errorf("%w: incomplete payload", ErrProvider)
	}

	name := cw.Name
	if name == "" {
		name = location
	}
	return NewReading(name, cw.Main.Temp, cw.Weather[0].Main, c.now()), nil
}

// NewReading builds a reading and derives IsHot from the temperature.
func NewReading(location string, temperature float64, conditions string, at time.Time) model.ContextReading {
	return model.ContextReading{
		Location:    location,
		Temperature: temperature,
		Conditions:  conditions,
		IsHot:       temperature > HotThreshold,
		FetchedAt:   at.UTC(),
	}
}

var syntheticConditions = []string{"Clear", "Cloudy", "Rainy", "Sunny", "Stormy"}

// Synthesizer produces stand-in readings when the provider fails.
type Synthesizer struct {
	mu  sync.Mutex // guards rng
	rng *rand.Rand
	now func() time.Time
}

// NewSynthesizer creates a generator. A nil rng selects a time-seeded one.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &Synthesizer{rng: rng, now: time.Now}
}

// Reading returns a random plausible reading between 5 and 35 °C for
// location. It is always marked Synthetic.
func (s *Synthesizer) Reading(location string) model.ContextReading {
	s.mu.Lock()
	temp := float64(5 + s.rng.IntN(31))
	cond := syntheticConditions[s.rng.IntN(len(syntheticConditions))]
	s.mu.Unlock()

	r := NewReading(location, temp, cond, s.now())
	r.Synthetic = true
	return r
}

// Default returns the fixed reading used when nothing better is known.
func Default() model.ContextReading {
	return model.ContextReading{
		Location:    "Unknown",
		Temperature: 22,
		Conditions:  "Unknown",
		IsHot:       false,
		Synthetic:   true,
	}
}
