package inference

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a submission would exceed the configured
// request rate. It wraps ErrProvider so callers treat it like any other
// provider failure.
var ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", ErrProvider)

// Limited caps the rate of submissions to the wrapped Submitter. Calls over
// the limit fail immediately instead of waiting.
type Limited struct {
	next    Submitter
	limiter *rate.Limiter
}

// NewLimited allows perMinute submissions per minute with the given burst.
func NewLimited(next Submitter, perMinute float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), burst),
	}
}

func (l *Limited) Submit(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	if !l.limiter.Allow() {
		return "", ErrRateLimited
	}
	return l.next.Submit(ctx, prompt, cfg)
}
