package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles an underlying chat client with a token bucket so
// bursts of turns stay inside the provider's request quota.
type RateLimited struct {
	inner   ChatClient
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a per-minute request budget. Burst is a
// sixth of the budget so short spikes go through without draining the
// whole minute at once.
func NewRateLimited(inner ChatClient, requestsPerMinute int) *RateLimited {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	burst := requestsPerMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

// Chat blocks until a token is available, then delegates
func (r *RateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Chat(ctx, req)
}
