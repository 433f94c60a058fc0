package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around a chat client
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes
// again after 30 seconds
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		Interval:    60 * time.Second,
	}
}

// Breaker stops hammering a failing provider. Rejections (4xx) do not
// count against the circuit since they say nothing about provider health.
type Breaker struct {
	inner ChatClient
	cb    *gobreaker.CircuitBreaker[*ChatResponse]
}

// NewBreaker wraps inner with a circuit breaker
func NewBreaker(inner ChatClient, config BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:     "provider-chat",
		Interval: config.Interval,
		Timeout:  config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[*ChatResponse](settings),
	}
}

// Chat delegates through the circuit. An open circuit surfaces as
// ErrUnavailable so callers apply their normal retry policy.
func (b *Breaker) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := b.cb.Execute(func() (*ChatResponse, error) {
		return b.inner.Chat(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.Join(ErrUnavailable, err)
		}
		return nil, err
	}
	return resp, nil
}
