package provider

import (
	"context"
	"fmt"
	"time"
)

// ChatWithRetry retries a chat call on transient failures with exponential
// backoff. Only safe for idempotent calls; conversational turns with side
// effects go through Chat directly.
func ChatWithRetry(ctx context.Context, client ChatClient, req ChatRequest, attempts int, backoff time.Duration) (*ChatResponse, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff << (attempt - 1)):
			}
		}
		resp, err := client.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
