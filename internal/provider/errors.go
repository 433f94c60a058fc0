package provider

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for remote provider calls. Raw provider response bodies are
// carried inside the wrapped error for logging and must never be shown to
// end users verbatim.
var (
	// ErrUnavailable covers network failures and 5xx responses. Retryable
	// for idempotent calls only.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrRejected covers 4xx validation/auth failures. Not retryable.
	ErrRejected = errors.New("provider rejected request")

	// ErrNotFound is the 404 case, split out so delete can treat it as
	// success.
	ErrNotFound = errors.New("resource not found")
)

// classifyStatus maps a non-200 HTTP response to the error taxonomy
func classifyStatus(status int, body []byte) error {
	switch {
	case status == 404:
		return fmt.Errorf("%w (status %d)", ErrNotFound, status)
	case status >= 500:
		return fmt.Errorf("%w (status %d): %s", ErrUnavailable, status, truncateBody(body))
	default:
		return fmt.Errorf("%w (status %d): %s", ErrRejected, status, truncateBody(body))
	}
}

// IsRetryable reports whether the error may be retried on an idempotent
// call. Cancellation is never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrUnavailable)
}

func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "..."
}
