package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput covers a missing or non-positive amount and malformed
	// feature vectors. Surfaced as 400 and never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable is returned when the coefficient table cannot be
	// loaded. The service must not start without a model.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrRateLimitExceeded is matched by every *RateLimitError.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// InvalidInput wraps ErrInvalidInput with a caller-facing detail message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// RateLimitError reports a rejected request and when the caller's window resets.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: max %d requests per window, resets at %s",
		e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrRateLimitExceeded) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (e *RateLimitError) RetryAfter(now time.Time) int {
	secs := int(e.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}
