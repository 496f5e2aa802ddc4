// Package retry implements exponential backoff with jitter for API setup
// calls. Streaming requests are never retried; only short request/response
// calls such as login and conversation creation go through Do.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// APIError is implemented by errors that carry an HTTP status code. The
// status code decides whether a failed call is retried.
type APIError interface {
	error
	StatusCode() int
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func() error

type config struct {
	maxRetries int
	baseWait   time.Duration
}

// Option configures retry behavior.
type Option func(*config)

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait sets the first backoff interval.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// Do executes f, retrying on retryable API errors with exponential backoff
// and jitter. Non-API errors (network failures) are retried as well; an API
// error with a non-retryable status code is returned immediately.
func Do(ctx context.Context, f RetryableFunc, opts ...Option) error {
	c := config{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
	}
	for _, opt := range opts {
		opt(&c)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		err := f()
		if err == nil {
			return nil
		}
		var apiErr APIError
		if errors.As(err, &apiErr) && !ShouldRetry(apiErr.StatusCode()) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// ShouldRetry reports whether the given HTTP status code warrants a retry.
func ShouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
