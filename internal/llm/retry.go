package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// MaxRetries is the number of attempts made for retryable failures.
const MaxRetries = 3

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// RetryableStatus reports whether an HTTP status signals a transient failure.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// Classify wraps err in a RetryableError when status or a timeout marks it
// as transient. Context cancellation is never retried.
func Classify(err error, status int) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if RetryableStatus(status) || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &RetryableError{StatusCode: status, Message: err.Error(), Err: err}
	}
	return err
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Retry calls fn until it succeeds, fails with a non-retryable error or
// attempts are used up. wait computes the pause before each retry.
func Retry[T any](ctx context.Context, attempts int, wait func(int) time.Duration, fn func() (T, error)) (T, error) {
	var (
		zero T
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		var v T
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait(attempt)):
		}
	}
	return zero, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
