package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusError is an upstream HTTP failure carrying its status code, so
// callers can tell transient trouble from misconfiguration.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.Status)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

// Temporary reports whether the status warrants a retry. Rate limits
// and server errors are transient; 4xx misconfiguration is not.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Retryable classifies an error for the retry policy. Network-level
// failures (no status available) count as transient.
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

// Policy is a bounded exponential-backoff retry schedule, shared by the
// classifier, article fetcher, and delivery gateway.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		if err = fn(); err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
	}
	return err
}
