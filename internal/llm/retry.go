package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/url"
	"time"
)

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non-200 status code: %d - %s", e.Code, e.Body)
}

// retriableStatus lists the HTTP codes worth another attempt.
var retriableStatus = map[int]bool{
	402: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Transient reports whether an error is worth retrying: a retriable HTTP
// status, or a network/timeout failure. Everything else (malformed requests,
// auth errors) propagates immediately.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retriableStatus[statusErr.Code]
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Policy is an explicit retry policy: attempt budget, backoff shape, and the
// predicate deciding which errors are worth another attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	Jitter     float64
	Retriable  func(error) bool
}

// DefaultPolicy retries up to 3 times with exponential backoff starting at
// 1s, doubling per attempt, with 25% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		Jitter:     0.25,
		Retriable:  Transient,
	}
}

// Do runs fn, retrying per the policy. It respects context cancellation
// between attempts and returns the last error once the budget is exhausted.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	retriable := p.Retriable
	if retriable == nil {
		retriable = Transient
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retriable(lastErr) || attempt == p.MaxRetries {
			return lastErr
		}

		wait := jitter(delay, p.Jitter)
		logger.Warn("Retrying after transient error",
			"op", op,
			"attempt", attempt+1,
			"max_retries", p.MaxRetries,
			"wait_ms", wait.Milliseconds(),
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return lastErr
}

// jitter spreads a delay by ±fraction to avoid synchronized retries.
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	offset := (rand.Float64()*2 - 1) * fraction
	return time.Duration(float64(d) * (1 + offset))
}
