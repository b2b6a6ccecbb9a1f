package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes an exponential-backoff retry loop. The crawl
// engine runs one such ladder: the search-engine client's collection
// initialization (1s doubling to 16s). The extraction service's retries
// in internal/extract are a separate timeout ladder that does not use
// this type.
type RetryConfig struct {
	// MaxRetries is how many retries follow the initial attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the growing delay.
	MaxDelay time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// Jitter randomizes each wait to 50-100% of its nominal value, so
	// several indexer workers retrying the same unavailable service
	// don't all come back in the same instant.
	Jitter bool
}

// DefaultRetryConfig is a short ladder: three retries, starting at 1s
// and doubling (waits of 1s, 2s, 4s) under a 16s cap. The search-engine
// client does not use it; it builds a five-retry ladder from
// RetryBackoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// Retry runs fn until it succeeds, the retries are exhausted, or ctx is
// cancelled. Cancellation is honored both before each attempt and
// during the backoff sleep: a stopping crawl must not sit out a 16s
// wait just to learn it was cancelled.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value, e.g. a
// document fetch that should survive a briefly unreachable search
// engine. On exhaustion it returns the zero value and the last error,
// wrapped with the retry count.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
