// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction applied to each delay
}

// DefaultConfig returns sensible defaults for database operations:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Once retries a single time after a short pause.
func Once() *Config {
	return &Config{
		MaxRetries:   1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.0,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// DoWhen executes fn, retrying only while shouldRetry accepts the returned error.
// A nil shouldRetry retries every error. Returns the last error once retries are
// exhausted and respects context cancellation during wait periods.
func DoWhen(ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() error) error {
	_, err := DoWithResultWhen(ctx, cfg, shouldRetry, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResultWhen is DoWhen for functions that return a value.
func DoWithResultWhen[T any](ctx context.Context, cfg *Config, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if shouldRetry != nil && !shouldRetry(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	return result, lastErr
}

// Do executes fn with exponential backoff, retrying any error.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	return DoWhen(ctx, cfg, nil, fn)
}

// DoWithResult executes fn and returns both result and error, retrying any error.
// Useful for functions that return values (like pgxpool.New).
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return DoWithResultWhen(ctx, cfg, nil, fn)
}

// DoIfRetryable only retries errors that IsRetryable reports as transient.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	return DoWhen(ctx, cfg, IsRetryable, fn)
}

// Postgres SQLSTATE codes that describe a transient failure.
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P03": true, // cannot_connect_now
}

// IsRetryable reports whether err is a transient connection or concurrency failure.
// Constraint violations and bad input are permanent and never retried here.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"timed out",
		"network is unreachable",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
