package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Do executes a function with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoIf(ctx, cfg, fn, nil)
}

// DoIf executes a function with exponential backoff retry, retrying only
// errors for which retryable returns true. A nil retryable retries everything.
func DoIf(ctx context.Context, cfg Config, fn func() error, retryable func(error) bool) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if retryable != nil {
		opts = append(opts, retry.RetryIf(retryable))
	}
	return retry.Do(fn, opts...)
}

// DoWithResult executes a function with exponential backoff retry and returns
// a result, retrying only errors accepted by retryable (nil retries all).
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error), retryable func(error) bool) (T, error) {
	var result T
	err := DoIf(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	}, retryable)
	return result, err
}
