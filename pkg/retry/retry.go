package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config controls retry behavior. With Multiplier 1.0 the delay is fixed
// between attempts.
type Config struct {
	MaxAttempts        int
	Delay              time.Duration
	MaxDelay           time.Duration
	Multiplier         float64
	NonRetryableErrors []error
}

// DefaultConfig returns exponential backoff with three attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Delay:       100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// FixedConfig returns a fixed-delay policy with the given attempt bound.
func FixedConfig(attempts int, delay time.Duration) Config {
	return Config{
		MaxAttempts: attempts,
		Delay:       delay,
		MaxDelay:    delay,
		Multiplier:  1.0,
	}
}

// Do runs fn until it succeeds, the attempt bound is reached, or the context
// is cancelled. A non-retryable error stops immediately.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		for _, fatal := range cfg.NonRetryableErrors {
			if err == fatal {
				return err
			}
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(delayFor(cfg, attempt)):
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

func delayFor(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.Delay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
