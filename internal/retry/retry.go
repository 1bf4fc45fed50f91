package retry

import (
	"context"
	"errors"
	"time"

	"github.com/akidev/akibot/internal/logger"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 3 * time.Second
)

// transient errors are worth another attempt with backoff.
type transient interface {
	IsRetryable() bool
}

// rateLimited errors carry the wait the server asked for.
type rateLimited interface {
	RetryAfter() time.Duration
}

// Do runs op up to maxAttempts times, sleeping baseDelay*2^attempt between
// transient failures. A rate-limited error interrupts the attempt loop: Do
// waits exactly the server-provided delay and then runs op one final time,
// regardless of how many attempts were already spent. Any other error fails
// immediately.
func Do[T any](ctx context.Context, log logger.Logger, maxAttempts int, baseDelay time.Duration, op func() (T, error)) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}

		var rl rateLimited
		if errors.As(err, &rl) && rl.RetryAfter() > 0 {
			wait := rl.RetryAfter()
			log.WithFields(logger.Fields{
				"retry_after": wait.String(),
				"attempt":     attempt + 1,
			}).Warn("Rate limited, waiting server-provided delay")

			if err := sleep(ctx, wait); err != nil {
				return zero, err
			}
			return op()
		}

		var tr transient
		if !errors.As(err, &tr) || !tr.IsRetryable() {
			return zero, err
		}

		if attempt == maxAttempts-1 {
			log.WithError(err).WithField("attempts", maxAttempts).
				Error("All retry attempts exhausted")
			return zero, err
		}

		delay := baseDelay << attempt
		log.WithError(err).WithFields(logger.Fields{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Warn("Transient failure, retrying")

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, errors.New("retry: no attempts executed")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
