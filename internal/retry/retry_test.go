package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/logger"
)

type transientErr struct{ msg string }

func (e *transientErr) Error() string     { return e.msg }
func (e *transientErr) IsRetryable() bool { return true }

type rateLimitErr struct{ after time.Duration }

func (e *rateLimitErr) Error() string             { return "rate limited" }
func (e *rateLimitErr) IsRetryable() bool         { return true }
func (e *rateLimitErr) RetryAfter() time.Duration { return e.after }

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns result on first success", func(t *testing.T) {
		calls := 0
		result, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (string, error) {
			calls++
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient failures until success", func(t *testing.T) {
		calls := 0
		result, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, &transientErr{msg: "connection reset"}
			}
			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 3, calls)
	})

	t.Run("invokes exactly maxAttempts times on persistent transient failure", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (int, error) {
			calls++
			return 0, &transientErr{msg: "timeout"}
		})

		require.Error(t, err)
		assert.Equal(t, 4, calls)
	})

	t.Run("fails fast on non-retryable error", func(t *testing.T) {
		calls := 0
		fatal := errors.New("bad request")
		_, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (int, error) {
			calls++
			return 0, fatal
		})

		require.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("rate limit waits then retries exactly once", func(t *testing.T) {
		calls := 0
		start := time.Now()
		result, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (string, error) {
			calls++
			if calls == 1 {
				return "", &rateLimitErr{after: 20 * time.Millisecond}
			}
			return "done", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "done", result)
		assert.Equal(t, 2, calls)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("rate limit retry failure is final", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, logger.NewTestLogger(), 4, time.Millisecond, func() (string, error) {
			calls++
			return "", &rateLimitErr{after: time.Millisecond}
		})

		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("cancelled context stops the backoff wait", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		_, err := Do(cctx, logger.NewTestLogger(), 4, time.Minute, func() (int, error) {
			calls++
			return 0, &transientErr{msg: "timeout"}
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
