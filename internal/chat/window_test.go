package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
)

// budgetConfig is a settable stand-in for the live config.
type budgetConfig struct {
	maxHistoryTokens int
}

func (c *budgetConfig) AI() config.AIConfig {
	return config.AIConfig{MaxHistoryTokens: c.maxHistoryTokens}
}

func newWindowManager(counter TokenCounter, maxTokens int) *WindowManager {
	return NewWindowManager(counter, &budgetConfig{maxHistoryTokens: maxTokens}, logger.NewTestLogger())
}

// countingCounter charges a fixed price per turn and records call counts.
type countingCounter struct {
	perTurn int
	calls   int
	err     error
}

func (c *countingCounter) CountTokens(_ context.Context, contents []ai.Content) (int, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return len(contents) * c.perTurn, nil
}

func seededSession(t *testing.T, exchanges int) (*Store, *Session) {
	t.Helper()
	ctx := context.Background()
	store := NewStore(newFakeDB(), logger.NewTestLogger())
	sess := store.Initialize(ctx, 1, "alice", "seed")
	for i := 0; i < exchanges; i++ {
		require.NoError(t, sess.Append(ctx,
			ai.NewTextContent(ai.RoleUser, "q"),
			ai.NewTextContent(ai.RoleModel, "a"),
		))
	}
	return store, sess
}

func TestWindowManagerEnforce(t *testing.T) {
	ctx := context.Background()

	t.Run("under budget removes nothing", func(t *testing.T) {
		_, sess := seededSession(t, 3) // 7 turns
		counter := &countingCounter{perTurn: 10}

		removed, err := newWindowManager(counter, 100).Enforce(ctx, sess)

		require.NoError(t, err)
		assert.Equal(t, 0, removed)
		assert.Equal(t, 7, sess.Len())
		assert.Equal(t, 1, counter.calls)
	})

	t.Run("drops oldest turns until it fits", func(t *testing.T) {
		_, sess := seededSession(t, 5) // 11 turns = 110 tokens
		counter := &countingCounter{perTurn: 10}

		removed, err := newWindowManager(counter, 80).Enforce(ctx, sess)

		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		assert.Equal(t, 8, sess.Len())
		// one count per removal plus the final passing check
		assert.Equal(t, 4, counter.calls)
	})

	t.Run("seed turn survives even a hopeless budget", func(t *testing.T) {
		_, sess := seededSession(t, 4) // 9 turns
		counter := &countingCounter{perTurn: 1000}

		removed, err := newWindowManager(counter, 10).Enforce(ctx, sess)

		require.NoError(t, err)
		assert.Equal(t, 8, removed)
		require.Equal(t, 1, sess.Len())
		assert.Equal(t, "seed", sess.History()[0].Text())
	})

	t.Run("trimmed history is persisted", func(t *testing.T) {
		store, sess := seededSession(t, 5)
		counter := &countingCounter{perTurn: 10}

		_, err := newWindowManager(counter, 80).Enforce(ctx, sess)
		require.NoError(t, err)

		restored := NewStore(store.db, logger.NewTestLogger()).Initialize(ctx, 1, "alice", "seed")
		assert.Equal(t, 8, restored.Len())
		assert.Equal(t, "seed", restored.History()[0].Text())
	})

	t.Run("counter failure propagates", func(t *testing.T) {
		_, sess := seededSession(t, 2)
		counter := &countingCounter{err: errors.New("backend down")}

		_, err := newWindowManager(counter, 10).Enforce(ctx, sess)
		require.Error(t, err)
	})

	t.Run("zero budget disables trimming", func(t *testing.T) {
		_, sess := seededSession(t, 2)
		counter := &countingCounter{perTurn: 1000}

		removed, err := newWindowManager(counter, 0).Enforce(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
		assert.Equal(t, 0, counter.calls)
	})

	t.Run("budget edits apply to the next enforcement", func(t *testing.T) {
		_, sess := seededSession(t, 5) // 11 turns = 110 tokens
		counter := &countingCounter{perTurn: 10}
		cfg := &budgetConfig{maxHistoryTokens: 200}
		wm := NewWindowManager(counter, cfg, logger.NewTestLogger())

		removed, err := wm.Enforce(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		cfg.maxHistoryTokens = 80
		removed, err = wm.Enforce(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		assert.Equal(t, 8, sess.Len())
	})
}
