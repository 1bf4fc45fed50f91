package chat

import (
	"context"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
)

// TokenCounter measures how many tokens a history occupies. The generative
// client satisfies it.
type TokenCounter interface {
	CountTokens(ctx context.Context, contents []ai.Content) (int, error)
}

// ConfigProvider yields the current backend settings, so budget edits apply
// without restarting.
type ConfigProvider interface {
	AI() config.AIConfig
}

// WindowManager trims old turns when a history outgrows the token budget.
// The seed turn at index 0 is never removed; the oldest regular turn (index 1)
// goes first, one count round-trip per removal.
type WindowManager struct {
	counter TokenCounter
	cfg     ConfigProvider
	logger  logger.Logger
}

func NewWindowManager(counter TokenCounter, cfg ConfigProvider, log logger.Logger) *WindowManager {
	return &WindowManager{
		counter: counter,
		cfg:     cfg,
		logger:  log,
	}
}

// Enforce drops turns from sess until the history fits the budget, then
// persists the trimmed history. Returns how many turns were removed.
func (w *WindowManager) Enforce(ctx context.Context, sess *Session) (int, error) {
	maxTokens := w.cfg.AI().MaxHistoryTokens
	if maxTokens <= 0 {
		return 0, nil
	}

	turns := sess.History()
	removed := 0

	for len(turns) > 1 {
		count, err := w.counter.CountTokens(ctx, turns)
		if err != nil {
			return removed, err
		}
		if count <= maxTokens {
			break
		}

		w.logger.WithFields(logger.Fields{
			"key":    sess.Key(),
			"tokens": count,
			"budget": maxTokens,
			"turns":  len(turns),
		}).Debug("History over budget, dropping oldest turn")

		turns = append(turns[:1], turns[2:]...)
		removed++
	}

	if removed == 0 {
		return 0, nil
	}

	w.logger.WithFields(logger.Fields{
		"key":     sess.Key(),
		"removed": removed,
	}).Info("Trimmed conversation history")

	if err := sess.Replace(ctx, turns); err != nil {
		return removed, err
	}
	return removed, nil
}
