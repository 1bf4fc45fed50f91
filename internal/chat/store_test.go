package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
)

type fakeDB struct {
	database.Database

	mu       sync.Mutex
	rows     map[string][]byte
	failSave bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]byte)}
}

func (f *fakeDB) SaveConversation(_ context.Context, key string, _ int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.rows[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeDB) GetConversation(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.rows[key]
	if !ok {
		return nil, database.ErrConversationNotFound
	}
	return data, nil
}

func (f *fakeDB) DeleteConversation(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, key)
	return nil
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "alice_42", UserKey(42, "alice"))
	assert.Equal(t, "Bob_Smith_7", UserKey(7, "Bob Smith"))
	assert.Equal(t, "unknown_9", UserKey(9, ""))
	assert.Equal(t, "unknown_9", UserKey(9, "   "))
}

func TestStoreInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds fresh history with system prompt", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "be helpful")

		history := sess.History()
		require.Len(t, history, 1)
		assert.Equal(t, ai.RoleUser, history[0].Role)
		assert.Equal(t, "be helpful", history[0].Text())
	})

	t.Run("returns same session for same user", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		first := store.Initialize(ctx, 1, "alice", "prompt")
		second := store.Initialize(ctx, 1, "alice", "prompt")
		assert.Same(t, first, second)
	})

	t.Run("restores persisted snapshot", func(t *testing.T) {
		db := newFakeDB()
		store := NewStore(db, logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")
		require.NoError(t, sess.Append(ctx,
			ai.NewTextContent(ai.RoleUser, "question"),
			ai.NewTextContent(ai.RoleModel, "answer"),
		))

		restored := NewStore(db, logger.NewTestLogger()).Initialize(ctx, 1, "alice", "prompt")
		history := restored.History()
		require.Len(t, history, 3)
		assert.Equal(t, "prompt", history[0].Text())
		assert.Equal(t, "question", history[1].Text())
		assert.Equal(t, ai.RoleModel, history[2].Role)
		assert.Equal(t, "answer", history[2].Text())
	})

	t.Run("unreadable snapshot starts fresh", func(t *testing.T) {
		db := newFakeDB()
		db.rows[UserKey(1, "alice")] = []byte("not json at all")

		testLogger := logger.NewTestLogger()
		sess := NewStore(db, testLogger).Initialize(ctx, 1, "alice", "prompt")

		require.Len(t, sess.History(), 1)
		assert.True(t, testLogger.HasEntry("warn", "Conversation snapshot unreadable, starting fresh"))
	})
}

func TestSessionAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("history grows by one seed plus two per exchange", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")

		const exchanges = 5
		for i := 0; i < exchanges; i++ {
			require.NoError(t, sess.Append(ctx,
				ai.NewTextContent(ai.RoleUser, "q"),
				ai.NewTextContent(ai.RoleModel, "a"),
			))
		}

		assert.Equal(t, 1+2*exchanges, sess.Len())
		assert.Equal(t, "prompt", sess.History()[0].Text())
	})

	t.Run("persist failure keeps turns in memory", func(t *testing.T) {
		db := newFakeDB()
		db.failSave = true
		store := NewStore(db, logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")

		err := sess.Append(ctx, ai.NewTextContent(ai.RoleUser, "q"))
		require.ErrorIs(t, err, ErrPersist)
		assert.Equal(t, 2, sess.Len())
	})

	t.Run("concurrent appends all land", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = sess.Append(ctx,
					ai.NewTextContent(ai.RoleUser, "q"),
					ai.NewTextContent(ai.RoleModel, "a"),
				)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1+2*20, sess.Len())
	})
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()

	t.Run("removes memory and storage", func(t *testing.T) {
		db := newFakeDB()
		store := NewStore(db, logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")
		require.NoError(t, sess.Append(ctx, ai.NewTextContent(ai.RoleUser, "q")))

		require.NoError(t, store.Clear(ctx, 1, "alice"))

		_, err := store.Get(1, "alice")
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = db.GetConversation(ctx, UserKey(1, "alice"))
		assert.ErrorIs(t, err, database.ErrConversationNotFound)
	})

	t.Run("clearing nothing is fine", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		require.NoError(t, store.Clear(ctx, 99, "nobody"))
		require.NoError(t, store.Clear(ctx, 99, "nobody"))
	})

	t.Run("initialize after clear seeds again", func(t *testing.T) {
		store := NewStore(newFakeDB(), logger.NewTestLogger())
		sess := store.Initialize(ctx, 1, "alice", "prompt")
		require.NoError(t, sess.Append(ctx,
			ai.NewTextContent(ai.RoleUser, "q"),
			ai.NewTextContent(ai.RoleModel, "a"),
		))

		require.NoError(t, store.Clear(ctx, 1, "alice"))
		fresh := store.Initialize(ctx, 1, "alice", "prompt")
		assert.Equal(t, 1, fresh.Len())
	})
}
