package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

type stubDB struct {
	database.Database
	db *sql.DB
}

func (s *stubDB) GetDB() *sql.DB { return s.db }

type stubCommand struct {
	name string
}

func (c *stubCommand) Name() string                  { return c.name }
func (c *stubCommand) Aliases() []string             { return nil }
func (c *stubCommand) Handle(telegram.Update) error  { return nil }
func (c *stubCommand) Execute(telegram.Update) error { return nil }
func (c *stubCommand) GetQueueConfig() commands.QueueConfig {
	return commands.QueueConfig{
		Timeout: time.Second,
		Throttle: commands.ThrottleConfig{
			Period:      time.Second,
			Requests:    1,
			Concurrency: 1,
		},
	}
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewQueue(&stubDB{db: sqlDB}, logger.NewTestLogger())
}

// Commands with slow initialization join the queue from their own goroutines
// after the boot-time batch already started.
func TestStartQueueConcurrentRegistration(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := range 8 {
		name := fmt.Sprintf("cmd%d", i%4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.StartQueue(ctx, name, &stubCommand{name: name})
		}()
	}
	wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Len(t, q.commandLimiters, 4)
	assert.Len(t, q.commandSemaphores, 4)
	assert.Len(t, q.handlers, 4)
}

func TestStartQueueIsIdempotent(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.StartQueue(ctx, "insta", &stubCommand{name: "insta"})

	q.mu.Lock()
	limiter := q.commandLimiters["insta"]
	q.mu.Unlock()

	q.StartQueue(ctx, "insta", &stubCommand{name: "insta"})

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Same(t, limiter, q.commandLimiters["insta"])
	assert.Len(t, q.commandLimiters, 1)
}
