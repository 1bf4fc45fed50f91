package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

type stubCommand struct {
	name    string
	aliases []string
}

func (c *stubCommand) Name() string                         { return c.name }
func (c *stubCommand) Aliases() []string                    { return c.aliases }
func (c *stubCommand) Handle(telegram.Update) error         { return nil }
func (c *stubCommand) Execute(telegram.Update) error        { return nil }
func (c *stubCommand) GetQueueConfig() commands.QueueConfig { return commands.QueueConfig{} }

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	bot, err := NewBot(nil, nil, logger.NewTestLogger(), nil, nil, nil)
	require.NoError(t, err)
	return bot
}

func TestFindCommand(t *testing.T) {
	bot := newTestBot(t)
	bot.RegisterCommand(&stubCommand{name: "chat", aliases: []string{"ask", "a"}})

	assert.NotNil(t, bot.findCommand("chat"))
	assert.NotNil(t, bot.findCommand("ask"))
	assert.Nil(t, bot.findCommand("nope"))
}

// Slow-starting commands register from their own goroutines while the update
// loop is already resolving commands for incoming messages.
func TestRegisterCommandDuringLookups(t *testing.T) {
	bot := newTestBot(t)
	bot.RegisterCommand(&stubCommand{name: "chat", aliases: []string{"ask"}})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bot.RegisterCommand(&stubCommand{name: fmt.Sprintf("late%d", i)})
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				bot.findCommand("ask")
				bot.GetCommands()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, bot.GetCommands(), 9)
}

func TestGetCommandsReturnsSnapshot(t *testing.T) {
	bot := newTestBot(t)
	bot.RegisterCommand(&stubCommand{name: "chat"})

	snapshot := bot.GetCommands()
	bot.RegisterCommand(&stubCommand{name: "insta"})

	assert.Len(t, snapshot, 1)
	assert.Len(t, bot.GetCommands(), 2)
}
