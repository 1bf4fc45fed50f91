package clear

import (
	"context"

	"github.com/akidev/akibot/internal/app/di"
	chatstore "github.com/akidev/akibot/internal/chat"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "clear"

// Command wipes the caller's conversation history. Clearing an empty history
// succeeds the same way, so the command is safe to repeat.
type Command struct {
	*base.Command
	store *chatstore.Store
}

func New(di *di.Container) *Command {
	cmd := &Command{
		store: di.ChatStore,
	}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"reset", "forget"}
}

func (c *Command) Execute(update telegram.Update) error {
	from := update.Message.From

	text := c.L("clear.done", nil)
	if err := c.store.Clear(context.Background(), from.ID, from.UserName); err != nil {
		c.Logger.WithError(err).WithField("user_id", from.ID).Error("Failed to clear conversation")
		text = c.L("clear.persistWarning", nil)
	}

	msg := telegram.NewMessage(update.Message.Chat.ID, text, update.Message.MessageID)
	_, err := c.Tg.Send(msg)
	if err != nil {
		c.Logger.WithError(err).Error("Failed to send message")
	}
	return err
}
