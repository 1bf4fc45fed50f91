package help

import (
	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "help"

type Command struct {
	*base.Command
}

func New(di *di.Container) *Command {
	cmd := &Command{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"h"}
}

func (c *Command) Execute(update telegram.Update) error {
	msg := telegram.NewMessage(
		update.Message.Chat.ID,
		c.L("help.text", nil),
		update.Message.MessageID,
	)

	_, err := c.Tg.Send(msg)
	if err != nil {
		c.Logger.WithError(err).Error("Failed to send message")
		return err
	}

	return nil
}
