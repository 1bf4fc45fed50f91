package start

import (
	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "start"

type Command struct {
	*base.Command
	db database.Database
}

func New(di *di.Container) *Command {
	cmd := &Command{
		db: di.DB,
	}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Execute(update telegram.Update) error {
	from := update.Message.From

	user := database.User{
		ID:        from.ID,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.UserName,
	}
	if err := c.db.SaveUser(user); err != nil {
		c.Logger.WithError(err).WithField("user", user).Error("Error save user")
	}

	name := from.FirstName
	if name == "" {
		name = from.UserName
	}

	msg := telegram.NewMessage(
		update.Message.Chat.ID,
		c.L("start.greeting", map[string]any{
			"Name": name,
		}),
		update.Message.MessageID,
	)

	_, err := c.Tg.Send(msg)
	if err != nil {
		c.Logger.WithError(err).Error("Failed to send message")
		return err
	}

	return nil
}
