package web2md

import (
	"context"
	"fmt"
	"strings"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
	"github.com/akidev/akibot/internal/webmd"
)

const CommandName = "web2md"

type Command struct {
	*base.Command
	converter *webmd.Converter
}

func New(di *di.Container) *Command {
	cmd := &Command{
		converter: di.Webmd,
	}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"md", "page"}
}

func (c *Command) Execute(update telegram.Update) error {
	chatID := update.Message.Chat.ID
	messageID := update.Message.MessageID

	urls := c.ExtractURLsFromEntities(update.Message.Text, update.Message.Entities)
	if len(urls) == 0 && update.Message.ReplyToMessage != nil {
		urls = c.ExtractURLsFromEntities(update.Message.ReplyToMessage.Text, update.Message.ReplyToMessage.Entities)
	}
	if len(urls) == 0 {
		msg := telegram.NewMessage(chatID, c.L("web2md.errorURLNotFound", nil), messageID)
		_, err := c.Tg.Send(msg)
		return err
	}
	url := urls[0]

	c.Tg.SendChatAction(chatID, telegram.ActionUploadingFile)

	page, err := c.converter.Fetch(context.Background(), url)
	if err != nil {
		c.Logger.WithError(err).WithFields(logger.Fields{
			"url": url,
		}).Error("Failed to convert page")

		msg := telegram.NewMessage(chatID, c.L("web2md.errorFetchFailed", nil), messageID)
		if _, serr := c.Tg.Send(msg); serr != nil {
			c.Logger.WithError(serr).Error("failed to send message")
		}
		return err
	}

	if page.Markdown == "" {
		msg := telegram.NewMessage(chatID, c.L("web2md.errorEmptyPage", nil), messageID)
		_, err := c.Tg.Send(msg)
		return err
	}

	doc := telegram.NewDocumentMessage(
		chatID,
		telegram.FileBytes{Name: documentName(page), Bytes: []byte(page.Markdown)},
		messageID,
	)
	doc.Caption = page.Title
	_, err = c.Tg.Send(doc)
	return err
}

func documentName(page *webmd.Page) string {
	name := strings.TrimSpace(page.Title)
	if name == "" {
		name = "page"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if len(name) > 60 {
		name = name[:60]
	}
	return fmt.Sprintf("%s.md", name)
}
