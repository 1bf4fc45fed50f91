package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/service/youtube"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "transcript"

// Transcripts longer than this go out as a document instead of chat spam.
const maxInlineTranscript = 3 * telegram.MaxMessageLength

type Command struct {
	*base.Command
	youtube youtube.Service
}

func New(di *di.Container) *Command {
	cmd := &Command{
		youtube: di.Youtube,
	}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"tr", "subs"}
}

func (c *Command) Execute(update telegram.Update) error {
	chatID := update.Message.Chat.ID
	messageID := update.Message.MessageID

	urls := c.ExtractURLsFromEntities(update.Message.Text, update.Message.Entities)
	if len(urls) == 0 && update.Message.ReplyToMessage != nil {
		urls = c.ExtractURLsFromEntities(update.Message.ReplyToMessage.Text, update.Message.ReplyToMessage.Entities)
	}
	if len(urls) == 0 {
		msg := telegram.NewMessage(chatID, c.L("youtube.errorURLNotFound", nil), messageID)
		_, err := c.Tg.Send(msg)
		return err
	}
	url := urls[0]

	c.Tg.SendChatAction(chatID, telegram.ActionTyping)

	data, err := c.youtube.FetchTranscript(context.Background(), url)
	if err != nil {
		c.Logger.WithError(err).WithFields(logger.Fields{
			"url": url,
		}).Error("Failed to fetch transcript")

		text := c.L("transcript.errorFetchFailed", nil)
		if errors.Is(err, youtube.ErrNoVideoLanguage) || errors.Is(err, youtube.ErrGetSubtitleURL) {
			text = c.L("transcript.errorNoCaptions", nil)
			err = fmt.Errorf("%s: %w", err, commands.ErrPermanent)
		}
		msg := telegram.NewMessage(chatID, text, messageID)
		if _, serr := c.Tg.Send(msg); serr != nil {
			c.Logger.WithError(serr).Error("failed to send message")
		}
		return err
	}

	if data.Transcript == "" {
		msg := telegram.NewMessage(chatID, c.L("transcript.errorNoCaptions", nil), messageID)
		_, err := c.Tg.Send(msg)
		return err
	}

	text := data.Transcript
	if header := formatHeader(data); header != "" {
		text = header + "\n\n" + text
	}

	if len(text) > maxInlineTranscript {
		doc := telegram.NewDocumentMessage(
			chatID,
			telegram.FileBytes{Name: "transcript.txt", Bytes: []byte(text)},
			messageID,
		)
		doc.Caption = data.Title
		_, err := c.Tg.Send(doc)
		return err
	}

	return c.Tg.SendSplit(chatID, text, messageID, "")
}

func formatHeader(data *youtube.VideoData) string {
	var parts []string
	if data.Title != "" {
		parts = append(parts, data.Title)
	}
	if data.ViewCount != nil {
		parts = append(parts, youtube.FormatCount(*data.ViewCount)+" views")
	}
	if data.LikeCount != nil {
		parts = append(parts, youtube.FormatCount(*data.LikeCount)+" likes")
	}
	if data.UploadedAt != nil {
		parts = append(parts, data.UploadedAt.Format("2006-01-02"))
	}
	return strings.Join(parts, " | ")
}
