package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/app/di"
	chatstore "github.com/akidev/akibot/internal/chat"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/retry"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "chat"

// Command relays free-form messages to the generative backend with the
// user's accumulated conversation history.
type Command struct {
	*base.Command
	client   ai.Client
	store    *chatstore.Store
	window   *chatstore.WindowManager
	resolver *ReplyResolver

	mu        sync.Mutex
	exchanges map[string]int
}

func New(di *di.Container) *Command {
	cmd := &Command{
		client:    di.AI,
		store:     di.ChatStore,
		window:    di.Window,
		exchanges: make(map[string]int),
	}
	cmd.Command = base.NewCommand(cmd, di)
	cmd.resolver = NewReplyResolver(di.BotClient, di.HTTPClient, di.Cfg, di.Logger)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"ask", "a"}
}

func (c *Command) Execute(update telegram.Update) error {
	msg := update.Message
	ctx := context.Background()
	chatID := msg.Chat.ID
	messageID := msg.MessageID

	text := msg.Text
	if msg.IsCommand() {
		text = msg.CommandArguments()
	}
	if text == "" {
		text = msg.Caption
	}

	aiCfg := c.Cfg.AI()
	sess := c.store.Initialize(ctx, msg.From.ID, msg.From.UserName, aiCfg.SystemPrompt)

	parts, err := c.buildUserParts(msg, text)
	if err != nil {
		reply := telegram.NewMessage(chatID, c.L("chat.errorUnsupportedMedia", nil), messageID)
		if _, serr := c.Tg.Send(reply); serr != nil {
			c.Logger.WithError(serr).Error("failed to send message")
		}
		return err
	}
	if len(parts) == 0 {
		reply := telegram.NewMessage(chatID, c.L("chat.emptyMessage", nil), messageID)
		_, err := c.Tg.Send(reply)
		return err
	}

	userTurn := ai.Content{Role: ai.RoleUser, Parts: parts}
	request := append(sess.History(), userTurn)

	c.Tg.SendChatAction(chatID, telegram.ActionTyping)

	var responseText string
	if aiCfg.UseStream {
		responseText, err = c.generateStream(ctx, request, aiCfg.MaxRetries, aiCfg.RetryDelay)
	} else {
		responseText, err = retry.Do(ctx, c.Logger, aiCfg.MaxRetries, aiCfg.RetryDelay, func() (string, error) {
			return c.client.Generate(ctx, request)
		})
	}
	if err != nil {
		c.Logger.WithError(err).WithFields(logger.Fields{
			"user_id": msg.From.ID,
			"model":   c.client.ModelName(),
		}).Error("Generation failed")

		reply := telegram.NewMessage(chatID, c.failureText(err), messageID)
		if _, serr := c.Tg.Send(reply); serr != nil {
			c.Logger.WithError(serr).Error("failed to send message")
		}
		return err
	}

	// Both turns land in one append so a crash between them cannot leave an
	// unanswered user turn in the history.
	modelTurn := ai.NewTextContent(ai.RoleModel, responseText)
	if err := sess.Append(ctx, userTurn, modelTurn); err != nil {
		if errors.Is(err, chatstore.ErrPersist) {
			warn := telegram.NewMessage(chatID, c.L("chat.persistWarning", nil), messageID)
			if _, serr := c.Tg.Send(warn); serr != nil {
				c.Logger.WithError(serr).Error("failed to send message")
			}
		} else {
			return err
		}
	}

	c.maybeTrim(ctx, sess, aiCfg.TrimCheckEvery)

	return c.Tg.SendSplit(chatID, responseText, messageID, "")
}

func (c *Command) buildUserParts(msg *tgbotapi.Message, text string) ([]ai.Part, error) {
	if rc := c.resolver.Resolve(msg); rc != nil {
		return FormatReplyContext(rc, text), nil
	}

	cfg := c.Cfg.GetChatCommandConfig()

	switch {
	case len(msg.Photo) > 0 && cfg.Images.Enabled:
		photo := msg.Photo[len(msg.Photo)-1]
		data, err := c.resolver.download(photo.FileID)
		if err != nil {
			return nil, err
		}
		return BuildImageParts(data, text)

	case msg.Document != nil && cfg.Files.Enabled:
		doc := msg.Document
		ext := strings.ToLower(filepath.Ext(doc.FileName))
		if !cfg.Files.IsAllowedExtension(ext) {
			return nil, ErrBinaryDocument
		}
		data, err := c.resolver.download(doc.FileID)
		if err != nil {
			return nil, err
		}
		content, err := BuildDocumentText(data)
		if err != nil {
			return nil, err
		}
		if text != "" {
			content = text + "\n\n" + content
		}
		return []ai.Part{{Text: content}}, nil

	case (msg.Audio != nil || msg.Voice != nil) && cfg.Audio.Enabled:
		return c.buildAudioParts(msg, text, cfg)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []ai.Part{{Text: text}}, nil
}

func (c *Command) buildAudioParts(msg *tgbotapi.Message, text string, cfg *config.ChatCommandConfig) ([]ai.Part, error) {
	var fileID, mimeType string
	var duration int
	var fileSize int64

	if audio := msg.Audio; audio != nil {
		fileID, mimeType, duration, fileSize = audio.FileID, audio.MimeType, audio.Duration, audio.FileSize
	} else {
		voice := msg.Voice
		fileID, mimeType, duration, fileSize = voice.FileID, voice.MimeType, voice.Duration, voice.FileSize
	}

	if duration > cfg.Audio.MaxDuration {
		return nil, ErrAudioTooLong
	}
	if fileSize > int64(cfg.Audio.MaxSize)*1000 {
		return nil, ErrAudioTooLarge
	}

	data, err := c.resolver.download(fileID)
	if err != nil {
		return nil, err
	}
	return BuildAudioParts(data, mimeType, text), nil
}

func (c *Command) generateStream(ctx context.Context, request []ai.Content, maxRetries int, retryDelay time.Duration) (string, error) {
	return retry.Do(ctx, c.Logger, maxRetries, retryDelay, func() (string, error) {
		ch, err := c.client.GenerateStream(ctx, request)
		if err != nil {
			return "", err
		}

		var sb strings.Builder
		for chunk := range ch {
			if chunk.Error != nil {
				if sb.Len() > 0 {
					// Keep what arrived before the stream broke.
					c.Logger.WithError(chunk.Error).Warn("Stream ended early, using partial response")
					return sb.String(), nil
				}
				return "", chunk.Error
			}
			sb.WriteString(chunk.Content)
		}
		return sb.String(), nil
	})
}

// maybeTrim enforces the token budget every trimCheckEvery exchanges. Each
// enforcement costs token-count round-trips, so it must not run per message.
func (c *Command) maybeTrim(ctx context.Context, sess *chatstore.Session, trimCheckEvery int) {
	if trimCheckEvery <= 0 {
		return
	}

	c.mu.Lock()
	c.exchanges[sess.Key()]++
	due := c.exchanges[sess.Key()]%trimCheckEvery == 0
	c.mu.Unlock()
	if !due {
		return
	}

	removed, err := c.window.Enforce(ctx, sess)
	if err != nil {
		c.Logger.WithError(err).Warn("Context window enforcement failed")
		return
	}
	if removed > 0 {
		c.Logger.WithFields(logger.Fields{
			"key":     sess.Key(),
			"removed": removed,
		}).Info("Trimmed conversation history")
	}
}

func (c *Command) failureText(err error) string {
	var aiErr *ai.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.ErrorType() {
		case ai.ErrorTypeRateLimit:
			return c.L("chat.errorRateLimited", nil)
		case ai.ErrorTypeContentPolicy:
			return c.L("chat.errorContentPolicy", nil)
		}
		return c.L("chat.errorBackend", map[string]any{
			"Message": aiErr.Message,
		})
	}
	if errors.Is(err, ai.ErrEmptyResponse) || errors.Is(err, ai.ErrNoTextContent) {
		return c.L("chat.errorNoResponse", nil)
	}
	return c.L("chat.errorGeneric", nil)
}
