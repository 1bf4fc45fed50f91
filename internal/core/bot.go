package core

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/commands/chat"
	"github.com/akidev/akibot/internal/commands/instagram"
	"github.com/akidev/akibot/internal/commands/youtube"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/queue"
	"github.com/akidev/akibot/internal/service"
	"github.com/akidev/akibot/internal/telegram"
)

type Bot struct {
	// mu guards commands: slow-starting commands register from their own
	// goroutines while the update loop is already dispatching.
	mu        sync.RWMutex
	commands  map[string]commands.Command
	logger    logger.Logger
	queue     *queue.Queue
	db        database.Database
	tg        telegram.Client
	cfg       *config.Config
	localizer *service.Localizer
}

func NewBot(
	tg telegram.Client,
	queue *queue.Queue,
	logger logger.Logger,
	db database.Database,
	cfg *config.Config,
	localizer *service.Localizer,
) (*Bot, error) {
	return &Bot{
		commands:  make(map[string]commands.Command),
		tg:        tg,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
		db:        db,
		localizer: localizer,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	u := b.tg.NewUpdate(0, 60, 0)

	handlers := b.GetCommands()
	b.queue.RegisterHandlers(handlers)
	go b.queue.Start(ctx, handlers)

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info("Bot started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			msg := update.Message
			if msg == nil || msg.From == nil {
				continue
			}

			b.syncUser(msg)

			commandText := msg.Text
			if commandText == "" && msg.Caption != "" {
				commandText = msg.Caption
			}

			if !b.cfg.Telegram().IsAllowed(msg.From.ID, msg.Chat.ID) {
				b.logger.WithFields(logger.Fields{
					"user_id":  msg.From.ID,
					"username": msg.From.UserName,
					"chat_id":  msg.Chat.ID,
				}).Warn("Unauthorized access attempt")
				denial := telegram.NewMessage(
					msg.Chat.ID,
					b.localizer.Localize("accessDenied", map[string]any{
						"UserID": msg.From.ID,
					}),
					msg.MessageID,
				)
				if _, err := b.tg.Send(denial); err != nil {
					b.logger.WithError(err).Error("Failed to send denial message")
				}
				continue
			}

			if msg.From.IsBot || msg.ForwardOrigin != nil {
				continue
			}

			if isCommand(commandText) {
				b.dispatchCommand(commandText, update)
				continue
			}

			b.routeContent(commandText, update)
		}
	}
}

// syncUser keeps the durable user record in step with the profile Telegram
// sends on every message.
func (b *Bot) syncUser(msg *telegram.MessageOriginal) {
	user := database.User{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.UserName,
	}

	storedUser, err := b.db.GetUser(msg.From.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			b.logger.WithField("user", user).Info("Store new user")
			if err := b.db.SaveUser(user); err != nil {
				b.logger.WithError(err).WithField("user", user).Error("Error save new user")
			}
		} else {
			b.logger.WithError(err).Error("Error get user by id")
		}
		return
	}

	if !user.Equal(*storedUser) {
		user.PublicID = storedUser.PublicID
		if err := b.db.SaveUser(user); err != nil {
			b.logger.WithError(err).WithField("user", user).Error("Error update user")
		}
	}
}

func (b *Bot) dispatchCommand(commandText string, update telegram.Update) {
	msg := update.Message

	parts := strings.Fields(commandText)
	if len(parts) == 0 {
		return
	}
	cmdParts := strings.Split(strings.TrimPrefix(parts[0], "/"), "@")
	command := cmdParts[0]
	if len(cmdParts) > 1 && !strings.EqualFold(cmdParts[1], b.tg.Self().UserName) {
		return // skip commands addressed to other bots
	}

	cmd := b.findCommand(command)
	if cmd == nil {
		return
	}

	b.logger.WithFields(logger.Fields{
		"command":  command,
		"user_id":  msg.From.ID,
		"username": msg.From.UserName,
		"args":     msg.CommandArguments(),
	}).Info("Handling command")

	go func(cmd commands.Command, update telegram.Update) {
		if err := cmd.Handle(update); err != nil {
			b.logger.WithError(err).Error("Failed to handle command")
			b.sendErrorMessage(err, msg.Chat.ID, msg.MessageID)
		}
	}(cmd, update)
}

// routeContent probes command-less messages for media URLs first and falls
// through to the conversational handler for everything the bot is party to:
// private chats, mentions and replies to its own messages.
func (b *Bot) routeContent(commandText string, update telegram.Update) {
	msg := update.Message

	switch {
	case instagram.ContainsInstagramURL(commandText):
		b.handleAs(instagram.CommandName, update)
		return
	case youtube.IsYoutubeURL(commandText):
		b.handleAs(youtube.CommandName, update)
		return
	}

	botUsername := b.tg.Self().UserName
	replyToSelf := msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == b.tg.Self().ID

	if msg.Chat.Type == "private" || replyToSelf || b.containsBotMention(commandText, botUsername) {
		mention := "@" + botUsername
		update.Message.Text = strings.TrimSpace(strings.ReplaceAll(update.Message.Text, mention, ""))
		update.Message.Caption = strings.TrimSpace(strings.ReplaceAll(update.Message.Caption, mention, ""))
		b.handleAs(chat.CommandName, update)
	}
}

// findCommand resolves a command by name or alias.
func (b *Bot) findCommand(name string) commands.Command {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if cmd, ok := b.commands[name]; ok {
		return cmd
	}
	for _, cmd := range b.commands {
		if slices.Contains(cmd.Aliases(), name) {
			return cmd
		}
	}
	return nil
}

func (b *Bot) handleAs(commandName string, update telegram.Update) {
	b.mu.RLock()
	cmd, ok := b.commands[commandName]
	b.mu.RUnlock()
	if !ok {
		return
	}

	msg := update.Message
	b.logger.WithFields(logger.Fields{
		"command":  commandName,
		"user_id":  msg.From.ID,
		"username": msg.From.UserName,
	}).Info("Routing message to command")

	go func(cmd commands.Command, update telegram.Update) {
		if err := cmd.Handle(update); err != nil {
			b.logger.WithError(err).Error("Failed to handle routed message")
			b.sendErrorMessage(err, msg.Chat.ID, msg.MessageID)
		}
	}(cmd, update)
}

func (b *Bot) RegisterCommand(cmd commands.Command) {
	if cmd == nil {
		b.logger.Error("Attempting to register nil command")
		return
	}

	name := cmd.Name()
	if name == "" {
		b.logger.Error("Attempting to register command with empty name")
		return
	}

	b.logger.WithFields(logger.Fields{
		"command": name,
	}).Debug("Registering command")

	b.mu.Lock()
	b.commands[name] = cmd
	b.mu.Unlock()
}

func isCommand(commandText string) bool {
	return strings.HasPrefix(commandText, "/")
}

func (b *Bot) sendErrorMessage(err error, chatID int64, messageID int) error {
	errorMsg := telegram.NewMessage(
		chatID,
		fmt.Sprintf("%s: %v", b.localizer.Localize("error", nil), err),
		messageID,
	)
	if _, sendErr := b.tg.Send(errorMsg); sendErr != nil {
		b.logger.WithError(sendErr).Error("Failed to send error message")
		return sendErr
	}
	return nil
}

// GetCommands returns a snapshot of the registry; late registrations do not
// show up in it.
func (b *Bot) GetCommands() map[string]commands.Command {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.commands)
}

func (b *Bot) containsBotMention(text string, botUsername string) bool {
	if !strings.Contains(text, "@") {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(botUsername))
}
