package telegram

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/akidev/akibot/internal/logger"
)

var retryAfterRe = regexp.MustCompile(`retry after (\d+)`)

// BotClient adapts the Bot API library to the Client interface the rest of
// the code uses, so commands never see library types directly.
type BotClient struct {
	bot    *tgbotapi.BotAPI
	logger logger.Logger
}

func NewBotClient(bot *tgbotapi.BotAPI, log logger.Logger) Client {
	return &BotClient{
		bot:    bot,
		logger: log,
	}
}

func (c *BotClient) Send(msg MessageConfig) (*Message, error) {
	sent, err := c.bot.Send(msg.ToChattable())
	if err != nil {
		return nil, err
	}
	return adaptMessage(&sent), nil
}

// SendWithRetry resends after the wait Telegram names in its 429 responses.
// Any other error fails immediately.
func (c *BotClient) SendWithRetry(msg MessageConfig, maxRetryCount int) (*Message, error) {
	maxRetries := max(maxRetryCount, 1)

	for attempt := 0; ; attempt++ {
		sent, err := c.bot.Send(msg.ToChattable())
		if err == nil {
			return adaptMessage(&sent), nil
		}
		if !strings.Contains(err.Error(), "Too Many Requests: retry after") {
			return nil, err
		}
		if attempt >= maxRetries {
			c.logger.Error("Max retries reached for rate limited message")
			return nil, err
		}

		wait := time.Duration(extractRetryAfter(err.Error())+2) * time.Second
		c.logger.WithFields(logger.Fields{
			"wait_time": wait,
			"attempt":   attempt + 1,
		}).Warn("Rate limit hit, waiting before retry")
		time.Sleep(wait)
	}
}

// SendSplit chunks text that exceeds the Telegram message limit and sends
// every chunk as a separate reply.
func (c *BotClient) SendSplit(chatID int64, text string, replyTo int, parseMode ParseMode) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		msg := NewMessage(chatID, chunk, replyTo)
		msg.ParseMode = parseMode
		if _, err := c.SendWithRetry(msg, 3); err != nil {
			return err
		}
		// only the first chunk replies to the source message
		replyTo = 0
	}
	return nil
}

func (c *BotClient) SendMediaGroup(mediaGroup MediaGroupMessage) (*tgbotapi.APIResponse, error) {
	return c.Request(mediaGroup)
}

func (c *BotClient) GetFileURL(fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", err
	}
	return file.Link(c.bot.Token), nil
}

func (c *BotClient) EscapeText(text string) string {
	return tgbotapi.EscapeText(ModeMarkdownV2, text)
}

func (c *BotClient) GetUpdatesChan(config UpdateConfig) <-chan tgbotapi.Update {
	return c.bot.GetUpdatesChan(tgbotapi.UpdateConfig{
		Offset:  config.Offset,
		Limit:   config.Limit,
		Timeout: config.Timeout,
	})
}

func (c *BotClient) Request(message MessageConfig) (*tgbotapi.APIResponse, error) {
	return c.bot.Request(message.ToChattable())
}

func (c *BotClient) RequestRaw(message tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.bot.Request(message)
}

func (c *BotClient) SendChatAction(chatID int64, action ChatAction) error {
	_, err := c.bot.Request(tgbotapi.NewChatAction(chatID, string(action)))
	return err
}

func (c *BotClient) NewUpdate(offset, timeout, limit int) UpdateConfig {
	return UpdateConfig{
		Offset:  offset,
		Limit:   limit,
		Timeout: timeout,
	}
}

func (c *BotClient) DeleteMessage(chatID int64, messageID int) (*tgbotapi.APIResponse, error) {
	return c.RequestRaw(tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (c *BotClient) Self() User {
	return adaptUser(&c.bot.Self)
}

func extractRetryAfter(errMsg string) int {
	matches := retryAfterRe.FindStringSubmatch(errMsg)
	if len(matches) < 2 {
		return 0
	}
	seconds, _ := strconv.Atoi(matches[1])
	return seconds
}

func adaptMessage(msg *tgbotapi.Message) *Message {
	if msg == nil {
		return nil
	}
	return &Message{
		MessageID:    msg.MessageID,
		Chat:         adaptChat(&msg.Chat),
		Text:         msg.Text,
		Caption:      msg.Caption,
		MediaGroupID: msg.MediaGroupID,
		From:         adaptUser(msg.From),
		ReplyTo:      adaptMessage(msg.ReplyToMessage),
		Command:      msg.Command(),
	}
}

func adaptUser(user *tgbotapi.User) User {
	if user == nil {
		return User{}
	}
	return User{
		ID:        int64(user.ID),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		UserName:  user.UserName,
	}
}

func adaptChat(chat *tgbotapi.Chat) Chat {
	if chat == nil {
		return Chat{}
	}
	return Chat{
		ID:   chat.ID,
		Type: chat.Type,
	}
}
