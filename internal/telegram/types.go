package telegram

import (
	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

type ParseMode = string

const (
	ModeMarkdownV2 = "MarkdownV2"
	ModeMarkdown   = "Markdown"
)

// MaxMessageLength is the Telegram hard limit for a single text message.
const MaxMessageLength = 4096

type (
	MessageOriginal = tgbotapi.Message
	Update          = tgbotapi.Update
	FileURL         = tgbotapi.FileURL
	FileBytes       = tgbotapi.FileBytes
	MessageEntity   = tgbotapi.MessageEntity
	Chattable       = tgbotapi.Chattable
	RequestFileData = tgbotapi.RequestFileData
)

type Message struct {
	MessageID    int
	Chat         Chat
	Text         string
	From         User
	ReplyTo      *Message
	Caption      string
	MediaGroupID string
	Command      string
}

type User struct {
	ID        int64
	FirstName string
	LastName  string
	UserName  string
}

type Chat struct {
	ID   int64
	Type string
}

type MessageConfig interface {
	ToChattable() tgbotapi.Chattable
}

type TextMessage struct {
	ChatID              int64
	Text                string
	ReplyTo             int
	LinkPreviewDisabled bool
	ParseMode           ParseMode
}

func NewMessage(chatID int64, text string, replyTo int) TextMessage {
	return TextMessage{
		ChatID:              chatID,
		Text:                text,
		LinkPreviewDisabled: false,
		ReplyTo:             replyTo,
	}
}

func (m TextMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyParameters.MessageID = m.ReplyTo
	msg.ParseMode = m.ParseMode
	msg.LinkPreviewOptions.IsDisabled = m.LinkPreviewDisabled
	return msg
}

type PhotoMessage struct {
	ChatID    int64
	Photo     RequestFileData
	Caption   string
	ReplyTo   int
	ParseMode string
}

func NewPhotoMessage(chatID int64, photo RequestFileData, caption string, replyTo int) PhotoMessage {
	return PhotoMessage{
		ChatID:  chatID,
		Photo:   photo,
		Caption: caption,
		ReplyTo: replyTo,
	}
}

func (m PhotoMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewPhoto(m.ChatID, m.Photo)
	msg.Caption = m.Caption
	msg.ReplyParameters.MessageID = m.ReplyTo
	msg.ParseMode = m.ParseMode
	return msg
}

type VideoMessage struct {
	ChatID    int64
	Video     RequestFileData
	Caption   string
	ReplyTo   int
	ParseMode string
}

func NewVideoMessage(chatID int64, video RequestFileData, caption string, replyTo int) VideoMessage {
	return VideoMessage{
		ChatID:  chatID,
		Video:   video,
		Caption: caption,
		ReplyTo: replyTo,
	}
}

func (m VideoMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewVideo(m.ChatID, m.Video)
	msg.Caption = m.Caption
	msg.ReplyParameters.MessageID = m.ReplyTo
	msg.ParseMode = m.ParseMode
	return msg
}

type AudioMessage struct {
	ChatID    int64
	Audio     RequestFileData
	Caption   string
	Title     string
	Performer string
	ReplyTo   int
}

func NewAudioMessage(chatID int64, audio RequestFileData, replyTo int) AudioMessage {
	return AudioMessage{
		ChatID:  chatID,
		Audio:   audio,
		ReplyTo: replyTo,
	}
}

func (m AudioMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewAudio(m.ChatID, m.Audio)
	msg.Caption = m.Caption
	msg.Title = m.Title
	msg.Performer = m.Performer
	msg.ReplyParameters.MessageID = m.ReplyTo
	return msg
}

type DocumentMessage struct {
	ChatID   int64
	Document RequestFileData
	Caption  string
	ReplyTo  int
}

func NewDocumentMessage(chatID int64, document RequestFileData, replyTo int) DocumentMessage {
	return DocumentMessage{
		ChatID:   chatID,
		Document: document,
		ReplyTo:  replyTo,
	}
}

func (m DocumentMessage) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewDocument(m.ChatID, m.Document)
	msg.Caption = m.Caption
	msg.ReplyParameters.MessageID = m.ReplyTo
	return msg
}

type EditMessageTextConfig struct {
	ChatID              int64
	MessageID           int
	Text                string
	ParseMode           string
	LinkPreviewDisabled bool
}

func NewEditMessageText(chatID int64, messageID int, text string) EditMessageTextConfig {
	return EditMessageTextConfig{
		ChatID:              chatID,
		MessageID:           messageID,
		Text:                text,
		LinkPreviewDisabled: false,
	}
}

func (m EditMessageTextConfig) ToChattable() tgbotapi.Chattable {
	msg := tgbotapi.NewEditMessageText(m.ChatID, m.MessageID, m.Text)
	msg.LinkPreviewOptions.IsDisabled = m.LinkPreviewDisabled
	msg.ParseMode = m.ParseMode
	return msg
}

type InputMedia interface {
	ToMedia() tgbotapi.InputMedia
}

type PhotoMedia struct {
	Media     RequestFileData
	Caption   string
	ParseMode string
}

func NewPhotoMedia(media RequestFileData) PhotoMedia {
	return PhotoMedia{
		Media: media,
	}
}

func (p PhotoMedia) ToMedia() tgbotapi.InputMedia {
	media := tgbotapi.NewInputMediaPhoto(p.Media)
	media.Caption = p.Caption
	media.ParseMode = p.ParseMode
	return &media
}

type VideoMedia struct {
	Media     RequestFileData
	Caption   string
	ParseMode string
	Width     int
	Height    int
}

func NewVideoMedia(media RequestFileData) VideoMedia {
	return VideoMedia{
		Media: media,
	}
}

func (v VideoMedia) ToMedia() tgbotapi.InputMedia {
	media := tgbotapi.NewInputMediaVideo(v.Media)
	media.Caption = v.Caption
	media.ParseMode = v.ParseMode
	if v.Width != 0 && v.Height != 0 {
		media.Width = v.Width
		media.Height = v.Height
	}
	return &media
}

type MediaGroupMessage struct {
	ChatID  int64
	Media   []InputMedia
	ReplyTo int
}

func NewMediaGroupMessage(chatID int64, media []InputMedia) MediaGroupMessage {
	return MediaGroupMessage{
		ChatID: chatID,
		Media:  media,
	}
}

func (m MediaGroupMessage) ToChattable() tgbotapi.Chattable {
	media := make([]tgbotapi.InputMedia, 0, len(m.Media))
	for _, item := range m.Media {
		media = append(media, item.ToMedia())
	}

	return tgbotapi.NewMediaGroup(m.ChatID, media)
}

type UpdateConfig struct {
	Offset  int
	Limit   int
	Timeout int
}

type ChatAction string

const (
	ActionTyping        ChatAction = "typing"
	ActionUploadPhoto   ChatAction = "upload_photo"
	ActionUploadVideo   ChatAction = "upload_video"
	ActionUploadAudio   ChatAction = "upload_voice"
	ActionUploadingFile ChatAction = "upload_document"
)

type Client interface {
	Send(msg MessageConfig) (*Message, error)
	SendWithRetry(msg MessageConfig, maxRetryCount int) (*Message, error)
	SendSplit(chatID int64, text string, replyTo int, parseMode ParseMode) error
	DeleteMessage(chatID int64, messageID int) (*tgbotapi.APIResponse, error)
	SendMediaGroup(mediaGroup MediaGroupMessage) (*tgbotapi.APIResponse, error)
	GetFileURL(fileID string) (string, error)
	EscapeText(text string) string
	GetUpdatesChan(config UpdateConfig) <-chan tgbotapi.Update
	Request(message MessageConfig) (*tgbotapi.APIResponse, error)
	RequestRaw(message tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendChatAction(chatID int64, action ChatAction) error
	NewUpdate(offset, timeout, limit int) UpdateConfig
	Self() User
}
