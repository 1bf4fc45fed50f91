package chat

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

type ReplyKind string

const (
	ReplyText                ReplyKind = "text"
	ReplyImage               ReplyKind = "image"
	ReplyDocument            ReplyKind = "document"
	ReplyUnsupportedDocument ReplyKind = "unsupported_document"
	ReplyAudio               ReplyKind = "audio"
	ReplyError               ReplyKind = "error"
)

// ReplyContext describes the message a user replied to, reduced to content
// blocks the generative backend can consume.
type ReplyContext struct {
	Role string
	Kind ReplyKind
	Text string
	// Extra binary blocks (image bytes) that ride along with the text.
	Inline []ai.Part
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// chatConfig is the slice of configuration the resolver reads.
type chatConfig interface {
	GetChatCommandConfig() *config.ChatCommandConfig
}

// ReplyResolver reconstructs replied-to content. Resolution failures are
// folded into the context as placeholders, never propagated: a broken reply
// must not abort handling of the new message.
type ReplyResolver struct {
	tg     telegram.Client
	http   HTTPDoer
	cfg    chatConfig
	logger logger.Logger
}

func NewReplyResolver(tg telegram.Client, httpClient HTTPDoer, cfg chatConfig, l logger.Logger) *ReplyResolver {
	return &ReplyResolver{
		tg:     tg,
		http:   httpClient,
		cfg:    cfg,
		logger: l,
	}
}

// Resolve returns nil when msg is not a reply.
func (r *ReplyResolver) Resolve(msg *tgbotapi.Message) *ReplyContext {
	replied := msg.ReplyToMessage
	if replied == nil {
		return nil
	}

	role := ai.RoleUser
	if replied.From != nil && replied.From.ID == r.tg.Self().ID {
		role = ai.RoleModel
	}

	switch {
	case len(replied.Photo) > 0:
		return r.resolvePhoto(replied, role)
	case replied.Document != nil:
		return r.resolveDocument(replied, role)
	case replied.Audio != nil || replied.Voice != nil:
		return r.resolveAudio(replied, role)
	default:
		text := replied.Text
		if text == "" {
			text = replied.Caption
		}
		return &ReplyContext{Role: role, Kind: ReplyText, Text: text}
	}
}

func (r *ReplyResolver) resolvePhoto(replied *tgbotapi.Message, role string) *ReplyContext {
	// Telegram orders sizes ascending, the last one is the original-ish.
	photo := replied.Photo[len(replied.Photo)-1]

	data, err := r.download(photo.FileID)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to fetch replied photo")
		return errorContext(role, "could not retrieve the replied image")
	}

	parts, err := BuildImageParts(data, replied.Caption)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to encode replied photo")
		return errorContext(role, "could not decode the replied image")
	}

	return &ReplyContext{
		Role:   role,
		Kind:   ReplyImage,
		Text:   replied.Caption,
		Inline: parts[1:],
	}
}

func (r *ReplyResolver) resolveDocument(replied *tgbotapi.Message, role string) *ReplyContext {
	doc := replied.Document
	ext := strings.ToLower(filepath.Ext(doc.FileName))

	if !r.cfg.GetChatCommandConfig().Files.IsAllowedExtension(ext) {
		return &ReplyContext{
			Role: role,
			Kind: ReplyUnsupportedDocument,
			Text: fmt.Sprintf("[unsupported document: %s]", doc.FileName),
		}
	}

	data, err := r.download(doc.FileID)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to fetch replied document")
		return errorContext(role, "could not retrieve the replied document")
	}

	text, err := BuildDocumentText(data)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to decode replied document")
		return errorContext(role, "could not decode the replied document as text")
	}

	return &ReplyContext{Role: role, Kind: ReplyDocument, Text: text}
}

func (r *ReplyResolver) resolveAudio(replied *tgbotapi.Message, role string) *ReplyContext {
	var duration int
	var fileSize int64
	mimeType := defaultAudioMIME

	if audio := replied.Audio; audio != nil {
		duration = audio.Duration
		fileSize = audio.FileSize
		if audio.MimeType != "" {
			mimeType = audio.MimeType
		}
	} else if voice := replied.Voice; voice != nil {
		duration = voice.Duration
		fileSize = voice.FileSize
		if voice.MimeType != "" {
			mimeType = voice.MimeType
		}
	}

	return &ReplyContext{
		Role: role,
		Kind: ReplyAudio,
		Text: fmt.Sprintf("[audio message: duration=%ds size=%dB mime=%s]", duration, fileSize, mimeType),
	}
}

func (r *ReplyResolver) download(fileID string) ([]byte, error) {
	fileURL, err := r.tg.GetFileURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file URL: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading file", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func errorContext(role, diagnostic string) *ReplyContext {
	return &ReplyContext{
		Role: role,
		Kind: ReplyError,
		Text: fmt.Sprintf("[%s]", diagnostic),
	}
}

// FormatReplyContext folds the reply context and the new message into the
// content blocks for the next user turn. The original sender's role labels
// the quoted content; image bytes ride along as separate inline blocks.
func FormatReplyContext(rc *ReplyContext, newText string) []ai.Part {
	var sb strings.Builder
	fmt.Fprintf(&sb, "'role': '%s'\n", rc.Role)
	fmt.Fprintf(&sb, "'%s': %s\n\n", rc.Kind, rc.Text)
	fmt.Fprintf(&sb, "'message': %s", newText)

	parts := []ai.Part{{Text: sb.String()}}
	return append(parts, rc.Inline...)
}
