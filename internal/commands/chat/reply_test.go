package chat

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

const botUserID int64 = 777

type stubTelegramClient struct {
	telegram.Client
}

func (s *stubTelegramClient) Self() telegram.User {
	return telegram.User{ID: botUserID, UserName: "akibot"}
}

func (s *stubTelegramClient) GetFileURL(fileID string) (string, error) {
	return "https://files.invalid/" + fileID, nil
}

type stubChatConfig struct {
	files config.ChatFilesOptions
}

func (s *stubChatConfig) GetChatCommandConfig() *config.ChatCommandConfig {
	return &config.ChatCommandConfig{Files: s.files}
}

// stubDoer serves the same payload for every download and counts calls.
type stubDoer struct {
	body  []byte
	err   error
	calls int
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(d.body)),
	}, nil
}

func newTestResolver() *ReplyResolver {
	return NewReplyResolver(&stubTelegramClient{}, nil, &stubChatConfig{}, logger.NewTestLogger())
}

func newDocResolver(doer HTTPDoer, extensions ...string) *ReplyResolver {
	cfg := &stubChatConfig{files: config.ChatFilesOptions{
		Enabled:    true,
		Extensions: extensions,
	}}
	return NewReplyResolver(&stubTelegramClient{}, doer, cfg, logger.NewTestLogger())
}

func replyTo(replied *tgbotapi.Message) *tgbotapi.Message {
	return &tgbotapi.Message{ReplyToMessage: replied}
}

func TestResolve(t *testing.T) {
	r := newTestResolver()

	t.Run("non-reply yields nil", func(t *testing.T) {
		assert.Nil(t, r.Resolve(&tgbotapi.Message{Text: "hello"}))
	})

	t.Run("reply to the bot is attributed to the model", func(t *testing.T) {
		rc := r.Resolve(replyTo(&tgbotapi.Message{
			From: &tgbotapi.User{ID: botUserID},
			Text: "42",
		}))
		require.NotNil(t, rc)
		assert.Equal(t, ai.RoleModel, rc.Role)
		assert.Equal(t, ReplyText, rc.Kind)
		assert.Equal(t, "42", rc.Text)
	})

	t.Run("reply to another user is attributed to the user", func(t *testing.T) {
		rc := r.Resolve(replyTo(&tgbotapi.Message{
			From: &tgbotapi.User{ID: 12345},
			Text: "what is the answer?",
		}))
		require.NotNil(t, rc)
		assert.Equal(t, ai.RoleUser, rc.Role)
	})

	t.Run("caption stands in for missing text", func(t *testing.T) {
		rc := r.Resolve(replyTo(&tgbotapi.Message{
			From:    &tgbotapi.User{ID: 12345},
			Caption: "look at this",
		}))
		require.NotNil(t, rc)
		assert.Equal(t, "look at this", rc.Text)
	})

	t.Run("audio reply is summarized, not downloaded", func(t *testing.T) {
		rc := r.Resolve(replyTo(&tgbotapi.Message{
			From: &tgbotapi.User{ID: 12345},
			Voice: &tgbotapi.Voice{
				Duration: 12,
				FileSize: 34567,
				MimeType: "audio/ogg",
			},
		}))
		require.NotNil(t, rc)
		assert.Equal(t, ReplyAudio, rc.Kind)
		assert.Equal(t, "[audio message: duration=12s size=34567B mime=audio/ogg]", rc.Text)
	})
}

func TestResolveDocument(t *testing.T) {
	docReply := func(fileName string) *tgbotapi.Message {
		return replyTo(&tgbotapi.Message{
			From:     &tgbotapi.User{ID: 12345},
			Document: &tgbotapi.Document{FileID: "doc-1", FileName: fileName},
		})
	}

	t.Run("allowed extension is decoded to text", func(t *testing.T) {
		doer := &stubDoer{body: []byte("meeting notes")}
		rc := newDocResolver(doer, ".txt", ".md").Resolve(docReply("notes.txt"))

		require.NotNil(t, rc)
		assert.Equal(t, ReplyDocument, rc.Kind)
		assert.Equal(t, "meeting notes", rc.Text)
	})

	t.Run("extension check is case-insensitive", func(t *testing.T) {
		doer := &stubDoer{body: []byte("readme")}
		rc := newDocResolver(doer, ".md").Resolve(docReply("README.MD"))

		require.NotNil(t, rc)
		assert.Equal(t, ReplyDocument, rc.Kind)
	})

	t.Run("unsupported extension becomes a placeholder without download", func(t *testing.T) {
		doer := &stubDoer{body: []byte{0x4d, 0x5a}}
		rc := newDocResolver(doer, ".txt").Resolve(docReply("tool.exe"))

		require.NotNil(t, rc)
		assert.Equal(t, ReplyUnsupportedDocument, rc.Kind)
		assert.Equal(t, "[unsupported document: tool.exe]", rc.Text)
		assert.Equal(t, 0, doer.calls)
	})

	t.Run("binary content folds into an error placeholder", func(t *testing.T) {
		doer := &stubDoer{body: []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x00, 0x00, 0x00}}
		rc := newDocResolver(doer, ".txt").Resolve(docReply("data.txt"))

		require.NotNil(t, rc)
		assert.Equal(t, ReplyError, rc.Kind)
		assert.Equal(t, "[could not decode the replied document as text]", rc.Text)
	})

	t.Run("download failure folds into an error placeholder", func(t *testing.T) {
		doer := &stubDoer{err: errors.New("connection reset")}
		rc := newDocResolver(doer, ".txt").Resolve(docReply("notes.txt"))

		require.NotNil(t, rc)
		assert.Equal(t, ReplyError, rc.Kind)
		assert.Equal(t, "[could not retrieve the replied document]", rc.Text)
	})
}

func TestFormatReplyContext(t *testing.T) {
	t.Run("quoted answer and new question both survive", func(t *testing.T) {
		rc := &ReplyContext{Role: ai.RoleModel, Kind: ReplyText, Text: "42"}

		parts := FormatReplyContext(rc, "why?")
		require.Len(t, parts, 1)

		text := parts[0].Text
		assert.Contains(t, text, "'role': 'model'")
		assert.Contains(t, text, "'text': 42")
		assert.Contains(t, text, "'message': why?")
	})

	t.Run("inline blocks ride along after the text", func(t *testing.T) {
		rc := &ReplyContext{
			Role:   ai.RoleUser,
			Kind:   ReplyImage,
			Text:   "a cat",
			Inline: []ai.Part{{InlineData: &ai.InlineData{MimeType: "image/jpeg", Data: "QUJD"}}},
		}

		parts := FormatReplyContext(rc, "describe it")
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0].Text, "'image': a cat")
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	})

	t.Run("error context is forwarded as a placeholder", func(t *testing.T) {
		rc := errorContext(ai.RoleUser, "could not retrieve the replied image")

		parts := FormatReplyContext(rc, "what was that?")
		require.Len(t, parts, 1)
		assert.Contains(t, parts[0].Text, "'error': [could not retrieve the replied image]")
	})
}
