package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/google/uuid"
	"github.com/lrstanley/go-ytdlp"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

const CommandName = "ytb2mp3"

var youtubeRegex = regexp.MustCompile(`^(https?:\/\/)?(www\.)?(youtube\.com|youtu\.be)\/.+$`)

// IsYoutubeURL reports whether the text looks like a YouTube link.
func IsYoutubeURL(text string) bool {
	return youtubeRegex.MatchString(strings.TrimSpace(text))
}

type Command struct {
	*base.Command
}

func New(di *di.Container) (*Command, error) {
	_, err := ytdlp.Install(context.TODO(), nil)
	if err != nil {
		return nil, err
	}
	cmd := &Command{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd, nil
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"mp3", "audio"}
}

func (c *Command) Execute(update telegram.Update) error {
	text := update.Message.Text
	urls := c.ExtractURLsFromEntities(text, update.Message.Entities)
	if len(urls) == 0 {
		urls = c.ExtractURLsFromEntities(update.Message.Caption, update.Message.CaptionEntities)
		if len(urls) == 0 && update.Message.ReplyToMessage != nil {
			urls = c.ExtractURLsFromEntities(update.Message.ReplyToMessage.Text, update.Message.ReplyToMessage.Entities)
			if len(urls) == 0 {
				urls = c.ExtractURLsFromEntities(update.Message.ReplyToMessage.Caption, update.Message.ReplyToMessage.CaptionEntities)
			}
		}
	}
	chatID := update.Message.Chat.ID
	messageID := update.Message.MessageID
	if len(urls) == 0 {
		return c.handleError(chatID, 0, messageID, errors.New(c.L("youtube.errorURLNotFound", nil)))
	}
	url, err := cleanURL(urls[0])
	if err != nil {
		return c.handleError(chatID, 0, messageID, errors.New(c.L("youtube.errorIncorrectURL", nil)))
	}

	tempDirectory := strings.TrimSuffix(c.Cfg.Youtube().TempDirectory, "/")
	if tempDirectory != "" {
		tempDirectory += "/"
	} else {
		tempDirectory = os.TempDir() + "/"
	}

	// Random name avoids collisions when the same video is queued twice.
	outputName := uuid.NewString()

	dl := ytdlp.New().
		ExtractAudio().
		AudioFormat("mp3").
		FormatSort("ext:m4a").
		Output(outputName + ".%(ext)s").
		SetWorkDir(tempDirectory).
		MaxFileSize(c.Cfg.Youtube().MaxSize).
		AbortOnError().
		PrintJSON()

	if proxy := c.Cfg.HTTP().GetProxy(); proxy != "" {
		dl.Proxy(proxy)
	}

	startMessage := telegram.NewMessage(
		chatID,
		c.L("youtube.download.start", nil),
		messageID,
	)
	msg, err := c.Tg.Send(startMessage)
	if err != nil {
		return fmt.Errorf("failed to send message: %v", err)
	}
	startMessageID := msg.MessageID

	c.Logger.WithFields(logger.Fields{
		"url":       url,
		"directory": tempDirectory,
	}).Info("Started audio extraction...")
	output, err := dl.Run(context.TODO(), url)
	if err != nil {
		return c.handleError(
			chatID,
			startMessageID,
			messageID,
			fmt.Errorf(c.L("youtube.errorFailDownloadAudio", nil), err),
		)
	}

	files, err := output.GetExtractedInfo()
	if err != nil {
		return c.handleError(
			chatID,
			startMessageID,
			messageID,
			fmt.Errorf(c.L("youtube.errorFailGetFileInfo", nil), err),
		)
	}

	if len(files) == 0 || files[0] == nil {
		return c.handleError(
			chatID,
			startMessageID,
			messageID,
			errors.New(c.L("youtube.errorNoAudioFilesFound", nil)),
		)
	}

	file := files[0]
	filePath := tempDirectory + outputName + ".mp3"

	defer func() {
		if err := os.Remove(filePath); err != nil {
			c.Logger.WithFields(logger.Fields{
				"file":  filePath,
				"error": err,
			}).Error("Failed to remove audio file")
		}
	}()

	title := ""
	if file.Title != nil {
		title = *file.Title
	}
	performer := ""
	if file.Uploader != nil {
		performer = *file.Uploader
	}

	var fileSize int64
	fileSizeStr := c.L("youtube.unknownSize", nil)
	if fileInfo, err := os.Stat(filePath); err == nil {
		fileSize = fileInfo.Size()
		fileSizeStr = formatFileSize(fileSize)
	}

	maxSize, err := parseSize(c.Cfg.Youtube().MaxSize)
	if err == nil && maxSize > 0 && fileSize > maxSize {
		text := c.L("youtube.fileTooBig", map[string]any{
			"Size":    fileSizeStr,
			"MaxSize": c.Cfg.Youtube().MaxSize,
			"Caption": title,
		})
		message := telegram.NewMessage(chatID, text, messageID)
		message.LinkPreviewDisabled = true
		if _, err := c.Tg.Send(message); err != nil {
			return c.handleError(chatID, startMessageID, messageID, err)
		}
		_, _ = c.Tg.DeleteMessage(chatID, startMessageID)
		return nil
	}

	statusText := c.L("youtube.uploadAudioInfo", map[string]any{
		"FileSize": fileSizeStr,
	})
	editedMessage := telegram.NewEditMessageText(chatID, startMessageID, statusText)
	if _, err := c.Tg.Send(&editedMessage); err != nil {
		c.Logger.WithError(err).Error("error send message with file uploading status")
	}

	audio := telegram.NewAudioMessage(chatID, tgbotapi.FilePath(filePath), messageID)
	audio.Title = title
	audio.Performer = performer

	c.Logger.WithFields(logger.Fields{
		"url":   url,
		"size":  fileSizeStr,
		"title": title,
	}).Info("Started upload audio...")
	c.Tg.SendChatAction(chatID, telegram.ActionUploadAudio)
	if _, err := c.Tg.Send(audio); err != nil {
		return c.handleError(chatID, startMessageID, messageID, fmt.Errorf("failed to send audio: %w", err))
	}

	if _, err := c.Tg.DeleteMessage(chatID, startMessageID); err != nil {
		c.Logger.WithError(err).WithFields(logger.Fields{
			"chatID":    chatID,
			"messageID": startMessageID,
		}).Error("failed to delete message")
	}

	return nil
}

func (c *Command) handleError(chatID int64, startMessageID int, messageID int, orErr error) error {
	if startMessageID != 0 {
		if _, err := c.Tg.DeleteMessage(chatID, startMessageID); err != nil {
			c.Logger.WithError(err).WithFields(logger.Fields{
				"chatID":    chatID,
				"messageID": startMessageID,
			}).Error("failed to delete message")
		}
	}
	text := capitalizeFirst(orErr.Error())
	answer := telegram.NewMessage(chatID, text, messageID)
	answer.LinkPreviewDisabled = true
	if _, err := c.Tg.Send(answer); err != nil {
		c.Logger.WithError(err).WithFields(logger.Fields{
			"text": text,
		}).Error("failed to send message")
	}
	return orErr
}

func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func cleanURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.RawQuery != "" {
		query := u.Query()
		query.Del("si")      // YouTube session ID
		query.Del("pp")      // Paid promotion
		query.Del("feature") // source
		query.Del("clid")
		query.Del("rid")
		query.Del("referrer_clid")
		u.RawQuery = query.Encode()
	}
	u.Fragment = ""
	return u.String(), nil
}

func capitalizeFirst(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return 0, nil
	}

	var multiplier float64 = 1
	switch {
	case strings.HasSuffix(sizeStr, "K"):
		multiplier = 1024
		sizeStr = strings.TrimSuffix(sizeStr, "K")
	case strings.HasSuffix(sizeStr, "M"):
		multiplier = 1024 * 1024
		sizeStr = strings.TrimSuffix(sizeStr, "M")
	case strings.HasSuffix(sizeStr, "G"):
		multiplier = 1024 * 1024 * 1024
		sizeStr = strings.TrimSuffix(sizeStr, "G")
	}

	size, err := strconv.ParseFloat(sizeStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %v", err)
	}

	return int64(size * multiplier), nil
}
