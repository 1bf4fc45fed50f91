package youtube

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/akidev/akibot/internal/logger"
)

var (
	ErrNoVideoLanguage = errors.New("video language not available")
	ErrGetSubtitleURL  = errors.New("failed to get subtitle URL")
	ErrFetchTranscript = errors.New("failed to fetch transcript")
)

type SubtitleFetcherer interface {
	Fetch(info *ytdlp.ExtractedInfo) (string, error)
}

// SubtitleFetcher turns a video's automatic captions into plain text. It
// downloads the SRT track for the video's own language and strips the
// sequence numbers and timing lines.
type SubtitleFetcher struct {
	httpClient HTTPClient
	logger     logger.Logger
}

func NewSubtitleFetcher(httpClient HTTPClient, log logger.Logger) *SubtitleFetcher {
	return &SubtitleFetcher{
		httpClient: httpClient,
		logger:     log,
	}
}

func (sf *SubtitleFetcher) Fetch(info *ytdlp.ExtractedInfo) (string, error) {
	if info.Language == nil {
		return "", ErrNoVideoLanguage
	}

	subtitleURL, err := sf.getSubtitleURL(info, *info.Language)
	if err != nil {
		return "", errors.Join(ErrGetSubtitleURL, err)
	}

	text, err := sf.fetchSubtitles(subtitleURL)
	if err != nil {
		return "", errors.Join(ErrFetchTranscript, err)
	}
	return text, nil
}

func (sf *SubtitleFetcher) fetchSubtitles(url string) (string, error) {
	resp, err := sf.httpClient.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return srtToText(string(body)), nil
}

// srtToText drops SRT cue numbers and timing lines, keeping only the caption
// text joined into one line.
func srtToText(srt string) string {
	var out []string
	for _, line := range strings.Split(srt, "\n") {
		if _, err := strconv.Atoi(line); err == nil {
			continue
		}
		if strings.Contains(line, "-->") {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, " ")
}

func (sf *SubtitleFetcher) getSubtitleURL(info *ytdlp.ExtractedInfo, language string) (string, error) {
	if info.Language == nil || info.AutomaticCaptions == nil {
		return "", errors.New("no captions available for this video")
	}

	captions, ok := info.AutomaticCaptions[language]
	if !ok {
		// en-US falls back to en
		base := strings.Split(language, "-")[0]
		captions, ok = info.AutomaticCaptions[base]
	}
	if !ok {
		return "", fmt.Errorf("no captions available for language: %s", language)
	}

	sf.logger.WithFields(logger.Fields{
		"language":           language,
		"available_captions": len(captions),
	}).Debug("Available captions")

	for _, caption := range captions {
		if caption.URL != "" && strings.Contains(strings.ToLower(caption.URL), "fmt=srt") {
			return caption.URL, nil
		}
	}
	return "", errors.New("no subtitle URL found")
}
