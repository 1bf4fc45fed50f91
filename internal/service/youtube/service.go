package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/akidev/akibot/internal/logger"
)

var (
	ErrExtractYoutubeData = errors.New("failed to extract youtube data")
	ErrExtractVideoInfo   = errors.New("failed to extract video info")
	ErrNoVideoInfo        = errors.New("no video info available")
)

type ContentExtractor interface {
	Extract(ctx context.Context, url string, options FetchOptions) (*ytdlp.Result, error)
}

type Config struct {
	Proxy string
}

type Service struct {
	config           Config
	logger           logger.Logger
	contentExtractor ContentExtractor
	subtitleFetcher  *SubtitleFetcher
}

func NewService(l logger.Logger, httpClient HTTPClient, config Config) Service {
	return Service{
		config:           config,
		logger:           l,
		contentExtractor: &YtdlpContentExtractor{},
		subtitleFetcher:  NewSubtitleFetcher(httpClient, l),
	}
}

type VideoData struct {
	LikeCount    *float64
	CommentCount *float64
	ViewCount    *float64
	UploadedAt   *time.Time
	Title        string
	Transcript   string
}

// FetchTranscript extracts video metadata plus the auto-generated captions
// as plain text. Nothing is downloaded.
func (s *Service) FetchTranscript(ctx context.Context, url string) (*VideoData, error) {
	output, err := s.contentExtractor.Extract(ctx, url, FetchOptions{
		SkipDownload: true,
		PrintJSON:    true,
		Proxy:        s.config.Proxy,
	})
	if err != nil {
		return nil, errors.Join(ErrExtractYoutubeData, err)
	}

	info, err := output.GetExtractedInfo()
	if err != nil {
		return nil, errors.Join(ErrExtractVideoInfo, err)
	}

	if len(info) == 0 || info[0] == nil {
		return nil, ErrNoVideoInfo
	}

	file := info[0]
	result := extractVideoInfo(file)

	content, err := s.subtitleFetcher.Fetch(file)
	if err != nil {
		return nil, err
	}
	result.Transcript = content

	return result, nil
}

func extractVideoInfo(info *ytdlp.ExtractedInfo) *VideoData {
	result := &VideoData{
		LikeCount:    info.LikeCount,
		CommentCount: info.CommentCount,
		ViewCount:    info.ViewCount,
	}

	if info.Title != nil {
		result.Title = *info.Title
	}
	if timestamp := info.Timestamp; timestamp != nil {
		val := time.Unix(int64(*timestamp), 0)
		result.UploadedAt = &val
	}

	return result
}

func FormatCount(count float64) string {
	switch {
	case count < 1000:
		return fmt.Sprintf("%.0f", count)
	case count < 10000:
		return fmt.Sprintf("%.1fK", count/1000)
	case count < 1000000:
		return fmt.Sprintf("%.0fK", count/1000)
	case count < 10000000:
		return fmt.Sprintf("%.1fM", count/1000000)
	default:
		return fmt.Sprintf("%.0fM", count/1000000)
	}
}
