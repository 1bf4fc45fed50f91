package youtube

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"

	"github.com/akidev/akibot/internal/logger"
)

type stubHTTPClient struct {
	resp *http.Response
	err  error
}

func (c *stubHTTPClient) Get(url string) (*http.Response, error) {
	return c.resp, c.err
}

func createHTTPResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func stringPtr(s string) *string {
	return &s
}

func captionsInfo(lang string, captions map[string][]*ytdlp.ExtractedSubtitle) *ytdlp.ExtractedInfo {
	return &ytdlp.ExtractedInfo{
		ExtractedFormat: &ytdlp.ExtractedFormat{
			Language: stringPtr(lang),
		},
		AutomaticCaptions: captions,
	}
}

func TestSubtitleFetcher_fetchSubtitles(t *testing.T) {
	tests := []struct {
		name           string
		srtContent     string
		expectedText   string
		expectedError  bool
		serverResponse int
	}{
		{
			name: "successful SRT to text conversion",
			srtContent: `1
00:00:00,000 --> 00:00:02,000
Hello world!

2
00:00:02,000 --> 00:00:04,000
This is a test.

3
00:00:04,000 --> 00:00:06,000
Multiple lines
in one subtitle.`,
			expectedText:   "Hello world! This is a test. Multiple lines in one subtitle.",
			serverResponse: http.StatusOK,
		},
		{
			name:           "empty SRT file",
			srtContent:     "",
			expectedText:   "",
			serverResponse: http.StatusOK,
		},
		{
			name:           "SRT with only timestamps and numbers",
			srtContent:     "1\n00:00:00,000 --> 00:00:02,000\n\n2\n00:00:02,000 --> 00:00:04,000",
			expectedText:   "",
			serverResponse: http.StatusOK,
		},
		{
			name:           "HTTP error response",
			expectedError:  true,
			serverResponse: http.StatusNotFound,
		},
		{
			name: "SRT with extra whitespace",
			srtContent: `1
00:00:00,000 --> 00:00:02,000
  Hello world!

2
00:00:02,000 --> 00:00:04,000
    Test with spaces  `,
			expectedText:   "Hello world! Test with spaces",
			serverResponse: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.serverResponse != http.StatusOK {
					w.WriteHeader(tt.serverResponse)
					return
				}
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.srtContent))
			}))
			defer server.Close()

			sf := &SubtitleFetcher{
				httpClient: server.Client(),
				logger:     logger.NewTestLogger(),
			}

			result, err := sf.fetchSubtitles(server.URL)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedText, result)
			}
		})
	}
}

func TestSubtitleFetcher_getSubtitleURL(t *testing.T) {
	srtCaption := &ytdlp.ExtractedSubtitle{
		Name: stringPtr("English"),
		URL:  "http://example.com/subtitle.srt?fmt=srt",
	}

	tests := []struct {
		name          string
		info          *ytdlp.ExtractedInfo
		language      string
		expectedURL   string
		expectedError string
	}{
		{
			name:        "exact language match",
			info:        captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"en": {srtCaption}}),
			language:    "en",
			expectedURL: srtCaption.URL,
		},
		{
			name:        "base language match (en-US -> en)",
			info:        captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"en": {srtCaption}}),
			language:    "en-US",
			expectedURL: srtCaption.URL,
		},
		{
			name: "no captions available - nil Language",
			info: &ytdlp.ExtractedInfo{
				ExtractedFormat: &ytdlp.ExtractedFormat{},
			},
			language:      "en",
			expectedError: "no captions available for this video",
		},
		{
			name:          "no captions for requested language",
			info:          captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"es": {srtCaption}}),
			language:      "en",
			expectedError: "no captions available for language: en",
		},
		{
			name: "no SRT format available",
			info: captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"en": {
				{Name: stringPtr("English"), URL: "http://example.com/subtitle.vtt"},
			}}),
			language:      "en",
			expectedError: "no subtitle URL found",
		},
		{
			name: "multiple captions, select first SRT",
			info: captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"en": {
				{Name: stringPtr("English VTT"), URL: "http://example.com/subtitle.vtt"},
				srtCaption,
				{Name: stringPtr("Another SRT"), URL: "http://example.com/another.srt?fmt=srt"},
			}}),
			language:    "en",
			expectedURL: srtCaption.URL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf := &SubtitleFetcher{
				httpClient: &http.Client{},
				logger:     logger.NewTestLogger(),
			}

			result, err := sf.getSubtitleURL(tt.info, tt.language)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedURL, result)
			}
		})
	}
}

func TestSubtitleFetcher_Fetch(t *testing.T) {
	info := captionsInfo("en", map[string][]*ytdlp.ExtractedSubtitle{"en": {
		{Name: stringPtr("English"), URL: "http://example.com/subtitle.srt?fmt=srt"},
	}})

	t.Run("successful fetch", func(t *testing.T) {
		sf := &SubtitleFetcher{
			httpClient: &stubHTTPClient{resp: createHTTPResponse(200, "1\n00:00:00,000 --> 00:00:02,000\nHello world!")},
			logger:     logger.NewTestLogger(),
		}

		result, err := sf.Fetch(info)
		assert.NoError(t, err)
		assert.Equal(t, "Hello world!", result)
	})

	t.Run("no video language", func(t *testing.T) {
		sf := NewSubtitleFetcher(&http.Client{}, logger.NewTestLogger())

		_, err := sf.Fetch(&ytdlp.ExtractedInfo{
			ExtractedFormat: &ytdlp.ExtractedFormat{},
		})
		assert.ErrorIs(t, err, ErrNoVideoLanguage)
	})

	t.Run("failed to get subtitle URL", func(t *testing.T) {
		sf := NewSubtitleFetcher(&http.Client{}, logger.NewTestLogger())

		_, err := sf.Fetch(captionsInfo("en", nil))
		assert.ErrorIs(t, err, ErrGetSubtitleURL)
	})

	t.Run("failed to fetch transcript", func(t *testing.T) {
		sf := &SubtitleFetcher{
			httpClient: &stubHTTPClient{err: errors.New("err")},
			logger:     logger.NewTestLogger(),
		}

		_, err := sf.Fetch(info)
		assert.ErrorIs(t, err, ErrFetchTranscript)
	})
}
