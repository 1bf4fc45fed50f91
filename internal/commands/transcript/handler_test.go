package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akidev/akibot/internal/service/youtube"
)

func TestFormatHeader(t *testing.T) {
	views := 1_530_000.0
	likes := 42_000.0
	uploaded := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		data     *youtube.VideoData
		expected string
	}{
		{
			name:     "empty metadata",
			data:     &youtube.VideoData{},
			expected: "",
		},
		{
			name:     "title only",
			data:     &youtube.VideoData{Title: "How compilers work"},
			expected: "How compilers work",
		},
		{
			name: "full metadata",
			data: &youtube.VideoData{
				Title:      "How compilers work",
				ViewCount:  &views,
				LikeCount:  &likes,
				UploadedAt: &uploaded,
			},
			expected: "How compilers work | 1.5M views | 42K likes | 2025-03-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatHeader(tt.data))
		})
	}
}
