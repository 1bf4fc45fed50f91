package telegram

import (
	"strings"
)

// IsImageURL checks the path extension, query parameters included, because
// CDN media URLs rarely end with the bare extension.
func IsImageURL(url string) bool {
	imageExts := []string{".jpg", ".jpeg", ".png", ".webp"}
	for _, ext := range imageExts {
		if strings.Contains(strings.ToLower(url), ext) {
			return true
		}
	}

	return false
}

// SplitMessage cuts text into chunks of at most limit runes, preferring
// paragraph breaks, then line breaks, then sentence ends over hard cuts.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := findSplitPoint(text, limit)
		chunk := strings.TrimRight(text[:cut], "\n ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimLeft(text[cut:], "\n ")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func findSplitPoint(text string, limit int) int {
	window := text[:limit]

	for _, sep := range []string{"\n\n", "\n", ". "} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return idx + len(sep)
		}
	}
	return limit
}
