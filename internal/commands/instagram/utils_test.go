package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInstagramURL(t *testing.T) {
	text := "check this out https://www.instagram.com/reel/Cabc123XYZ/ lol"
	assert.Equal(t, "https://www.instagram.com/reel/Cabc123XYZ", ExtractInstagramURL(text))
	assert.Empty(t, ExtractInstagramURL("no links here"))
}

func TestExtractShortcode(t *testing.T) {
	t.Run("numeric story id passes through", func(t *testing.T) {
		got := ExtractShortcode("https://www.instagram.com/stories/someuser/3141592653589793/")
		assert.Equal(t, "3141592653589793", got)
	})

	t.Run("query string is stripped", func(t *testing.T) {
		got := ExtractShortcode("https://www.instagram.com/stories/someuser/31415926?igsh=abc")
		assert.Equal(t, "31415926", got)
	})

	t.Run("alphanumeric shortcode converts to media id", func(t *testing.T) {
		// "B" is index 1, "A" is index 0: 1*64 + 0 = 64
		got := ExtractShortcode("https://www.instagram.com/p/BA/")
		assert.Equal(t, "64", got)
	})

	t.Run("invalid url yields empty", func(t *testing.T) {
		assert.Empty(t, ExtractShortcode("https://example.com/p/abc/"))
	})
}

func TestExtractUsernameFromStoryURL(t *testing.T) {
	got := ExtractUsernameFromStoryURL("https://www.instagram.com/stories/someuser/12345/")
	assert.Equal(t, "someuser", got)
	assert.Empty(t, ExtractUsernameFromStoryURL("https://www.instagram.com/p/abc/"))
}
