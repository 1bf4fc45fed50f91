package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short text stays whole", func(t *testing.T) {
		chunks := SplitMessage("hello", 100)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello", chunks[0])
	})

	t.Run("splits on paragraph boundary", func(t *testing.T) {
		first := strings.Repeat("a", 60)
		second := strings.Repeat("b", 60)
		chunks := SplitMessage(first+"\n\n"+second, 100)

		require.Len(t, chunks, 2)
		assert.Equal(t, first, chunks[0])
		assert.Equal(t, second, chunks[1])
	})

	t.Run("falls back to sentence boundary", func(t *testing.T) {
		text := strings.Repeat("c", 50) + ". " + strings.Repeat("d", 80)
		chunks := SplitMessage(text, 100)

		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("c", 50)+".", chunks[0])
		assert.Equal(t, strings.Repeat("d", 80), chunks[1])
	})

	t.Run("hard cut when no boundary exists", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		chunks := SplitMessage(text, 100)

		require.Len(t, chunks, 3)
		assert.Equal(t, 100, len(chunks[0]))
		assert.Equal(t, 100, len(chunks[1]))
		assert.Equal(t, 50, len(chunks[2]))
	})

	t.Run("every chunk respects the limit", func(t *testing.T) {
		text := strings.Repeat("word word word. ", 2000)
		for _, chunk := range SplitMessage(text, MaxMessageLength) {
			assert.LessOrEqual(t, len(chunk), MaxMessageLength)
			assert.NotEmpty(t, chunk)
		}
	})
}
