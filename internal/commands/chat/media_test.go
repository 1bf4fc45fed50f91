package chat

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestBuildImageParts(t *testing.T) {
	t.Run("re-encodes to jpeg with caption block first", func(t *testing.T) {
		parts, err := BuildImageParts(pngBytes(t), "a sunset")
		require.NoError(t, err)
		require.Len(t, parts, 2)

		assert.Contains(t, parts[0].Text, "'role': 'user/image'")
		assert.Contains(t, parts[0].Text, "a sunset")
		assert.Nil(t, parts[0].InlineData)

		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)

		raw, err := base64.StdEncoding.DecodeString(parts[1].InlineData.Data)
		require.NoError(t, err)
		// JPEG SOI marker
		require.True(t, len(raw) > 2)
		assert.Equal(t, []byte{0xFF, 0xD8}, raw[:2])
	})

	t.Run("garbage bytes are rejected", func(t *testing.T) {
		_, err := BuildImageParts([]byte("definitely not an image"), "")
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})
}

func TestBuildDocumentText(t *testing.T) {
	t.Run("plain utf-8", func(t *testing.T) {
		text, err := BuildDocumentText([]byte("package main\n"))
		require.NoError(t, err)
		assert.Equal(t, "package main\n", text)
	})

	t.Run("utf-16 little endian with BOM", func(t *testing.T) {
		data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
		text, err := BuildDocumentText(data)
		require.NoError(t, err)
		assert.Equal(t, "hi", text)
	})

	t.Run("binary content is rejected", func(t *testing.T) {
		_, err := BuildDocumentText([]byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0x00})
		assert.ErrorIs(t, err, ErrBinaryDocument)
	})
}

func TestBuildAudioParts(t *testing.T) {
	t.Run("uses provided mime type", func(t *testing.T) {
		parts := BuildAudioParts([]byte{1, 2, 3}, "audio/mpeg", "listen")
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0].Text, "'role': 'user/audio'")
		assert.Contains(t, parts[0].Text, "listen")
		assert.Equal(t, "audio/mpeg", parts[1].InlineData.MimeType)
	})

	t.Run("falls back to generic mime type", func(t *testing.T) {
		parts := BuildAudioParts([]byte{1}, "", "")
		assert.Equal(t, "audio/ogg", parts[1].InlineData.MimeType)
		assert.Equal(t, "'role': 'user/audio'", parts[0].Text)
	})
}
