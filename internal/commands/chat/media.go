package chat

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	// Decoders for the formats Telegram actually delivers.
	_ "image/gif"
	_ "image/png"

	"github.com/akidev/akibot/internal/ai"
)

const defaultAudioMIME = "audio/ogg"

var (
	// ErrUnsupportedImage marks image bytes no registered decoder understands.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrBinaryDocument marks a document that is not decodable text.
	ErrBinaryDocument = errors.New("document is not decodable text")
	// ErrAudioTooLong / ErrAudioTooLarge gate audio embedding by config limits.
	ErrAudioTooLong  = errors.New("audio duration exceeds the configured maximum")
	ErrAudioTooLarge = errors.New("audio size exceeds the configured maximum")
)

// BuildImageParts re-encodes arbitrary image bytes to JPEG and returns a
// caption text block followed by the inline data block.
func BuildImageParts(data []byte, caption string) ([]ai.Part, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to re-encode %s image: %w", format, err)
	}

	return []ai.Part{
		{Text: captionBlock("image", caption)},
		{InlineData: &ai.InlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		}},
	}, nil
}

// BuildDocumentText decodes document bytes as UTF-8, falling back to UTF-16
// (either byte order) for files carrying a BOM. Binary content is rejected.
func BuildDocumentText(data []byte) (string, error) {
	if utf8.Valid(data) && !looksBinary(data) {
		return string(data), nil
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	decoded, err := decoder.Bytes(data)
	if err == nil && utf8.Valid(decoded) && !looksBinary(decoded) {
		return string(decoded), nil
	}

	return "", ErrBinaryDocument
}

// BuildAudioParts embeds raw audio bytes with a best-effort MIME type.
func BuildAudioParts(data []byte, mimeType, caption string) []ai.Part {
	if mimeType == "" {
		mimeType = defaultAudioMIME
	}
	return []ai.Part{
		{Text: captionBlock("audio", caption)},
		{InlineData: &ai.InlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}
}

// captionBlock labels binary content with the sender role and media kind so
// the model can tell attachments apart from the running conversation.
func captionBlock(kind, caption string) string {
	label := fmt.Sprintf("'role': 'user/%s'", kind)
	if strings.TrimSpace(caption) == "" {
		return label
	}
	return label + "\n" + caption
}

func looksBinary(data []byte) bool {
	return bytes.ContainsRune(data, 0x00)
}
