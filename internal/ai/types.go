package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	// ErrEmptyResponse means the backend returned no candidates at all.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoTextContent means a candidate arrived but carried no text parts.
	ErrNoTextContent = errors.New("model returned no text content")
)

// Part is a single block of a content turn: either text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries base64-encoded media with its MIME type.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

func NewTextContent(role, text string) Content {
	return Content{
		Role:  role,
		Parts: []Part{{Text: text}},
	}
}

// Text concatenates the text parts of the turn.
func (c Content) Text() string {
	var sb strings.Builder
	for _, part := range c.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func (c Content) HasInlineData() bool {
	for _, part := range c.Parts {
		if part.InlineData != nil {
			return true
		}
	}
	return false
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type GenerateRequest struct {
	Contents         []Content       `json:"contents"`
	SafetySettings   []SafetySetting `json:"safetySettings,omitempty"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type CountTokensRequest struct {
	Contents []Content `json:"contents"`
}

type Chunk struct {
	Content string
	Error   error
}

// AIError represents an enriched error from the generative backend.
type AIError struct {
	// OriginalErr is the original error (if any)
	OriginalErr error `json:"-"`
	// ModelName is the model name where the error occurred
	ModelName string `json:"model_name"`
	// HTTPStatusCode is the HTTP response status code (if applicable)
	HTTPStatusCode int `json:"http_status_code"`
	// ErrorStatus is the backend's status string (e.g. "RESOURCE_EXHAUSTED")
	ErrorStatus string `json:"error_status"`
	// Message is a human-readable error message
	Message string `json:"message"`
	// RetryAfterDelay is the wait the backend asked for on rate limits
	RetryAfterDelay time.Duration `json:"-"`
}

func (e *AIError) Error() string {
	msg := e.Message
	if msg == "" && e.OriginalErr != nil {
		msg = e.OriginalErr.Error()
	}
	if e.ModelName != "" {
		msg = fmt.Sprintf("[%s] %s", e.ModelName, msg)
	}
	if e.ErrorStatus != "" {
		msg = fmt.Sprintf("%s (status: %s)", msg, e.ErrorStatus)
	}
	if e.HTTPStatusCode != 0 {
		msg = fmt.Sprintf("%d %s", e.HTTPStatusCode, msg)
	}
	return msg
}

// Unwrap for compatibility with errors.Is and errors.As
func (e *AIError) Unwrap() error {
	return e.OriginalErr
}

// ErrorType returns the error type based on HTTP status code and message
func (e *AIError) ErrorType() ErrorType {
	switch {
	case e.HTTPStatusCode == 0 && e.OriginalErr != nil:
		return ErrorTypeNetwork
	case e.HTTPStatusCode == 429:
		return ErrorTypeRateLimit
	case e.HTTPStatusCode >= 500:
		return ErrorTypeServer
	case e.HTTPStatusCode == 400 && strings.Contains(strings.ToLower(e.Message), "safety"):
		return ErrorTypeContentPolicy
	case e.HTTPStatusCode >= 400 && e.HTTPStatusCode < 500:
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable determines if a request can be safely retried
func (e *AIError) IsRetryable() bool {
	switch e.ErrorType() {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// RetryAfter reports the server-requested wait, zero when none was given.
func (e *AIError) RetryAfter() time.Duration {
	if e.ErrorType() != ErrorTypeRateLimit {
		return 0
	}
	return e.RetryAfterDelay
}

// ErrorType for errors classification
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"        // network error, timeout
	ErrorTypeRateLimit     ErrorType = "rate_limit"     // 429, quota exhausted
	ErrorTypeServer        ErrorType = "server"         // 5xx, backend-side error
	ErrorTypeClient        ErrorType = "client"         // 4xx (except 429), invalid request or API key
	ErrorTypeContentPolicy ErrorType = "content_policy" // safety block
	ErrorTypeUnknown       ErrorType = "unknown"
)

func IsRetryableError(err error) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.IsRetryable()
	}
	return false
}

func GetErrorType(err error) ErrorType {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.ErrorType()
	}
	return ErrorTypeUnknown
}
