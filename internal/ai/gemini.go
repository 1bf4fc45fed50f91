package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/logger"
)

// Client talks to the generative language backend.
type Client interface {
	ModelName() string
	Generate(ctx context.Context, contents []Content) (string, error)
	GenerateStream(ctx context.Context, contents []Content) (<-chan Chunk, error)
	CountTokens(ctx context.Context, contents []Content) (int, error)
}

// ConfigProvider yields the current backend settings on every call, so config
// edits (model, prompt, safety) apply without restarting.
type ConfigProvider interface {
	AI() config.AIConfig
}

type GeminiClient struct {
	cfg          ConfigProvider
	httpClient   *http.Client
	streamClient *http.Client
	logger       logger.Logger
}

func NewGeminiClient(cfg ConfigProvider, httpClient, streamClient *http.Client, log logger.Logger) *GeminiClient {
	return &GeminiClient{
		cfg:          cfg,
		httpClient:   httpClient,
		streamClient: streamClient,
		logger:       log,
	}
}

func (c *GeminiClient) ModelName() string {
	return c.cfg.AI().Model
}

func (c *GeminiClient) Generate(ctx context.Context, contents []Content) (string, error) {
	aiCfg := c.cfg.AI()
	body, err := c.doRequest(ctx, c.httpClient, aiCfg, "generateContent", "", contents)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", c.wrapTransport(aiCfg, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &AIError{
			OriginalErr: err,
			ModelName:   aiCfg.Model,
			Message:     "failed to decode response",
		}
	}

	return extractText(aiCfg.Model, resp)
}

// GenerateStream yields content chunks as the backend produces them. A failed
// stream delivers a terminal chunk with Error set before the channel closes.
func (c *GeminiClient) GenerateStream(ctx context.Context, contents []Content) (<-chan Chunk, error) {
	aiCfg := c.cfg.AI()
	body, err := c.doRequest(ctx, c.streamClient, aiCfg, "streamGenerateContent", "alt=sse", contents)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer body.Close()

		sawText := false
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var resp generateResponse
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				c.logger.WithError(err).Warn("Failed to decode stream chunk, skipping")
				continue
			}
			text, err := extractText(aiCfg.Model, resp)
			if err != nil {
				// streams may close with an empty final candidate
				continue
			}
			if text != "" {
				sawText = true
				select {
				case ch <- Chunk{Content: text}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- Chunk{Error: c.wrapTransport(aiCfg, err)}
			return
		}
		if !sawText {
			// Content failure, not transport: same sentinel as the
			// non-stream path, so it never triggers a retry.
			ch <- Chunk{Error: ErrEmptyResponse}
		}
	}()

	return ch, nil
}

func (c *GeminiClient) CountTokens(ctx context.Context, contents []Content) (int, error) {
	aiCfg := c.cfg.AI()

	payload, err := json.Marshal(CountTokensRequest{Contents: contents})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(aiCfg, "countTokens"), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logRequest(aiCfg, req, payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.wrapTransport(aiCfg, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, c.wrapTransport(aiCfg, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, c.decodeAPIError(aiCfg, resp, raw)
	}

	var counted struct {
		TotalTokens int `json:"totalTokens"`
	}
	if err := json.Unmarshal(raw, &counted); err != nil {
		return 0, &AIError{
			OriginalErr: err,
			ModelName:   aiCfg.Model,
			Message:     "failed to decode token count",
		}
	}
	return counted.TotalTokens, nil
}

func (c *GeminiClient) doRequest(ctx context.Context, client *http.Client, aiCfg config.AIConfig, method, query string, contents []Content) (io.ReadCloser, error) {
	request := GenerateRequest{
		Contents:         contents,
		GenerationConfig: aiCfg.Generation,
	}
	for category, threshold := range aiCfg.Safety {
		request.SafetySettings = append(request.SafetySettings, SafetySetting{
			Category:  category,
			Threshold: threshold,
		})
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	endpoint := c.endpoint(aiCfg, method)
	if query != "" {
		endpoint += "&" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, c.wrapTransport(aiCfg, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logRequest(aiCfg, req, payload)

	resp, err := client.Do(req)
	if err != nil {
		return nil, c.wrapTransport(aiCfg, err)
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, c.decodeAPIError(aiCfg, resp, raw)
	}

	return resp.Body, nil
}

func (c *GeminiClient) endpoint(aiCfg config.AIConfig, method string) string {
	return fmt.Sprintf(
		"%s/%s:%s?key=%s",
		strings.TrimSuffix(aiCfg.APIURL, "/"),
		aiCfg.Model,
		method,
		url.QueryEscape(aiCfg.GetAPIKey()),
	)
}

// wrapTransport converts a transport-level failure into a retryable network
// error, with the credential scrubbed from the message.
func (c *GeminiClient) wrapTransport(aiCfg config.AIConfig, err error) *AIError {
	return &AIError{
		OriginalErr: fmt.Errorf("%s", redactSecret(err.Error(), aiCfg.GetAPIKey())),
		ModelName:   aiCfg.Model,
	}
}

func (c *GeminiClient) decodeAPIError(aiCfg config.AIConfig, resp *http.Response, raw []byte) *AIError {
	aiErr := &AIError{
		ModelName:      aiCfg.Model,
		HTTPStatusCode: resp.StatusCode,
		Message:        http.StatusText(resp.StatusCode),
	}

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		aiErr.Message = redactSecret(body.Error.Message, aiCfg.GetAPIKey())
		aiErr.ErrorStatus = body.Error.Status
		for _, detail := range body.Error.Details {
			if delay, err := time.ParseDuration(detail.RetryDelay); err == nil && delay > 0 {
				aiErr.RetryAfterDelay = delay
			}
		}
	}

	if aiErr.RetryAfterDelay == 0 {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			aiErr.RetryAfterDelay = time.Duration(seconds) * time.Second
		}
	}

	return aiErr
}

func extractText(model string, resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", &AIError{
				ModelName:      model,
				HTTPStatusCode: http.StatusBadRequest,
				Message:        "blocked by safety settings: " + resp.PromptFeedback.BlockReason,
			}
		}
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", ErrNoTextContent
	}
	return sb.String(), nil
}

type generateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// redactSecret strips the API credential from any string that may surface in
// logs or user-facing errors.
func redactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, secret, "REDACTED")
	if escaped := url.QueryEscape(secret); escaped != secret {
		s = strings.ReplaceAll(s, escaped, "REDACTED")
	}
	return s
}

func (c *GeminiClient) logRequest(aiCfg config.AIConfig, req *http.Request, body []byte) {
	var bodyData any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &bodyData); err == nil {
			if m, ok := bodyData.(map[string]any); ok {
				truncateLargeFields(m)
			}
		}
	}

	cleanURL := *req.URL
	cleanURL.RawQuery = ""

	logData := map[string]any{
		"url":    cleanURL.String(),
		"method": req.Method,
		"body":   bodyData,
	}

	jsonData, err := json.Marshal(logData)
	if err != nil {
		c.logger.WithError(err).Error("Fail marshal json for request")
		return
	}
	c.logger.WithField("request", redactSecret(string(jsonData), aiCfg.GetAPIKey())).Debug("HTTP request")
}

func truncateLargeFields(data map[string]any) {
	for k, v := range data {
		switch val := v.(type) {
		case string:
			if (k == "data" || k == "text") && len(val) > 1000 {
				data[k] = val[:1000] + "...[truncated]"
			}
		case map[string]any:
			truncateLargeFields(val)
		case []any:
			for _, item := range val {
				if m, ok := item.(map[string]any); ok {
					truncateLargeFields(m)
				}
			}
		}
	}
}
