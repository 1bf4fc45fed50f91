package config

import (
	"os"
	"slices"
	"strings"
	"time"
)

type globalConfig struct {
	InterfaceLanguage string `koanf:"interface_language"`
	TaskRetentionDays int    `koanf:"task_retention_days"`
}

type HTTPConfig struct {
	proxy *string `koanf:"proxy"`
}

func (c HTTPConfig) GetProxy() string {
	if c.proxy != nil && *c.proxy != "" {
		return *c.proxy
	}
	if proxyURL := os.Getenv("HTTPS_PROXY"); proxyURL != "" {
		return proxyURL
	}
	if proxyURL := os.Getenv("https_proxy"); proxyURL != "" {
		return proxyURL
	}
	if proxyURL := os.Getenv("HTTP_PROXY"); proxyURL != "" {
		return proxyURL
	}
	if proxyURL := os.Getenv("http_proxy"); proxyURL != "" {
		return proxyURL
	}
	return ""
}

type LoggingConfig struct {
	LogLevel    string `koanf:"level"`
	WriteInFile bool   `koanf:"write_in_file"`
	FilePath    string `koanf:"file_path"`
}

func (c LoggingConfig) Level() string {
	return strings.ToLower(c.LogLevel)
}

func (c LoggingConfig) IsDebug() bool {
	return c.Level() == "debug" || c.Level() == "trace"
}

type TelegramConfig struct {
	Token        string  `koanf:"token"`
	AllowedUsers []int64 `koanf:"allowed_users"`
	AllowedChats []int64 `koanf:"allowed_chats"`
}

func (c TelegramConfig) IsAllowed(userID int64, chatID int64) bool {
	return c.IsUserAllowed(userID) || c.IsChatAllowed(chatID)
}

func (c TelegramConfig) IsUserAllowed(userID int64) bool {
	allowedUsers := c.AllowedUsers
	if len(allowedUsers) == 0 {
		return false
	}

	return slices.Contains(allowedUsers, userID)
}

func (c TelegramConfig) IsChatAllowed(chatID int64) bool {
	allowedChats := c.AllowedChats
	if len(allowedChats) == 0 {
		return true
	}

	return slices.Contains(allowedChats, chatID)
}

type instagramConfig struct {
	Username               string        `koanf:"username"`
	Password               string        `koanf:"password"`
	SessionPath            string        `koanf:"session_path"`
	SessionRefreshInterval time.Duration `koanf:"session_refresh_interval"`
}

func (c instagramConfig) Credentials() (string, string) {
	return c.Username, c.Password
}

type youtubeConfig struct {
	MaxSize       string `koanf:"max_size"`
	TempDirectory string `koanf:"temp_directory"`
}

// AIConfig describes the generative backend. The API key is read from config
// or the GEMINI_API_KEY environment variable and must never appear in logs.
type AIConfig struct {
	APIURL           string            `koanf:"api_url"`
	APIKey           string            `koanf:"api_key"`
	Model            string            `koanf:"model"`
	SystemPrompt     string            `koanf:"system_prompt"`
	SystemPromptFile string            `koanf:"system_prompt_file"`
	UseStream        bool              `koanf:"use_stream"`
	MaxHistoryTokens int               `koanf:"max_history_tokens"`
	TrimCheckEvery   int               `koanf:"trim_check_every"`
	MaxRetries       int               `koanf:"max_retries"`
	RetryDelay       time.Duration     `koanf:"retry_delay"`
	Generation       map[string]any    `koanf:"generation"`
	Safety           map[string]string `koanf:"safety"`
}

func (c AIConfig) GetAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(generativeAPIKeyEnv)
}

type queueThrottleOptions struct {
	Period      time.Duration `koanf:"period"`
	Concurrency int           `koanf:"concurrency"`
	Requests    int           `koanf:"requests"`
}

type queueOptions struct {
	Enabled    bool                 `koanf:"enabled"`
	MaxRetries int                  `koanf:"max_retries"`
	RetryDelay time.Duration        `koanf:"retry_delay"`
	Timeout    time.Duration        `koanf:"timeout"`
	Throttle   queueThrottleOptions `koanf:"throttle"`
}

type commandConfig struct {
	Enabled bool         `koanf:"enabled"`
	Queue   queueOptions `koanf:"queue"`
}

type ChatImagesOptions struct {
	Enabled bool `koanf:"enabled"`
}

type ChatAudioOptions struct {
	Enabled     bool `koanf:"enabled"`
	MaxSize     int  `koanf:"max_size"`     // in kb
	MaxDuration int  `koanf:"max_duration"` // in seconds
}

type ChatFilesOptions struct {
	Enabled    bool     `koanf:"enabled"`
	Extensions []string `koanf:"extensions"`
}

func (o ChatFilesOptions) IsAllowedExtension(ext string) bool {
	return slices.Contains(o.Extensions, strings.ToLower(ext))
}

type ChatCommandConfig struct {
	CommandConfig commandConfig
	Images        ChatImagesOptions `koanf:"images"`
	Audio         ChatAudioOptions  `koanf:"audio"`
	Files         ChatFilesOptions  `koanf:"files"`
}
