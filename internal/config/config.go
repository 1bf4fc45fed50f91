package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const (
	GLOBAL_LANGUAGE           = "global.interface_language"
	GLOBAL_TASK_RETENTION     = "global.task_retention_days"
	HTTP_PROXY                = "http.proxy"
	AI_API_URL                = "ai.api_url"
	AI_API_KEY                = "ai.api_key"
	AI_MODEL                  = "ai.model"
	AI_SYSTEM_PROMPT          = "ai.system_prompt"
	AI_SYSTEM_PROMPT_FILE     = "ai.system_prompt_file"
	AI_USE_STREAM             = "ai.use_stream"
	AI_MAX_HISTORY_TOKENS     = "ai.max_history_tokens"
	AI_TRIM_CHECK_EVERY       = "ai.trim_check_every"
	AI_MAX_RETRIES            = "ai.max_retries"
	AI_RETRY_DELAY            = "ai.retry_delay"
	AI_GENERATION             = "ai.generation"
	AI_SAFETY                 = "ai.safety"
	TELEGRAM_TOKEN            = "telegram.token"
	TELEGRAM_ALLOWED_USERS    = "telegram.allowed_users"
	TELEGRAM_ALLOWED_CHATS    = "telegram.allowed_chats"
	INSTAGRAM_USERNAME        = "instagram.username"
	INSTAGRAM_PASSWORD        = "instagram.password"
	INSTAGRAM_SESSION_PATH    = "instagram.session_path"
	INSTAGRAM_SESSION_REFRESH = "instagram.session_refresh_interval"
	YOUTUBE_MAX_SIZE          = "youtube.max_size"
	YOUTUBE_TEMP_DIRECTORY    = "youtube.temp_directory"
	DATABASE_DSN              = "database.dsn"
	LOGGING_LEVEL             = "logging.level"
	LOGGING_WRITE_IN_FILE     = "logging.write_in_file"
	LOGGING_FILE_PATH         = "logging.file_path"
	CHAT_IMAGES_ENABLED       = "commands.chat.images.enabled"
	CHAT_AUDIO_ENABLED        = "commands.chat.audio.enabled"
	CHAT_AUDIO_MAX_SIZE       = "commands.chat.audio.max_size"
	CHAT_AUDIO_MAX_DURATION   = "commands.chat.audio.max_duration"
	CHAT_FILES_ENABLED        = "commands.chat.files.enabled"
	CHAT_FILES_EXTENSIONS     = "commands.chat.files.extensions"
	defaultGenerativeAPIURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGenerativeModel    = "gemini-2.0-flash"
	generativeAPIKeyEnv       = "GEMINI_API_KEY"
)

var defaultSQLiteParams = map[string]string{
	"_journal":      "WAL",
	"_busy_timeout": "10000",
	"_synchronous":  "NORMAL",
	"_cache":        "shared",
	"_auto_vacuum":  "INCREMENTAL",
}

// Extensions accepted as text documents in chat context.
var defaultDocumentExtensions = []string{
	".txt", ".xml", ".py", ".js", ".html", ".css", ".ps1", ".json",
	".md", ".yaml", ".yml", ".ts", ".tsx", ".c", ".cpp", ".h", ".hpp",
	".java", ".cs", ".php", ".pl", ".rb", ".sh", ".bat", ".ini",
	".log", ".toml", ".rs", ".go", ".r", ".jl", ".lua", ".swift",
	".sql", ".asm", ".vb", ".vbs", ".jsx", ".svelte", ".vue", ".scss",
	".less", ".tex", ".rmd", ".m", ".scala", ".erl", ".hs", ".f90",
	".pas", ".groovy",
}

type Config struct {
	mu           sync.RWMutex
	k            *koanf.Koanf
	loadedPath   string
	lastModified time.Time
}

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "Path to config file")
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := cfg.load(); err != nil {
		return nil, err
	}

	if cfg.k.String(TELEGRAM_TOKEN) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.AI().GetAPIKey() == "" {
		return nil, fmt.Errorf("generative API key is required")
	}

	return cfg, nil
}

func (c *Config) load() error {
	k := koanf.New(".")

	defaults := map[string]any{
		GLOBAL_LANGUAGE:                               "en",
		GLOBAL_TASK_RETENTION:                         7,
		TELEGRAM_TOKEN:                                "",
		HTTP_PROXY:                                    nil,
		INSTAGRAM_SESSION_PATH:                        "instagram_session.json",
		INSTAGRAM_SESSION_REFRESH:                     12 * time.Hour,
		DATABASE_DSN:                                  "bot.db?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache=shared",
		LOGGING_LEVEL:                                 "info",
		LOGGING_WRITE_IN_FILE:                         false,
		YOUTUBE_MAX_SIZE:                              "50M", // max size for normal bots without special permission
		YOUTUBE_TEMP_DIRECTORY:                        "",
		AI_API_URL:                                    defaultGenerativeAPIURL,
		AI_MODEL:                                      defaultGenerativeModel,
		AI_SYSTEM_PROMPT:                              "",
		AI_SYSTEM_PROMPT_FILE:                         "",
		AI_USE_STREAM:                                 false,
		AI_MAX_HISTORY_TOKENS:                         30000,
		AI_TRIM_CHECK_EVERY:                           5,
		AI_MAX_RETRIES:                                4,
		AI_RETRY_DELAY:                                3 * time.Second,
		AI_SAFETY:                                     map[string]string{
			"HARM_CATEGORY_HARASSMENT":        "BLOCK_NONE",
			"HARM_CATEGORY_HATE_SPEECH":       "BLOCK_NONE",
			"HARM_CATEGORY_SEXUALLY_EXPLICIT": "BLOCK_NONE",
			"HARM_CATEGORY_DANGEROUS_CONTENT": "BLOCK_NONE",
		},
		CHAT_IMAGES_ENABLED:                           true,
		CHAT_AUDIO_ENABLED:                            true,
		CHAT_AUDIO_MAX_SIZE:                           2000,    // kb
		CHAT_AUDIO_MAX_DURATION:                       60 * 10, // 10 min
		CHAT_FILES_ENABLED:                            true,

		"commands.chat.enabled":                       true,
		"commands.chat.queue.enabled":                 false,
		"commands.start.enabled":                      true,
		"commands.start.queue.enabled":                false,
		"commands.help.enabled":                       true,
		"commands.help.queue.enabled":                 false,
		"commands.clear.enabled":                      true,
		"commands.clear.queue.enabled":                false,
		"commands.insta.enabled":                      false,
		"commands.insta.queue.enabled":                true,
		"commands.insta.queue.max_retries":            3,
		"commands.insta.queue.retry_delay":            60 * time.Second,
		"commands.insta.queue.throttle.period":        2 * time.Minute,
		"commands.ytb2mp3.enabled":                    true,
		"commands.ytb2mp3.queue.enabled":              true,
		"commands.ytb2mp3.queue.max_retries":          0,
		"commands.ytb2mp3.queue.timeout":              5 * time.Minute,
		"commands.ytb2mp3.queue.throttle.period":      30 * time.Second,
		"commands.ytb2mp3.queue.throttle.requests":    3,
		"commands.ytb2mp3.queue.throttle.concurrency": 3,
		"commands.transcript.enabled":                 true,
		"commands.transcript.queue.enabled":           true,
		"commands.transcript.queue.max_retries":       1,
		"commands.transcript.queue.timeout":           2 * time.Minute,
		"commands.transcript.queue.throttle.period":   15 * time.Second,
		"commands.web2md.enabled":                     true,
		"commands.web2md.queue.enabled":               true,
		"commands.web2md.queue.max_retries":           1,
		"commands.web2md.queue.timeout":               1 * time.Minute,
		"commands.web2md.queue.throttle.period":       10 * time.Second,
	}
	k.Load(confmap.Provider(defaults, "."), nil)

	for _, path := range getConfigPaths() {
		if stat, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return fmt.Errorf("error loading config %s: %v", path, err)
			}
			c.loadedPath = path
			c.lastModified = stat.ModTime()
			break
		}
	}

	k.Load(env.Provider("AKIBOT_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "AKIBOT_")),
			"_", ".",
		)
	}), nil)

	if promptFile := k.String(AI_SYSTEM_PROMPT_FILE); promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return fmt.Errorf("read system prompt file %s: %w", promptFile, err)
		}
		k.Set(AI_SYSTEM_PROMPT, string(data))
	}

	c.k = k
	return nil
}

// maybeReload re-reads the config tree when the backing file changed on disk,
// so model, prompt and safety edits apply without a restart.
func (c *Config) maybeReload() {
	c.mu.RLock()
	path := c.loadedPath
	last := c.lastModified
	c.mu.RUnlock()

	if path == "" {
		return
	}
	stat, err := os.Stat(path)
	if err != nil || !stat.ModTime().After(last) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !stat.ModTime().After(c.lastModified) {
		return
	}
	if err := c.load(); err != nil {
		log.Printf("config reload failed, keeping previous values: %v", err)
	}
}

func (c *Config) koanf() *koanf.Koanf {
	c.maybeReload()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *Config) GetCommandConfig(name string) *commandConfig {
	k := c.koanf()
	concurrency := k.Int(fmt.Sprintf("commands.%s.queue.throttle.concurrency", name))
	if concurrency == 0 {
		concurrency = 1
	}
	requests := k.Int(fmt.Sprintf("commands.%s.queue.throttle.requests", name))
	if requests == 0 {
		requests = 1
	}
	period := k.Duration(fmt.Sprintf("commands.%s.queue.throttle.period", name))
	if period == 0 {
		period = 10 * time.Second
	}
	timeout := k.Duration(fmt.Sprintf("commands.%s.queue.timeout", name))
	if timeout == 0 {
		timeout = 1 * time.Minute
	}
	return &commandConfig{
		Enabled: k.Bool(fmt.Sprintf("commands.%s.enabled", name)),
		Queue: queueOptions{
			Enabled:    k.Bool(fmt.Sprintf("commands.%s.queue.enabled", name)),
			MaxRetries: k.Int(fmt.Sprintf("commands.%s.queue.max_retries", name)),
			RetryDelay: k.Duration(fmt.Sprintf("commands.%s.queue.retry_delay", name)),
			Timeout:    timeout,
			Throttle: queueThrottleOptions{
				Concurrency: concurrency,
				Period:      period,
				Requests:    requests,
			},
		},
	}
}

func (c *Config) GetChatCommandConfig() *ChatCommandConfig {
	k := c.koanf()
	extensions := k.Strings(CHAT_FILES_EXTENSIONS)
	if len(extensions) == 0 {
		extensions = defaultDocumentExtensions
	}
	return &ChatCommandConfig{
		CommandConfig: *c.GetCommandConfig("chat"),
		Images: ChatImagesOptions{
			Enabled: k.Bool(CHAT_IMAGES_ENABLED),
		},
		Audio: ChatAudioOptions{
			Enabled:     k.Bool(CHAT_AUDIO_ENABLED),
			MaxSize:     k.Int(CHAT_AUDIO_MAX_SIZE),
			MaxDuration: k.Int(CHAT_AUDIO_MAX_DURATION),
		},
		Files: ChatFilesOptions{
			Enabled:    k.Bool(CHAT_FILES_ENABLED),
			Extensions: extensions,
		},
	}
}

func (c *Config) Telegram() TelegramConfig {
	var cfg TelegramConfig
	if err := c.koanf().Unmarshal("telegram", &cfg); err != nil {
		log.Fatalf("telegramConfig unmarshal error: %v", err)
		return TelegramConfig{}
	}
	return cfg
}

func (c *Config) Instagram() instagramConfig {
	k := c.koanf()
	return instagramConfig{
		Username:               k.String(INSTAGRAM_USERNAME),
		Password:               k.String(INSTAGRAM_PASSWORD),
		SessionPath:            k.String(INSTAGRAM_SESSION_PATH),
		SessionRefreshInterval: k.Duration(INSTAGRAM_SESSION_REFRESH),
	}
}

func (c *Config) Youtube() youtubeConfig {
	k := c.koanf()
	return youtubeConfig{
		MaxSize:       k.String(YOUTUBE_MAX_SIZE),
		TempDirectory: k.String(YOUTUBE_TEMP_DIRECTORY),
	}
}

func (c *Config) Log() LoggingConfig {
	k := c.koanf()
	return LoggingConfig{
		LogLevel:    k.String(LOGGING_LEVEL),
		WriteInFile: k.Bool(LOGGING_WRITE_IN_FILE),
		FilePath:    k.String(LOGGING_FILE_PATH),
	}
}

func (c *Config) GetDatabaseDSN() string {
	dsn := c.koanf().String(DATABASE_DSN)
	parts := strings.Split(dsn, "?")
	path := parts[0]

	params := make(map[string]string)
	if len(parts) > 1 {
		for param := range strings.SplitSeq(parts[1], "&") {
			if kv := strings.Split(param, "="); len(kv) == 2 {
				params[kv[0]] = kv[1]
			}
		}
	}

	for k, v := range defaultSQLiteParams {
		if _, exists := params[k]; !exists {
			params[k] = v
		}
	}

	var queryParams []string
	for k, v := range params {
		queryParams = append(queryParams, k+"="+v)
	}
	sort.Strings(queryParams)

	if len(queryParams) > 0 {
		return path + "?" + strings.Join(queryParams, "&")
	}
	return path
}

func (c *Config) Global() globalConfig {
	k := c.koanf()
	return globalConfig{
		InterfaceLanguage: k.String(GLOBAL_LANGUAGE),
		TaskRetentionDays: k.Int(GLOBAL_TASK_RETENTION),
	}
}

func (c *Config) HTTP() HTTPConfig {
	var proxy string
	if proxyValue := c.koanf().Get(HTTP_PROXY); proxyValue != nil {
		proxy = proxyValue.(string)
	}

	return HTTPConfig{
		proxy: &proxy,
	}
}

func (c *Config) AI() AIConfig {
	var cfg AIConfig
	if err := c.koanf().Unmarshal("ai", &cfg); err != nil {
		log.Fatalf("aiConfig unmarshal error: %v", err)
		return AIConfig{}
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultGenerativeAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGenerativeModel
	}
	return cfg
}

func getConfigPaths() []string {
	if configPath != "" {
		return []string{configPath}
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, _ := os.UserHomeDir()
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		"akibot.toml",
		"config.toml",
		filepath.Join(xdgConfig, "akibot", "config.toml"),
		"/etc/akibot/config.toml",
	}
}
