package di

import (
	"net/http"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/cache"
	"github.com/akidev/akibot/internal/chat"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/network"
	"github.com/akidev/akibot/internal/queue"
	"github.com/akidev/akibot/internal/service"
	"github.com/akidev/akibot/internal/service/youtube"
	"github.com/akidev/akibot/internal/telegram"
	"github.com/akidev/akibot/internal/webmd"
)

type Container struct {
	BotClient  telegram.Client
	Logger     logger.Logger
	DB         database.Database
	Cache      cache.Cache
	Cfg        *config.Config
	Queue      *queue.Queue
	AI         ai.Client
	ChatStore  *chat.Store
	Window     *chat.WindowManager
	HTTPClient *http.Client
	Localizer  *service.Localizer
	Youtube    youtube.Service
	Webmd      *webmd.Converter
}

func NewContainer(cfg *config.Config) (*Container, error) {
	logCfg := cfg.Log()
	l := logger.NewLogrusLogger(&logCfg)

	db, err := database.NewSQLiteDB(cfg, l)
	if err != nil {
		return nil, err
	}

	memoryCache := cache.NewMemoryCache()
	dbCache := cache.NewDBCache(db)
	c := cache.NewMultiLevelCache(memoryCache, dbCache, l)
	q := queue.NewQueue(db, l)
	localizer, err := service.NewLocalizer(cfg.Global().InterfaceLanguage)
	if err != nil {
		l.WithError(err).Fatal("Error create localizer")
	}

	container := &Container{
		Logger:    l,
		DB:        db,
		Cache:     c,
		Cfg:       cfg,
		Queue:     q,
		Localizer: localizer,
	}

	proxy := cfg.HTTP().GetProxy()

	httpCfg := network.NewDefaultHTTPClientConfig(proxy)
	container.HTTPClient = network.SetupHTTPClient(httpCfg, l)

	streamCfg := network.NewStreamingHTTPClientConfig(proxy)
	streamClient := network.SetupHTTPClient(streamCfg, l)

	container.AI = ai.NewGeminiClient(cfg, container.HTTPClient, streamClient, l)
	container.ChatStore = chat.NewStore(db, l)
	container.Window = chat.NewWindowManager(container.AI, cfg, l)

	container.Youtube = youtube.NewService(l, container.HTTPClient, youtube.Config{
		Proxy: proxy,
	})

	pageCfg := network.NewHTTPClientConfigForPages(proxy)
	pageClient := network.SetupHTTPClient(pageCfg, l)
	container.Webmd = webmd.NewConverter(pageClient, l)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram().Token)
	if err != nil {
		l.WithError(err).Fatal("Bot API client initialization error")
	}
	l.Info("Bot API initialized")

	container.BotClient = telegram.NewBotClient(api, l)

	return container, nil
}
