package app

import (
	"context"
	"flag"
	"time"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/commands/chat"
	"github.com/akidev/akibot/internal/commands/clear"
	"github.com/akidev/akibot/internal/commands/help"
	"github.com/akidev/akibot/internal/commands/instagram"
	"github.com/akidev/akibot/internal/commands/start"
	"github.com/akidev/akibot/internal/commands/transcript"
	"github.com/akidev/akibot/internal/commands/web2md"
	"github.com/akidev/akibot/internal/commands/youtube"
	"github.com/akidev/akibot/internal/config"
	"github.com/akidev/akibot/internal/core"
	"github.com/akidev/akibot/internal/logger"
)

const FailedToInit = "Failed to init"

type Application struct {
	Logger logger.Logger
	cfg    *config.Config
	bot    *core.Bot
	di     *di.Container
	ctx    context.Context
	cancel context.CancelFunc
}

func New() (*Application, error) {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	cfg, err := config.Load()
	if err != nil {
		cancel()
		return nil, err
	}

	di, err := di.NewContainer(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	di.Logger.Info("DI Container created")

	botInstance, err := core.NewBot(
		di.BotClient,
		di.Queue,
		di.Logger,
		di.DB,
		cfg,
		di.Localizer,
	)
	if err != nil {
		di.Logger.Fatal(err)
	}
	di.Logger.Info("Bot instance created")

	app := &Application{
		cfg:    cfg,
		bot:    botInstance,
		di:     di,
		Logger: di.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	app.registerCommands(ctx)

	return app, nil
}

func (a *Application) Start() error {
	a.Logger.Info("Starting application")
	a.StartTaskCleaner()
	return a.bot.Start(a.ctx)
}

func (a *Application) registerCommands(ctx context.Context) {
	if a.cfg.GetCommandConfig(start.CommandName).Enabled {
		a.bot.RegisterCommand(start.New(a.di))
	}
	if a.cfg.GetCommandConfig(help.CommandName).Enabled {
		a.bot.RegisterCommand(help.New(a.di))
	}
	if a.cfg.GetCommandConfig(chat.CommandName).Enabled {
		a.bot.RegisterCommand(chat.New(a.di))
		a.bot.RegisterCommand(clear.New(a.di))
	}
	if a.cfg.GetCommandConfig(transcript.CommandName).Enabled {
		a.bot.RegisterCommand(transcript.New(a.di))
	}
	if a.cfg.GetCommandConfig(web2md.CommandName).Enabled {
		a.bot.RegisterCommand(web2md.New(a.di))
	}
	if a.cfg.GetCommandConfig(youtube.CommandName).Enabled {
		// yt-dlp download happens here, keep it off the startup path
		go func() {
			cmd, err := youtube.New(a.di)
			if err != nil {
				a.Logger.WithError(err).WithField("command", youtube.CommandName).Error(FailedToInit)
				return
			}

			a.bot.RegisterCommand(cmd)
			a.di.Queue.StartQueue(ctx, youtube.CommandName, cmd)
			a.Logger.WithField("command", youtube.CommandName).Info("YouTube command registered successfully")
		}()
	}
	if a.cfg.GetCommandConfig(instagram.CommandName).Enabled {
		go func() {
			cmd, err := instagram.New(a.di)
			if err != nil {
				a.Logger.WithError(err).WithField("command", instagram.CommandName).Error(FailedToInit)
				return
			}

			a.bot.RegisterCommand(cmd)
			a.di.Queue.StartQueue(ctx, instagram.CommandName, cmd)
			a.Logger.WithField("command", instagram.CommandName).Info("Instagram command registered successfully")
		}()
	}
}

func (a *Application) WaitForShutdown() {
	<-a.ctx.Done()
	a.Logger.Info("Application stopped")
}

func (a *Application) StartTaskCleaner() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := a.di.DB.PurgeOldTasks(a.di.Cfg.Global().TaskRetentionDays); err != nil {
				a.di.Logger.Error("Failed to purge old tasks: ", err)
			}
		}
	}()
}
