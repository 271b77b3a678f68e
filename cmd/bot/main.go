// Package main contains the entrypoint for the business-chat capture bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/ykaravaev/secretarybot/internal/bot"
	"github.com/ykaravaev/secretarybot/internal/bot/handlers"
	"github.com/ykaravaev/secretarybot/internal/bot/tasks"
	"github.com/ykaravaev/secretarybot/internal/config"
	"github.com/ykaravaev/secretarybot/internal/content"
	"github.com/ykaravaev/secretarybot/internal/database"
	"github.com/ykaravaev/secretarybot/internal/logger"
	"github.com/ykaravaev/secretarybot/internal/notify"
	"github.com/ykaravaev/secretarybot/internal/reconcile"
	"github.com/ykaravaev/secretarybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// attachment store, engine, bot, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format == "json")
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(database.ConnParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Error("Failed to connect to database", "host", cfg.Database.Host, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	texts := notify.DefaultTexts()
	if cfg.Messages.Signature != "" {
		texts.Signature = cfg.Messages.Signature
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithAllowedUpdates(telegram.AllowedUpdates),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	attachments := content.NewStore(cfg.Cache.Dir, telegram.NewFileDownloader(tg, log), log)
	engine := reconcile.New(store, attachments, log)
	notifier := notify.New(tg, texts, log)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Engine:   engine,
		Notifier: notifier,
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	telegram.RegisterBusinessHandler(tg, handlers.NewBusinessHandler(hDeps))

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:      log,
		Store:       store,
		Attachments: attachments,
		Config:      cfg,
	}
	jobs := map[string]bot.JobConfig{
		"retention_sweep": {Interval: time.Duration(cfg.Retention.SweepIntervalSeconds) * time.Second},
	}
	sched := bot.NewScheduler(log, jobs, tasks.RegisterAllTasks(tDeps))

	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
