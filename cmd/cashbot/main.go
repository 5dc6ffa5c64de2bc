package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"cashbot/internal/backend"
	"cashbot/internal/cache"
	"cashbot/internal/cli"
	"cashbot/internal/config"
	"cashbot/internal/conversation"
	apphttp "cashbot/internal/http"
	"cashbot/internal/log"
	"cashbot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 5 * time.Minute
	pollTimeout     = 60
	webhookBuffer   = 256
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig((*config.Config).Validate)
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting cashbot",
		"mode", cfg.BotMode,
		"backend", cfg.DataBackend,
		"events", cfg.EventsEnabled())

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	ledger, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		cli.Fatal(logger, "Failed to connect to Telegram", err)
	}
	logger.Info("Authorized on Telegram", "bot", api.Self.UserName)

	tg := telegram.NewClient(api, telegram.Options{Logger: logger})
	sessions := conversation.NewSessionStore(cfg.SessionCapacity, cfg.SessionTTL)
	machine := conversation.NewMachine(sessions, tg, ledger.Ledger, conversation.WithLogger(logger))
	dispatcher := telegram.NewDispatcher(machine, tg, cfg.DispatchWorkers, logger)

	caches := cache.NewManager(logger)
	caches.Register("sessions", sessions.Cleaner())
	caches.Register("seen_updates", dispatcher.SeenUpdates())
	for name, c := range ledger.Caches {
		caches.Register(name, c)
	}

	var ready atomic.Bool
	var webhookUpdates chan tgbotapi.Update
	webhookPath := ""
	if cfg.BotMode == config.ModeWebhook {
		webhookUpdates = make(chan tgbotapi.Update, webhookBuffer)
		webhookPath = config.WebhookPath
	}
	router := apphttp.New(apphttp.Options{
		WebhookPath: webhookPath,
		Updates:     webhookUpdates,
		Ready: func(context.Context) error {
			if !ready.Load() {
				return errors.New("bot not started")
			}
			return nil
		},
		Logger: logger,
	})
	srv := apphttp.NewHTTPServer(":"+cfg.Port, router)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		ready.Store(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	caches.StartCleanup(ctx, cleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var updates <-chan tgbotapi.Update
	switch cfg.BotMode {
	case config.ModeWebhook:
		if err := tg.SetWebhook(gctx, cfg.WebhookEndpoint()); err != nil {
			cli.Fatal(logger, "Failed to register webhook", err, "url", cfg.WebhookEndpoint())
		}
		logger.Info("Webhook registered", "url", cfg.WebhookEndpoint())
		updates = webhookUpdates
	default:
		if err := tg.DeleteWebhook(gctx); err != nil {
			logger.Warn("Failed to remove webhook before polling", log.FieldError, err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = pollTimeout
		updates = api.GetUpdatesChan(u)
		g.Go(func() error {
			<-gctx.Done()
			api.StopReceivingUpdates()
			return nil
		})
		logger.Info("Polling for updates")
	}

	g.Go(func() error {
		return dispatcher.Run(gctx, updates)
	})
	ready.Store(true)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Bot stopped", err)
	}

	cli.WaitForShutdown(ctx, done)
	caches.Stop()
	if ledger.Cleanup != nil {
		if err := ledger.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}
	logger.Info("Server stopped")
}
