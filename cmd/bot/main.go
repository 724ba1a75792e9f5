package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/config"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/gemini"
	"creator-studio-ai/internal/generate"
	"creator-studio-ai/internal/handlers"
	"creator-studio-ai/internal/httpclient"
	"creator-studio-ai/internal/mediagroup"
	"creator-studio-ai/internal/prompt"
	"creator-studio-ai/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:      cfg.PreferIPv4,
		Timeout:         cfg.HTTPTimeout,
		MaxConnsPerHost: cfg.MaxConcurrent * 2,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}
	if err := tg.SetCommands(handlers.Commands); err != nil {
		logger.Warn("set commands failed", "err", err)
	}

	keys := credential.NewEnvProvider("GEMINI_API_KEY", cfg.EnvFiles)
	gate := credential.NewGate(credential.Options{Provider: keys, Logger: logger})
	gate.Check(ctx)

	gem := gemini.New(gemini.Options{
		Keys:       keys,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		ImageModel: cfg.GeminiImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	orch := generate.New(generate.Options{
		Generator:      gem,
		Builder:        prompt.NewBuilder(prompt.Options{Logger: logger}),
		Gate:           gate,
		Limit:          cfg.MaxConcurrent,
		RequestTimeout: cfg.RequestTimeout,
		ImageSize:      cfg.ImageSize,
		Logger:         logger,
		BaseContext:    ctx,
	})

	handler := handlers.New(handlers.Options{
		Telegram:           tg,
		Kits:               brand.NewStore(),
		Orchestrator:       orch,
		Gate:               gate,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		Logger:             logger,
	})

	sem := make(chan struct{}, cfg.MaxUpdates)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
	})
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username(), "credential", gate.State().String(), "max_concurrent", cfg.MaxConcurrent)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "pending_albums", aggregator.Pending())
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
