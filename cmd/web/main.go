package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
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
	"creator-studio-ai/internal/httpclient"
	"creator-studio-ai/internal/prompt"
	"creator-studio-ai/internal/webapi"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
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

	api := webapi.New(webapi.Options{
		Kits:               brand.NewStore(),
		Orchestrator:       orch,
		Gate:               gate,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.WebAddr, "credential", gate.State().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("web stopped")
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
