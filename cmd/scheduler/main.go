package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/app"
	"github.com/Freeeeeet/coach_scheduler/internal/config"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.Log.Level)
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting coach scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
