package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/builder"
	"github.com/malykhin/ragchat-backend/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := builder.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, cleanup, err := builder.BuildTelegramBot(ctx, cfg, logger)
	if err != nil {
		log.Fatal("Failed to build telegram bot:", err)
	}
	defer func() {
		for _, fn := range cleanup {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", zap.Error(err))
			}
		}
	}()

	if err := bot.Run(ctx); err != nil {
		logger.Error("telegram bot error", zap.Error(err))
	}
}
