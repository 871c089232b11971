package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vibe-mind/internal/app"
	"vibe-mind/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg, os.Stdout)

	a, err := app.New(cfg, logger, app.Options{RequireModel: true, Index: true})
	if err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.RunBot(ctx); err != nil {
		logger.Error("bot stopped", "err", err)
	}
}
