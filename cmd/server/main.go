package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Colauncha/Fixserv-sub001/internal/app"
	"github.com/Colauncha/Fixserv-sub001/internal/config"
	"github.com/Colauncha/Fixserv-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("fixserv-core", cfg.LogLevel)
	log.Info("starting marketplace core",
		slog.String("environment", cfg.Environment),
		slog.Int("order_http_port", cfg.OrderHTTPPort),
		slog.Int("review_http_port", cfg.ReviewHTTPPort),
		slog.String("event_bus", cfg.EventBus),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("marketplace core stopped")
}
