package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/b1ank002/ZappkaApp/internal/app"
	"github.com/b1ank002/ZappkaApp/internal/config"
	"github.com/b1ank002/ZappkaApp/internal/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", map[string]any{
			"error": err.Error(),
		})
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("zappka bridge started", map[string]any{
		"port":        cfg.AppPort,
		"environment": cfg.AppEnv,
		"version":     app.Version,
	})

	<-ctx.Done()

	logger.Info("shutdown signal received", nil)

	// Long enough for a pending redemption to be mined and recorded.
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.RedeemTimeout+10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("zappka bridge stopped cleanly", nil)
}
