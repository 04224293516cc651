package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mo-sawah/sawah-register/internal/app"
	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("init app", map[string]any{"error": err.Error()})
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]any{"port": cfg.AppPort})
		errCh <- a.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", map[string]any{"error": err.Error()})
		}
	case <-ctx.Done():
		logger.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", map[string]any{"error": err.Error()})
		}
	}
}
