package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"adscrub/internal/api"
	"adscrub/internal/browser"
	"adscrub/internal/classify"
	"adscrub/internal/config"
	"adscrub/internal/monitoring"
	"adscrub/internal/scan"
	"adscrub/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	redisStore := storage.NewRedisStore(cfg.RedisAddr)

	metrics := monitoring.NewMetrics()

	// Remote classifier adapter
	classifier := classify.NewClient(cfg.ClassifierURL, classify.Options{
		Timeout:    time.Duration(cfg.ClassifierTimeout) * time.Second,
		MaxRetries: cfg.MaxRetries,
		MaxBatch:   cfg.MaxCandidates,
	}, logger)

	// Core scan engine
	engineCfg := scan.DefaultConfig()
	engineCfg.MaxCandidates = cfg.MaxCandidates
	engineCfg.RequireStrongSignal = cfg.RequireStrongSignal
	engineCfg.Debounce = time.Duration(cfg.DebounceMs) * time.Millisecond
	scanner := scan.NewScanner(engineCfg, classifier, redisStore, pgStore, metrics, logger)

	// Browser driver and page-scan runner
	driver := browser.NewDriver(logger)
	runner := browser.NewRunner(cfg, driver, scanner, logger)

	// Initialize API Server
	server := api.NewServer(cfg, runner, classifier, pgStore, redisStore, metrics, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	pgStore.Close()
	logger.Info("server exiting")
}
