package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"proptrack/internal/amqp"
	"proptrack/internal/auth"
	"proptrack/internal/backend"
	"proptrack/internal/cache"
	"proptrack/internal/config"
	apphttp "proptrack/internal/http"
	applog "proptrack/internal/log"
	"proptrack/internal/services"
	"proptrack/internal/uploads"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence backend
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "type", backendCfg.Type)
		os.Exit(1)
	}
	defer result.Cleanup()

	// Receipt store
	receipts, err := uploads.NewStore(cfg.UploadDir, cfg.MaxUploadSize,
		logger.WithComponent(applog.ComponentUploads).Logger)
	if err != nil {
		logger.Error("Failed to initialize receipt store", "error", err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	// AMQP publisher (optional)
	var publisher services.ExportPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	// Report cache: Redis when configured, in-process LRU otherwise.
	var reportCache cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			5*time.Minute, logger.WithComponent(applog.ComponentCache).Logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, falling back to in-process cache", "error", err)
		} else {
			defer redisStore.Close()
			reportCache = redisStore
			logger.Info("Initialized Redis report cache", "addr", cfg.RedisAddr)
		}
	}

	expenseService := services.NewExpenseService(result.Repo, publisher, receipts)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenExpiry)

	srv := apphttp.NewServer(cfg, apphttp.Deps{
		Repo:        result.Repo,
		Expenses:    expenseService,
		Tokens:      tokens,
		Receipts:    receipts,
		ReportCache: reportCache,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting proptrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", publisher != nil,
		"redis_cache", reportCache != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
