package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/livercare-risk-server/internal/api"
	"github.com/livercare-risk-server/internal/auth"
	"github.com/livercare-risk-server/internal/config"
	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/events"
	"github.com/livercare-risk-server/internal/health"
	"github.com/livercare-risk-server/internal/history"
	"github.com/livercare-risk-server/internal/logging"
	"github.com/livercare-risk-server/internal/metrics"
	"github.com/livercare-risk-server/internal/service"
	"github.com/livercare-risk-server/pkg/external"
)

const (
	historyFlushInterval = 30 * time.Second
	historyFlushTimeout  = 5 * time.Second
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, configManager, logger, os.Args[2:]); err != nil {
			logger.WithError(err).Fatal("Migration failed")
		}
		return
	}

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"database":        cfg.Database.Driver,
		"prediction_mode": cfg.Prediction.Mode,
	}).Info("Starting LiverCare risk server")

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	m := metrics.New()
	checker := health.NewChecker(cfg.MCP.ServerVersion, 0, logger)

	store, err := openStorage(ctx, configManager, checker, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fallback, err := history.NewFallbackStore(store.history, cfg.History.BufferSize, logger, m)
	if err != nil {
		return err
	}
	go flushHistory(ctx, fallback, logger)

	cache := openPredictionCache(cfg.Cache, checker, logger)
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	predictor, err := external.NewPredictor(cfg.Prediction, cache, logger)
	if err != nil {
		return fmt.Errorf("failed to configure prediction service: %w", err)
	}
	if breaker, ok := external.Breaker(predictor); ok {
		checker.Register(health.BreakerCheck("prediction", breaker.State))
	}

	gateway := service.NewPredictionGateway(logger,
		service.NewRiskScorer(service.NewNoiseSource(cfg.Prediction.NoiseSeed)),
		service.WithPredictor(predictor),
		service.WithTimeout(cfg.Prediction.Timeout),
		service.WithObserver(m),
	)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     jwtSecret(configManager, logger),
		Issuer:     cfg.Auth.Issuer,
		Expiration: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	server, err := api.NewServer(configManager, api.Dependencies{
		Gateway:  gateway,
		Accounts: service.NewAccountService(logger, store.users, tokens, cfg.Auth.BcryptCost),
		Tokens:   tokens,
		History:  fallback,
		Blog:     store.blog,
		Chatbot:  service.NewChatbot(service.NewNoiseSource(0)),
		Events:   publisher,
		Metrics:  m,
		Health:   checker,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	err = server.Start(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyFlushTimeout)
	defer cancel()
	if n, ferr := fallback.Flush(flushCtx); ferr != nil {
		logger.WithError(ferr).WithField("pending", fallback.Pending()).Warn("Buffered history records dropped at shutdown")
	} else if n > 0 {
		logger.WithField("flushed", n).Info("Buffered history records written")
	}
	return err
}

// openPredictionCache prefers Redis and falls back to an in-process LRU.
func openPredictionCache(cfg domain.CacheConfig, checker *health.Checker, logger *logrus.Logger) external.PredictionCache {
	if cfg.RedisURL != "" {
		redisCache, err := external.NewRedisPredictionCache(cfg)
		if err == nil {
			checker.Register(health.RedisCheck("redis", redisCache.Client()))
			logger.Info("Using Redis prediction cache")
			return redisCache
		}
		logger.WithError(err).Warn("Redis unavailable, using in-memory prediction cache")
	}
	return external.NewMemoryPredictionCache(cfg.MemoryMaxItems, cfg.DefaultTTL)
}

// jwtSecret returns the configured secret. Outside production a missing
// secret is replaced by a per-process one, so sessions end on restart.
func jwtSecret(configManager domain.ConfigManager, logger *logrus.Logger) string {
	secret := configManager.GetConfig().Auth.JWTSecret
	if secret == "" && !configManager.IsProduction() {
		logger.Warn("auth.jwt_secret is not set, using an ephemeral secret")
		secret = uuid.NewString()
	}
	return secret
}

func flushHistory(ctx context.Context, store *history.FallbackStore, logger *logrus.Logger) {
	ticker := time.NewTicker(historyFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if store.Pending() == 0 {
				continue
			}
			if n, err := store.Flush(ctx); err != nil {
				logger.WithError(err).WithField("pending", store.Pending()).Warn("History flush failed")
			} else if n > 0 {
				logger.WithField("flushed", n).Info("Buffered history records written")
			}
		}
	}
}
