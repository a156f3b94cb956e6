package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/client"
	"github.com/wenwu/saas-platform/sublink-service/internal/config"
	"github.com/wenwu/saas-platform/sublink-service/internal/db"
	"github.com/wenwu/saas-platform/sublink-service/internal/http"
	"github.com/wenwu/saas-platform/sublink-service/internal/logger"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"github.com/wenwu/saas-platform/sublink-service/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting sublink service")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Initialize database
	pool, err := db.NewPool(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Redis is optional; without it rate limits are per process
	rdb, err := db.NewRedis(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Initialize repositories
	tokenRepo := repository.NewTokenRepository(pool)
	logRepo := repository.NewLogRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)
	nodeRepo := repository.NewNodeRepository(pool)
	edgeRepo := repository.NewEdgeTunnelRepository(pool)

	// Initialize clients
	edgeClient := client.NewEdgeTunnelClient(10 * time.Second)

	// Initialize services
	tokenManager := service.NewTokenManager(cfg.Subscription.TokenSecret, tokenRepo, logRepo, log)
	assigner := service.NewAssignmentService(edgeRepo, edgeClient, log)

	svcs := http.Services{
		Delivery: service.NewDeliveryService(tokenManager, subRepo, nodeRepo, log),
		Issuance: service.NewIssuanceService(tokenManager, subRepo, assigner, cfg.Subscription.MaxExpiryDays, log),
		Tokens:   tokenManager,
		Inspect:  service.NewInspectService(tokenRepo, logRepo),
	}

	// Initialize HTTP server
	server := http.NewServer(cfg, svcs, rdb, log)

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.Run(); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}

	log.Info("server exited")
}
