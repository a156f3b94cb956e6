// Command cleanup deletes stale subscription token records. Meant for cron.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/config"
	"github.com/wenwu/saas-platform/sublink-service/internal/db"
	"github.com/wenwu/saas-platform/sublink-service/internal/logger"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"github.com/wenwu/saas-platform/sublink-service/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	days := flag.Int("days", cfg.Subscription.RetentionDays, "keep records expired or revoked within this many days")
	flag.Parse()

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	tokens := service.NewTokenManager(cfg.Subscription.TokenSecret, repository.NewTokenRepository(pool), nil, log)

	deleted, err := tokens.CleanupExpired(ctx, *days)
	if err != nil {
		log.Error("cleanup failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("cleanup finished", zap.Int64("deleted", deleted), zap.Int("days_to_keep", *days))
}
