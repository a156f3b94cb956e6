package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wenwu/saas-platform/sublink-service/internal/config"
	"go.uber.org/zap"
)

// NewRedis connects to Redis. It returns nil, nil when no address is configured.
func NewRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return rdb, nil
}
