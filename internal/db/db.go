package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/config"
	"go.uber.org/zap"
)

// NewPool connects to PostgreSQL and pins every connection's search_path to the configured schema
func NewPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5

	schema := cfg.Database.Schema
	if schema != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
		zap.String("schema", schema))

	return pool, nil
}

// schemaStatements create the tables this service owns. Collaborator tables
// (user_subscriptions, plans, servers, edgetunnel_*) are managed elsewhere.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subscription_tokens (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subscription_id BIGINT NOT NULL,
		token_hash CHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscription_tokens_pair
		ON subscription_tokens (user_id, subscription_id, is_active)`,
	// 同一 (user, subscription) 至多一条有效记录; 建索引前先停用旧的重复记录
	`UPDATE subscription_tokens t
		SET is_active = FALSE, revoked_at = NOW()
		WHERE t.is_active AND EXISTS (
			SELECT 1 FROM subscription_tokens n
			WHERE n.user_id = t.user_id AND n.subscription_id = t.subscription_id
			  AND n.is_active AND (n.created_at, n.id) > (t.created_at, t.id)
		)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_subscription_tokens_active_pair
		ON subscription_tokens (user_id, subscription_id) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_subscription_tokens_hash
		ON subscription_tokens (token_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_subscription_tokens_expires_at
		ON subscription_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS subscription_token_logs (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subscription_id BIGINT,
		action TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscription_token_logs_user
		ON subscription_token_logs (user_id, created_at DESC)`,
}

// Migrate creates the token tables if they are missing
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
