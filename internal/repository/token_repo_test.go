package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/sublink-service/internal/db"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// newTestPool connects to TEST_DATABASE_URL inside a throwaway schema with
// the service tables migrated.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "sublink_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func newRecord(userID, subscriptionID int64, createdAt time.Time) *models.SubscriptionToken {
	return &models.SubscriptionToken{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		TokenHash:      fmt.Sprintf("%064x", createdAt.UnixNano()+userID*1000+subscriptionID),
		CreatedAt:      createdAt.Truncate(time.Second),
		ExpiresAt:      createdAt.Add(24 * time.Hour).Truncate(time.Second),
	}
}

func TestTokenRepository_RotateKeepsOneActiveRecord(t *testing.T) {
	repo := NewTokenRepository(newTestPool(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := newRecord(1, 10, now)
	require.NoError(t, repo.Rotate(ctx, first, now))
	assert.NotZero(t, first.ID)

	second := newRecord(1, 10, now.Add(time.Second))
	require.NoError(t, repo.Rotate(ctx, second, now.Add(time.Second)))

	active, err := repo.FindActive(ctx, 1, 10, now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.True(t, active.CreatedAt.Equal(second.CreatedAt))

	_, err = repo.FindActiveByHash(ctx, 1, 10, first.TokenHash, now)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := repo.FindActiveByHash(ctx, 1, 10, second.TokenHash, now)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	records, err := repo.ListByUser(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].IsActive)
	assert.False(t, records[1].IsActive)
	assert.NotNil(t, records[1].RevokedAt)
}

func TestTokenRepository_ActivePairIsUnique(t *testing.T) {
	pool := newTestPool(t)
	repo := NewTokenRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Rotate(ctx, newRecord(2, 20, now), now))

	dup := newRecord(2, 20, now.Add(time.Second))
	_, err := pool.Exec(ctx, `
		INSERT INTO subscription_tokens (user_id, subscription_id, token_hash, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, dup.UserID, dup.SubscriptionID, dup.TokenHash, dup.CreatedAt, dup.ExpiresAt)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "err = %v", err)
	assert.Equal(t, uniqueViolation, pgErr.Code)
}

func TestTokenRepository_ConcurrentRotateConflicts(t *testing.T) {
	pool := newTestPool(t)
	repo := NewTokenRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	// 未提交的事务先插入一条有效记录
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	winner := newRecord(3, 30, now)
	_, err = tx.Exec(ctx, `
		INSERT INTO subscription_tokens (user_id, subscription_id, token_hash, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, winner.UserID, winner.SubscriptionID, winner.TokenHash, winner.CreatedAt, winner.ExpiresAt)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- repo.Rotate(ctx, newRecord(3, 30, now.Add(time.Second)), now)
	}()

	// Rotate's insert waits on the uncommitted row
	require.Eventually(t, func() bool {
		var waiting int
		err := pool.QueryRow(ctx, `
			SELECT count(*) FROM pg_stat_activity
			WHERE datname = current_database() AND wait_event_type = 'Lock'
		`).Scan(&waiting)
		return err == nil && waiting > 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, tx.Commit(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrConflict)
	case <-time.After(5 * time.Second):
		t.Fatal("Rotate did not return")
	}

	active, err := repo.FindActive(ctx, 3, 30, now)
	require.NoError(t, err)
	assert.Equal(t, winner.TokenHash, active.TokenHash)
}

func TestTokenRepository_RevokeScoping(t *testing.T) {
	repo := NewTokenRepository(newTestPool(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Rotate(ctx, newRecord(4, 40, now), now))
	require.NoError(t, repo.Rotate(ctx, newRecord(4, 41, now), now))
	require.NoError(t, repo.Rotate(ctx, newRecord(5, 40, now), now))

	sub := int64(40)
	n, err := repo.Revoke(ctx, 4, &sub, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindActive(ctx, 4, 40, now)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindActive(ctx, 4, 41, now)
	assert.NoError(t, err)

	n, err = repo.Revoke(ctx, 4, nil, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// other users are untouched
	_, err = repo.FindActive(ctx, 5, 40, now)
	assert.NoError(t, err)
}

func TestTokenRepository_DeleteStale(t *testing.T) {
	repo := NewTokenRepository(newTestPool(t))
	ctx := context.Background()
	now := time.Now().UTC()
	old := now.Add(-100 * 24 * time.Hour)

	require.NoError(t, repo.Rotate(ctx, newRecord(6, 60, old), old))
	require.NoError(t, repo.Rotate(ctx, newRecord(6, 61, now), now))

	n, err := repo.DeleteStale(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := repo.ListByUser(ctx, 6, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(61), records[0].SubscriptionID)
}
