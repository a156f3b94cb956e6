package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const uniqueViolation = "23505"

const tokenColumns = `id, user_id, subscription_id, token_hash,
	created_at, expires_at, is_active, revoked_at`

// FindActive returns the newest active, unexpired record for a (user, subscription) pair
func (r *TokenRepository) FindActive(ctx context.Context, userID, subscriptionID int64, now time.Time) (*models.SubscriptionToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscription_tokens
		WHERE user_id = $1 AND subscription_id = $2
		  AND is_active = TRUE AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, tokenColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, userID, subscriptionID, now))
}

// FindActiveByHash looks up the active record matching a token fingerprint
func (r *TokenRepository) FindActiveByHash(ctx context.Context, userID, subscriptionID int64, tokenHash string, now time.Time) (*models.SubscriptionToken, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscription_tokens
		WHERE user_id = $1 AND subscription_id = $2 AND token_hash = $3
		  AND is_active = TRUE AND expires_at > $4
		LIMIT 1
	`, tokenColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, userID, subscriptionID, tokenHash, now))
}

// Rotate deactivates every active record of the pair and inserts rec, in one transaction.
// rec.ID is set on success. ErrConflict means a concurrent Rotate for the same pair
// committed first.
func (r *TokenRepository) Rotate(ctx context.Context, rec *models.SubscriptionToken, now time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE subscription_tokens
			SET is_active = FALSE, revoked_at = $3
			WHERE user_id = $1 AND subscription_id = $2 AND is_active = TRUE
		`, rec.UserID, rec.SubscriptionID, now)
		if err != nil {
			return fmt.Errorf("deactivate tokens: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO subscription_tokens (
				user_id, subscription_id, token_hash, created_at, expires_at, is_active
			) VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING id
		`, rec.UserID, rec.SubscriptionID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt).Scan(&rec.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("insert token: %w", ErrConflict)
			}
			return fmt.Errorf("insert token: %w", err)
		}
		rec.IsActive = true
		return nil
	})
}

// Revoke deactivates a user's active records, scoped to one subscription when subscriptionID is set
func (r *TokenRepository) Revoke(ctx context.Context, userID int64, subscriptionID *int64, now time.Time) (int64, error) {
	query := `
		UPDATE subscription_tokens
		SET is_active = FALSE, revoked_at = $2
		WHERE user_id = $1 AND is_active = TRUE
		  AND ($3::BIGINT IS NULL OR subscription_id = $3)
	`
	tag, err := r.pool.Exec(ctx, query, userID, now, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStale removes records that expired, or were revoked, before cutoff
func (r *TokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM subscription_tokens
		WHERE expires_at < $1 OR (is_active = FALSE AND revoked_at < $1)
	`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns a user's records, newest first
func (r *TokenRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.SubscriptionToken, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM subscription_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tokenColumns)
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var results []*models.SubscriptionToken
	for rows.Next() {
		t := &models.SubscriptionToken{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.SubscriptionID, &t.TokenHash,
			&t.CreatedAt, &t.ExpiresAt, &t.IsActive, &t.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func (r *TokenRepository) scanOne(row pgx.Row) (*models.SubscriptionToken, error) {
	t := &models.SubscriptionToken{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.SubscriptionID, &t.TokenHash,
		&t.CreatedAt, &t.ExpiresAt, &t.IsActive, &t.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}
