package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// LogRepository stores the token lifecycle audit trail
type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create creates a new token log entry
func (r *LogRepository) Create(ctx context.Context, entry *models.TokenLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO subscription_token_logs (id, user_id, subscription_id, action, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.SubscriptionID, entry.Action, entry.Message, entry.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert token log: %w", err)
	}

	return nil
}

// GetByUserID retrieves logs for a user
func (r *LogRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.TokenLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, subscription_id, action, message, metadata, created_at
		FROM subscription_token_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query token logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.TokenLog
	for rows.Next() {
		entry := &models.TokenLog{}
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.SubscriptionID, &entry.Action,
			&entry.Message, &entry.Metadata, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan token log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// LogAction is a helper to log an action with metadata
func (r *LogRepository) LogAction(ctx context.Context, userID int64, subscriptionID *int64, action, message string, metadata map[string]interface{}) error {
	return r.Create(ctx, &models.TokenLog{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Action:         action,
		Message:        message,
		Metadata:       metadata,
	})
}
