package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// SubscriptionRepository reads subscriptions owned by the billing collaborator
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

const subscriptionSelect = `
	SELECT us.id, us.user_id, us.plan_id, COALESCE(p.name, ''), us.status,
	       us.start_date, us.end_date, us.traffic_used, us.traffic_total,
	       COALESCE(p.traffic_gb, 0), COALESCE(us.device_limit, p.device_limit, 0)
	FROM user_subscriptions us
	LEFT JOIN plans p ON us.plan_id = p.id
`

// FindActive returns the subscription if it belongs to userID and has active status.
// End date is not checked here.
func (r *SubscriptionRepository) FindActive(ctx context.Context, userID, subscriptionID int64) (*models.Subscription, error) {
	query := subscriptionSelect + `
	WHERE us.user_id = $1 AND us.id = $2 AND us.status = $3
	LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, userID, subscriptionID, models.SubscriptionStatusActive))
}

// FindLatestActive returns the user's active subscription with the latest end date
func (r *SubscriptionRepository) FindLatestActive(ctx context.Context, userID int64) (*models.Subscription, error) {
	query := subscriptionSelect + `
	WHERE us.user_id = $1 AND us.status = $2
	ORDER BY us.end_date DESC
	LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, userID, models.SubscriptionStatusActive))
}

func (r *SubscriptionRepository) scanOne(row pgx.Row) (*models.Subscription, error) {
	s := &models.Subscription{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &s.Status,
		&s.StartDate, &s.EndDate, &s.TrafficUsed, &s.TrafficTotal,
		&s.TrafficGB, &s.DeviceLimit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return s, nil
}
