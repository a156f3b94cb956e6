package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// EdgeTunnelRepository manages group lookups and user-node assignments
type EdgeTunnelRepository struct {
	pool *pgxpool.Pool
}

func NewEdgeTunnelRepository(pool *pgxpool.Pool) *EdgeTunnelRepository {
	return &EdgeTunnelRepository{pool: pool}
}

// GetPlanGroupIDs returns the groups a plan is bound to. A missing or
// unparsable edgetunnel_group_ids column yields an empty slice.
func (r *EdgeTunnelRepository) GetPlanGroupIDs(ctx context.Context, planID int64) ([]int64, error) {
	var raw *string
	err := r.pool.QueryRow(ctx, `SELECT edgetunnel_group_ids FROM plans WHERE id = $1`, planID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan groups: %w", err)
	}
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(*raw), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

// GetDefaultGroupID returns the lowest-id active group
func (r *EdgeTunnelRepository) GetDefaultGroupID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM edgetunnel_groups
		WHERE is_active = TRUE
		ORDER BY id ASC
		LIMIT 1
	`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get default group: %w", err)
	}
	return id, nil
}

// GetActiveGroup returns an active group with its sync API credentials
func (r *EdgeTunnelRepository) GetActiveGroup(ctx context.Context, groupID int64) (*models.NodeGroup, error) {
	g := &models.NodeGroup{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), api_endpoint, api_key, max_users, is_active
		FROM edgetunnel_groups
		WHERE id = $1 AND is_active = TRUE
	`, groupID).Scan(&g.ID, &g.Name, &g.Description, &g.APIEndpoint, &g.APIKey, &g.MaxUsers, &g.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ListActiveNodeIDs returns the active node ids of a group
func (r *EdgeTunnelRepository) ListActiveNodeIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM edgetunnel_nodes
		WHERE group_id = $1 AND is_active = TRUE
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group nodes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AssignNode binds a user to a node. Existing assignments are left untouched.
func (r *EdgeTunnelRepository) AssignNode(ctx context.Context, userID, groupID, nodeID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO edgetunnel_user_nodes (user_id, group_id, node_id, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, node_id) DO NOTHING
	`, userID, groupID, nodeID)
	if err != nil {
		return false, fmt.Errorf("assign node: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
