package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// NodeRepository is the read-only node directory
type NodeRepository struct {
	pool *pgxpool.Pool
}

func NewNodeRepository(pool *pgxpool.Pool) *NodeRepository {
	return &NodeRepository{pool: pool}
}

// ListActive returns the global active server pool ordered by sort_order, id
func (r *NodeRepository) ListActive(ctx context.Context) ([]models.ProxyNode, error) {
	query := `
		SELECT id, name, host, port, protocol,
		       COALESCE(method, ''), COALESCE(password, ''), COALESCE(uuid, ''), COALESCE(path, ''),
		       COALESCE(country, ''), COALESCE(city, ''), COALESCE(flag_emoji, ''),
		       is_active, sort_order
		FROM servers
		WHERE is_active = TRUE
		ORDER BY sort_order ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListForUser returns active EdgeTunnel nodes the user has been assigned to
func (r *NodeRepository) ListForUser(ctx context.Context, userID int64) ([]models.ProxyNode, error) {
	query := `
		SELECT en.id, en.name, en.host, en.port, en.protocol,
		       '', '', en.uuid, COALESCE(en.path, ''),
		       COALESCE(en.country, ''), COALESCE(en.city, ''), COALESCE(en.flag_emoji, ''),
		       en.is_active, en.sort_order
		FROM edgetunnel_nodes en
		JOIN edgetunnel_groups eg ON en.group_id = eg.id
		JOIN edgetunnel_user_nodes eun ON en.id = eun.node_id
		WHERE eun.user_id = $1
		  AND en.is_active = TRUE AND eg.is_active = TRUE AND eun.is_active = TRUE
		  AND (eun.expires_at IS NULL OR eun.expires_at > NOW())
		ORDER BY en.sort_order ASC, en.id ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNodes(rows pgx.Rows) ([]models.ProxyNode, error) {
	var nodes []models.ProxyNode
	for rows.Next() {
		var n models.ProxyNode
		err := rows.Scan(
			&n.ID, &n.Name, &n.Host, &n.Port, &n.Protocol,
			&n.Method, &n.Password, &n.UUID, &n.Path,
			&n.Country, &n.City, &n.FlagEmoji,
			&n.IsActive, &n.SortOrder,
		)
		if err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
