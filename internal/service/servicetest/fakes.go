// Package servicetest provides in-memory stores for exercising the service
// layer without PostgreSQL.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
)

// TokenStore mirrors repository.TokenRepository
type TokenStore struct {
	mu      sync.Mutex
	nextID  int64
	Records []*models.SubscriptionToken
	// Err, when set, is returned by every method
	Err    error
	Writes int
	// BeforeRotate, when set, runs ahead of every Rotate; a non-nil result
	// aborts the Rotate with that error
	BeforeRotate func() error
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) FindActive(ctx context.Context, userID, subscriptionID int64, now time.Time) (*models.SubscriptionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var best *models.SubscriptionToken
	for _, r := range s.Records {
		if r.UserID == userID && r.SubscriptionID == subscriptionID && r.IsActive && r.ExpiresAt.After(now) {
			if best == nil || !r.CreatedAt.Before(best.CreatedAt) {
				best = r
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *TokenStore) FindActiveByHash(ctx context.Context, userID, subscriptionID int64, tokenHash string, now time.Time) (*models.SubscriptionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, r := range s.Records {
		if r.UserID == userID && r.SubscriptionID == subscriptionID && r.TokenHash == tokenHash &&
			r.IsActive && r.ExpiresAt.After(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *TokenStore) Rotate(ctx context.Context, rec *models.SubscriptionToken, now time.Time) error {
	if s.BeforeRotate != nil {
		if err := s.BeforeRotate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, r := range s.Records {
		if r.UserID == rec.UserID && r.SubscriptionID == rec.SubscriptionID && r.IsActive {
			r.IsActive = false
			revokedAt := now
			r.RevokedAt = &revokedAt
		}
	}
	s.nextID++
	rec.ID = s.nextID
	rec.IsActive = true
	cp := *rec
	s.Records = append(s.Records, &cp)
	s.Writes++
	return nil
}

func (s *TokenStore) Revoke(ctx context.Context, userID int64, subscriptionID *int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, r := range s.Records {
		if r.UserID != userID || !r.IsActive {
			continue
		}
		if subscriptionID != nil && r.SubscriptionID != *subscriptionID {
			continue
		}
		r.IsActive = false
		revokedAt := now
		r.RevokedAt = &revokedAt
		n++
	}
	if n > 0 {
		s.Writes++
	}
	return n, nil
}

func (s *TokenStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	kept := s.Records[:0]
	var n int64
	for _, r := range s.Records {
		stale := r.ExpiresAt.Before(cutoff) || (!r.IsActive && r.RevokedAt != nil && r.RevokedAt.Before(cutoff))
		if stale {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.Records = kept
	return n, nil
}

func (s *TokenStore) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.SubscriptionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*models.SubscriptionToken
	for i := len(s.Records) - 1; i >= 0; i-- {
		if s.Records[i].UserID == userID {
			cp := *s.Records[i]
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ActiveCount counts active records of a pair regardless of expiry
func (s *TokenStore) ActiveCount(userID, subscriptionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Records {
		if r.UserID == userID && r.SubscriptionID == subscriptionID && r.IsActive {
			n++
		}
	}
	return n
}

// AuditLog collects audit entries
type AuditLog struct {
	mu      sync.Mutex
	Entries []models.TokenLog
}

func (a *AuditLog) LogAction(ctx context.Context, userID int64, subscriptionID *int64, action, message string, metadata map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Entries = append(a.Entries, models.TokenLog{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Action:         action,
		Message:        message,
		Metadata:       metadata,
	})
	return nil
}

func (a *AuditLog) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.TokenLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.TokenLog
	for i := len(a.Entries) - 1; i >= 0; i-- {
		if a.Entries[i].UserID == userID {
			e := a.Entries[i]
			out = append(out, &e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Actions lists recorded action names in order
func (a *AuditLog) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		out[i] = e.Action
	}
	return out
}

// SubscriptionStore mirrors repository.SubscriptionRepository
type SubscriptionStore struct {
	Subscriptions []models.Subscription
	Err           error
}

func (s *SubscriptionStore) FindActive(ctx context.Context, userID, subscriptionID int64) (*models.Subscription, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, sub := range s.Subscriptions {
		if sub.UserID == userID && sub.ID == subscriptionID && sub.Status == models.SubscriptionStatusActive {
			cp := sub
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *SubscriptionStore) FindLatestActive(ctx context.Context, userID int64) (*models.Subscription, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var best *models.Subscription
	for i := range s.Subscriptions {
		sub := &s.Subscriptions[i]
		if sub.UserID == userID && sub.Status == models.SubscriptionStatusActive {
			if best == nil || sub.EndDate.After(best.EndDate) {
				best = sub
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// NodeStore mirrors repository.NodeRepository
type NodeStore struct {
	Nodes []models.ProxyNode
	// UserNodes backs ListForUser
	UserNodes map[int64][]models.ProxyNode
	Err       error
}

func (s *NodeStore) ListActive(ctx context.Context) ([]models.ProxyNode, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.ProxyNode
	for _, n := range s.Nodes {
		if n.IsActive {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *NodeStore) ListForUser(ctx context.Context, userID int64) ([]models.ProxyNode, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.ProxyNode(nil), s.UserNodes[userID]...), nil
}

// EdgeTunnelStore mirrors repository.EdgeTunnelRepository
type EdgeTunnelStore struct {
	PlanGroups map[int64][]int64
	Groups     []models.NodeGroup
	GroupNodes map[int64][]int64
	// Assigned holds (user, node) pairs in insertion order
	Assigned [][2]int64
	Err      error
}

func (s *EdgeTunnelStore) GetPlanGroupIDs(ctx context.Context, planID int64) ([]int64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.PlanGroups[planID], nil
}

func (s *EdgeTunnelStore) GetDefaultGroupID(ctx context.Context) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	var best int64
	for _, g := range s.Groups {
		if g.IsActive && (best == 0 || g.ID < best) {
			best = g.ID
		}
	}
	if best == 0 {
		return 0, repository.ErrNotFound
	}
	return best, nil
}

func (s *EdgeTunnelStore) GetActiveGroup(ctx context.Context, groupID int64) (*models.NodeGroup, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, g := range s.Groups {
		if g.ID == groupID && g.IsActive {
			cp := g
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *EdgeTunnelStore) ListActiveNodeIDs(ctx context.Context, groupID int64) ([]int64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.GroupNodes[groupID], nil
}

func (s *EdgeTunnelStore) AssignNode(ctx context.Context, userID, groupID, nodeID int64) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	for _, a := range s.Assigned {
		if a[0] == userID && a[1] == nodeID {
			return false, nil
		}
	}
	s.Assigned = append(s.Assigned, [2]int64{userID, nodeID})
	return true, nil
}

// UUIDRegistrar records EdgeTunnel API calls
type UUIDRegistrar struct {
	mu    sync.Mutex
	Calls []RegistrarCall
	// FailGroups makes AddUUID fail for these group ids
	FailGroups map[int64]bool
}

type RegistrarCall struct {
	GroupID int64
	UUID    string
}

var ErrRegistrarDown = errors.New("edgetunnel api unavailable")

func (r *UUIDRegistrar) AddUUID(ctx context.Context, group *models.NodeGroup, userUUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RegistrarCall{GroupID: group.ID, UUID: userUUID})
	if r.FailGroups[group.ID] {
		return ErrRegistrarDown
	}
	return nil
}
