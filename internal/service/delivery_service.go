package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/proxyconf"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"go.uber.org/zap"
)

// SubscriptionStore reads subscriptions owned by billing
type SubscriptionStore interface {
	FindActive(ctx context.Context, userID, subscriptionID int64) (*models.Subscription, error)
	FindLatestActive(ctx context.Context, userID int64) (*models.Subscription, error)
}

// NodeStore reads the proxy node directory
type NodeStore interface {
	ListActive(ctx context.Context) ([]models.ProxyNode, error)
	ListForUser(ctx context.Context, userID int64) ([]models.ProxyNode, error)
}

// TokenVerifier authenticates subscription tokens
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*SubscriptionClaims, error)
}

// NodeScope selects which node set a delivery is rendered from
type NodeScope int

const (
	// ScopeAllNodes is every active server
	ScopeAllNodes NodeScope = iota
	// ScopeAssignedNodes is the EdgeTunnel nodes assigned to the token's user
	ScopeAssignedNodes
)

// Delivery is a rendered subscription ready to serve
type Delivery struct {
	Format   proxyconf.Format
	Document proxyconf.Document
	Filename string
}

// DeliveryService serves client configs for subscription tokens
type DeliveryService struct {
	tokens TokenVerifier
	subs   SubscriptionStore
	nodes  NodeStore
	logger *zap.Logger
	now    func() time.Time
}

func NewDeliveryService(tokens TokenVerifier, subs SubscriptionStore, nodes NodeStore, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{
		tokens: tokens,
		subs:   subs,
		nodes:  nodes,
		logger: logger.Named("delivery"),
		now:    time.Now,
	}
}

// Deliver authenticates token and renders the subscription in format.
// The format is validated before the token so a bad format is always a 400.
func (s *DeliveryService) Deliver(ctx context.Context, format, token string, scope NodeScope) (*Delivery, error) {
	// 1. Format
	f, err := proxyconf.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	// 2. Token
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	// 3. Subscription, re-checking the end date against clock skew
	sub, err := s.subs.FindActive(ctx, claims.UserID, claims.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	now := s.now()
	if sub.IsExpired(now) {
		return nil, ErrSubscriptionExpired
	}

	// 4. Nodes
	var nodes []models.ProxyNode
	switch scope {
	case ScopeAssignedNodes:
		nodes, err = s.nodes.ListForUser(ctx, claims.UserID)
	default:
		nodes, err = s.nodes.ListActive(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	// 5. Render
	doc, err := proxyconf.Render(f, proxyconf.Input{
		Nodes:       nodes,
		PlanName:    sub.PlanName,
		ExpiresAt:   sub.EndDate,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("subscription delivered",
		zap.Int64("user_id", claims.UserID),
		zap.Int64("subscription_id", claims.SubscriptionID),
		zap.String("format", string(f)),
		zap.Int("nodes", len(nodes)))

	return &Delivery{Format: f, Document: doc, Filename: doc.Filename(sub.PlanName, f)}, nil
}

// DeliverUniversal renders every active node as a base64 link list.
// It performs no authentication.
func (s *DeliveryService) DeliverUniversal(ctx context.Context) (*Delivery, error) {
	nodes, err := s.nodes.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	doc, err := proxyconf.Render(proxyconf.FormatUniversal, proxyconf.Input{Nodes: nodes, GeneratedAt: s.now()})
	if err != nil {
		return nil, err
	}
	return &Delivery{
		Format:   proxyconf.FormatUniversal,
		Document: doc,
		Filename: doc.Filename("subscription", proxyconf.FormatUniversal),
	}, nil
}
