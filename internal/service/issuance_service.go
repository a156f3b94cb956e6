package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/proxyconf"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"go.uber.org/zap"
)

// TokenIssuer is the issuing half of TokenManager
type TokenIssuer interface {
	GetOrCreate(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (string, error)
	Reissue(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (*IssuedToken, error)
}

// NodeAssigner binds a user to the node groups of a plan
type NodeAssigner interface {
	AutoAssign(ctx context.Context, userID, planID int64) (*AssignmentResult, error)
}

// IssuanceService hands out subscription links to users and to billing
type IssuanceService struct {
	tokens        TokenIssuer
	subs          SubscriptionStore
	assigner      NodeAssigner
	maxExpiryDays int
	logger        *zap.Logger
	now           func() time.Time
}

func NewIssuanceService(
	tokens TokenIssuer,
	subs SubscriptionStore,
	assigner NodeAssigner,
	maxExpiryDays int,
	logger *zap.Logger,
) *IssuanceService {
	return &IssuanceService{
		tokens:        tokens,
		subs:          subs,
		assigner:      assigner,
		maxExpiryDays: maxExpiryDays,
		logger:        logger.Named("issuance"),
		now:           time.Now,
	}
}

// IssueForSubscription is called by billing once a payment or redemption
// has activated a subscription. Node assignment is best-effort: its failure
// is reported but never fails the call. Links are rooted at baseURL.
func (s *IssuanceService) IssueForSubscription(ctx context.Context, baseURL string, userID, subscriptionID int64) (*models.IssueTokenResponse, error) {
	sub, err := s.activeSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetOrCreate(ctx, userID, subscriptionID, sub.EndDate, s.maxExpiryDays)
	if err != nil {
		return nil, err
	}

	resp := &models.IssueTokenResponse{
		Token: token,
		Links: BuildLinks(baseURL, token),
	}

	if s.assigner != nil {
		result, err := s.assigner.AutoAssign(ctx, userID, sub.PlanID)
		if result != nil {
			resp.AssignedGroups = result.GroupIDs
		}
		if err != nil {
			s.logger.Warn("edgetunnel auto-assign failed",
				zap.Int64("user_id", userID),
				zap.Int64("plan_id", sub.PlanID),
				zap.Error(err))
			resp.AssignmentError = err.Error()
		}
	}

	return resp, nil
}

// UserLinks returns the stable links for the user's newest active subscription
func (s *IssuanceService) UserLinks(ctx context.Context, baseURL string, userID int64) (*models.SubscriptionLinksResponse, error) {
	sub, err := s.latestSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetOrCreate(ctx, userID, sub.ID, sub.EndDate, s.maxExpiryDays)
	if err != nil {
		return nil, err
	}

	return &models.SubscriptionLinksResponse{
		Subscription: summarize(sub),
		Links:        BuildLinks(baseURL, token),
	}, nil
}

// RefreshUserToken rotates the user's token, invalidating every link handed out before
func (s *IssuanceService) RefreshUserToken(ctx context.Context, baseURL string, userID int64) (*models.SubscriptionLinksResponse, error) {
	sub, err := s.latestSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	issued, err := s.tokens.Reissue(ctx, userID, sub.ID, sub.EndDate, s.maxExpiryDays)
	if err != nil {
		return nil, err
	}

	return &models.SubscriptionLinksResponse{
		Subscription: summarize(sub),
		Links:        BuildLinks(baseURL, issued.Token),
		Token:        issued.Token,
		ExpiresAt:    issued.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *IssuanceService) activeSubscription(ctx context.Context, userID, subscriptionID int64) (*models.Subscription, error) {
	sub, err := s.subs.FindActive(ctx, userID, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub.IsExpired(s.now()) {
		return nil, ErrSubscriptionExpired
	}
	return sub, nil
}

func (s *IssuanceService) latestSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	sub, err := s.subs.FindLatestActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub.IsExpired(s.now()) {
		return nil, ErrSubscriptionExpired
	}
	return sub, nil
}

// BuildLinks returns the per-client URLs for token. Clash gets its
// one-click install scheme.
func BuildLinks(baseURL, token string) models.SubscriptionLinks {
	baseURL = strings.TrimRight(baseURL, "/")
	link := func(f proxyconf.Format) string {
		return fmt.Sprintf("%s/api/subscription/%s/%s", baseURL, f, token)
	}
	return models.SubscriptionLinks{
		Universal:    link(proxyconf.FormatUniversal),
		Clash:        "clash://install-config?url=" + url.QueryEscape(link(proxyconf.FormatClash)),
		V2Ray:        link(proxyconf.FormatV2Ray),
		Shadowrocket: link(proxyconf.FormatShadowrocket),
		Quantumult:   link(proxyconf.FormatQuantumult),
		Surge:        link(proxyconf.FormatSurge),
	}
}

func summarize(sub *models.Subscription) models.SubscriptionSummary {
	return models.SubscriptionSummary{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		PlanName:       sub.PlanName,
		EndDate:        sub.EndDate.UTC().Format(time.RFC3339),
		TrafficUsed:    sub.TrafficUsed,
		TrafficTotal:   sub.TrafficTotal,
		DeviceLimit:    sub.DeviceLimit,
	}
}
