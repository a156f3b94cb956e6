package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultMaxExpiryDays = 30
	DefaultRetentionDays = 90
)

// TokenStore persists token records
type TokenStore interface {
	FindActive(ctx context.Context, userID, subscriptionID int64, now time.Time) (*models.SubscriptionToken, error)
	FindActiveByHash(ctx context.Context, userID, subscriptionID int64, tokenHash string, now time.Time) (*models.SubscriptionToken, error)
	Rotate(ctx context.Context, rec *models.SubscriptionToken, now time.Time) error
	Revoke(ctx context.Context, userID int64, subscriptionID *int64, now time.Time) (int64, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditLogger records token lifecycle events
type AuditLogger interface {
	LogAction(ctx context.Context, userID int64, subscriptionID *int64, action, message string, metadata map[string]interface{}) error
}

// TokenManager issues, verifies and revokes subscription tokens.
// A token is valid only while its signature checks out and an active record
// with the same hash exists.
type TokenManager struct {
	secret []byte
	store  TokenStore
	audit  AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenManager creates a token manager. audit may be nil.
func NewTokenManager(secret string, store TokenStore, audit AuditLogger, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		store:  store,
		audit:  audit,
		logger: logger.Named("token"),
		now:    time.Now,
	}
}

// GetOrCreate returns the current token for the pair, rebuilding it from the
// active record when there is one, and issuing a new one otherwise.
func (m *TokenManager) GetOrCreate(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (string, error) {
	rec, err := m.store.FindActive(ctx, userID, subscriptionID, m.now())
	switch {
	case err == nil:
		if token, ok := m.rebuild(rec); ok {
			return token, nil
		}
		// 签名密钥轮换或记录被改动时无法重建, 直接重新签发
		m.logger.Warn("stored token cannot be rebuilt, reissuing",
			zap.Int64("user_id", userID),
			zap.Int64("subscription_id", subscriptionID),
			zap.Int64("record_id", rec.ID))
	case errors.Is(err, repository.ErrNotFound):
	default:
		return "", fmt.Errorf("find active token: %w", err)
	}

	issued, err := m.issue(ctx, userID, subscriptionID, endDate, maxExpiryDays)
	if errors.Is(err, repository.ErrConflict) {
		// 并发请求先写入了有效记录, 返回它的 token
		if rec, findErr := m.store.FindActive(ctx, userID, subscriptionID, m.now()); findErr == nil {
			if token, ok := m.rebuild(rec); ok {
				return token, nil
			}
		}
	}
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// rebuild re-signs the token a record was issued for. ok is false when the
// result does not match the stored hash.
func (m *TokenManager) rebuild(rec *models.SubscriptionToken) (string, bool) {
	token, err := signSubscriptionToken(m.secret, rec.UserID, rec.SubscriptionID, rec.CreatedAt, rec.ExpiresAt)
	if err != nil || HashToken(token) != rec.TokenHash {
		return "", false
	}
	return token, true
}

// IssuedToken is a freshly signed token and its expiry
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// ForceNew issues a fresh token and deactivates every other active token of
// the pair. The token never outlives the subscription.
func (m *TokenManager) ForceNew(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (string, error) {
	issued, err := m.Reissue(ctx, userID, subscriptionID, endDate, maxExpiryDays)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// Reissue is ForceNew that also reports the new token's expiry. A rotation
// that loses a race with another one for the same pair is retried once.
func (m *TokenManager) Reissue(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (*IssuedToken, error) {
	issued, err := m.issue(ctx, userID, subscriptionID, endDate, maxExpiryDays)
	if errors.Is(err, repository.ErrConflict) {
		m.logger.Info("concurrent token rotation, retrying",
			zap.Int64("user_id", userID),
			zap.Int64("subscription_id", subscriptionID))
		issued, err = m.issue(ctx, userID, subscriptionID, endDate, maxExpiryDays)
	}
	return issued, err
}

func (m *TokenManager) issue(ctx context.Context, userID, subscriptionID int64, endDate time.Time, maxExpiryDays int) (*IssuedToken, error) {
	now := m.now()

	// 1. Lifetime = min(maxExpiryDays, remaining subscription time)
	remaining := endDate.Sub(now)
	if remaining <= 0 {
		return nil, ErrSubscriptionExpired
	}
	if maxExpiryDays <= 0 {
		maxExpiryDays = DefaultMaxExpiryDays
	}
	lifetime := time.Duration(maxExpiryDays) * 24 * time.Hour
	if remaining < lifetime {
		lifetime = remaining
	}

	// 2. JWT 时间精度为秒, 记录里也存整秒, 才能原样重建
	issuedAt := now.Truncate(time.Second)
	expiresAt := now.Add(lifetime).Truncate(time.Second)
	if !expiresAt.After(now) {
		return nil, ErrSubscriptionExpired
	}

	// Same claims would sign to the same token, so a rotation within one
	// second must move iat past the record it replaces.
	current, err := m.store.FindActive(ctx, userID, subscriptionID, now)
	switch {
	case err == nil:
		if !issuedAt.After(current.CreatedAt) {
			issuedAt = current.CreatedAt.Add(time.Second)
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("find active token: %w", err)
	}

	// 3. Sign
	token, err := signSubscriptionToken(m.secret, userID, subscriptionID, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}

	// 4. Deactivate old + insert new in one transaction
	rec := &models.SubscriptionToken{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		TokenHash:      HashToken(token),
		CreatedAt:      issuedAt,
		ExpiresAt:      expiresAt,
	}
	if err := m.store.Rotate(ctx, rec, now); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	m.logger.Info("subscription token issued",
		zap.Int64("user_id", userID),
		zap.Int64("subscription_id", subscriptionID),
		zap.Time("expires_at", expiresAt))
	m.record(ctx, userID, &subscriptionID, models.TokenActionIssued, "subscription token issued",
		map[string]interface{}{"record_id": rec.ID, "expires_at": expiresAt.Format(time.RFC3339)})

	return &IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify authenticates a token. Every failure matches ErrInvalidToken;
// store errors fail closed.
func (m *TokenManager) Verify(ctx context.Context, token string) (*SubscriptionClaims, error) {
	// Phase 1: signature, type and expiry
	claims, err := parseSubscriptionToken(m.secret, token, m.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	// Phase 2: an active record must carry this exact token
	_, err = m.store.FindActiveByHash(ctx, claims.UserID, claims.SubscriptionID, HashToken(token), m.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		m.logger.Error("token lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: token lookup: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Revoke deactivates the user's active tokens, for one subscription when
// subscriptionID is set, else for all of them.
func (m *TokenManager) Revoke(ctx context.Context, userID int64, subscriptionID *int64, reason string) (int64, error) {
	n, err := m.store.Revoke(ctx, userID, subscriptionID, m.now())
	if err != nil {
		return 0, err
	}

	fields := []zap.Field{zap.Int64("user_id", userID), zap.Int64("revoked", n)}
	if subscriptionID != nil {
		fields = append(fields, zap.Int64("subscription_id", *subscriptionID))
	}
	m.logger.Info("subscription tokens revoked", fields...)
	m.record(ctx, userID, subscriptionID, models.TokenActionRevoked, reason,
		map[string]interface{}{"revoked": n})

	return n, nil
}

// CleanupExpired deletes records that expired or were revoked more than
// daysToKeep days ago. Safe to run repeatedly.
func (m *TokenManager) CleanupExpired(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	cutoff := m.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)

	n, err := m.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	m.logger.Info("stale subscription tokens deleted",
		zap.Int64("deleted", n),
		zap.Time("cutoff", cutoff))
	return n, nil
}

// record writes an audit entry; failures are logged and swallowed
func (m *TokenManager) record(ctx context.Context, userID int64, subscriptionID *int64, action, message string, metadata map[string]interface{}) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogAction(ctx, userID, subscriptionID, action, message, metadata); err != nil {
		m.logger.Warn("failed to write token audit log",
			zap.String("action", action),
			zap.Error(err))
	}
}
