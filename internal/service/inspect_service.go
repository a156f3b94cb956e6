package service

import (
	"context"
	"time"

	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

const hashPrefixLen = 12

// TokenRecordLister reads token records for diagnostics
type TokenRecordLister interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.SubscriptionToken, error)
}

// AuditReader reads the token audit trail
type AuditReader interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.TokenLog, error)
}

// InspectService backs the admin token inspector. Hashes are truncated.
type InspectService struct {
	tokens TokenRecordLister
	logs   AuditReader
}

func NewInspectService(tokens TokenRecordLister, logs AuditReader) *InspectService {
	return &InspectService{tokens: tokens, logs: logs}
}

// TokenRecords lists a user's token records, newest first
func (s *InspectService) TokenRecords(ctx context.Context, userID int64, limit int) ([]models.TokenRecordInfo, error) {
	records, err := s.tokens.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.TokenRecordInfo, 0, len(records))
	for _, r := range records {
		info := models.TokenRecordInfo{
			ID:             r.ID,
			UserID:         r.UserID,
			SubscriptionID: r.SubscriptionID,
			HashPrefix:     hashPrefix(r.TokenHash),
			CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:      r.ExpiresAt.UTC().Format(time.RFC3339),
			IsActive:       r.IsActive,
		}
		if r.RevokedAt != nil {
			revoked := r.RevokedAt.UTC().Format(time.RFC3339)
			info.RevokedAt = &revoked
		}
		out = append(out, info)
	}
	return out, nil
}

// AuditTrail lists a user's token audit entries, newest first
func (s *InspectService) AuditTrail(ctx context.Context, userID int64, limit int) ([]*models.TokenLog, error) {
	return s.logs.GetByUserID(ctx, userID, limit)
}

func hashPrefix(h string) string {
	if len(h) <= hashPrefixLen {
		return h
	}
	return h[:hashPrefixLen] + "…"
}
