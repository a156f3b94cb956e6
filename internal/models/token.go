package models

import "time"

// TokenTypeSubscription discriminates subscription tokens from session tokens.
const TokenTypeSubscription = "subscription"

// SubscriptionToken is the server-side record backing a signed subscription token.
// At most one row per (UserID, SubscriptionID) is active; a unique index enforces it.
type SubscriptionToken struct {
	ID             int64
	UserID         int64
	SubscriptionID int64
	TokenHash      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IsActive       bool
	RevokedAt      *time.Time
}

// Token log actions
const (
	TokenActionIssued  = "token_issued"
	TokenActionRevoked = "token_revoked"
)

// TokenLog is an audit entry for token lifecycle events
type TokenLog struct {
	ID             string                 `json:"id"`
	UserID         int64                  `json:"user_id"`
	SubscriptionID *int64                 `json:"subscription_id,omitempty"`
	Action         string                 `json:"action"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
