package models

// ==================== Common ====================

// APIResponse is the JSON envelope for every non-delivery endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ==================== User API DTOs ====================

// SubscriptionLinks are the per-client subscription URLs handed to a user
type SubscriptionLinks struct {
	Universal    string `json:"universal"`
	Clash        string `json:"clash"`
	V2Ray        string `json:"v2ray"`
	Shadowrocket string `json:"shadowrocket"`
	Quantumult   string `json:"quantumult"`
	Surge        string `json:"surge"`
}

// SubscriptionSummary is the subscription info shown next to the links
type SubscriptionSummary struct {
	SubscriptionID int64  `json:"subscription_id"`
	PlanID         int64  `json:"plan_id"`
	PlanName       string `json:"plan_name"`
	EndDate        string `json:"end_date"`
	TrafficUsed    int64  `json:"traffic_used"`
	TrafficTotal   int64  `json:"traffic_total"`
	DeviceLimit    int    `json:"device_limit"`
}

// SubscriptionLinksResponse is returned by the link and refresh endpoints
type SubscriptionLinksResponse struct {
	Subscription SubscriptionSummary `json:"subscription"`
	Links        SubscriptionLinks   `json:"links"`
	Token        string              `json:"token,omitempty"`
	ExpiresAt    string              `json:"expires_at,omitempty"`
}

// ==================== Internal API DTOs ====================

// IssueTokenRequest is sent by billing after a payment or redemption succeeds
type IssueTokenRequest struct {
	UserID         int64 `json:"user_id" binding:"required"`
	SubscriptionID int64 `json:"subscription_id" binding:"required"`
}

// IssueTokenResponse carries the token and the outcome of node-group assignment
type IssueTokenResponse struct {
	Token           string            `json:"token"`
	Links           SubscriptionLinks `json:"links"`
	AssignedGroups  []int64           `json:"assigned_groups,omitempty"`
	AssignmentError string            `json:"assignment_error,omitempty"`
}

// RevokeTokensRequest revokes a user's tokens, optionally for one subscription
type RevokeTokensRequest struct {
	UserID         int64  `json:"user_id" binding:"required"`
	SubscriptionID *int64 `json:"subscription_id"`
	Reason         string `json:"reason"`
}

// CleanupTokensRequest controls the retention sweep
type CleanupTokensRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

// TokenRecordInfo is the admin view of a token record; the hash is truncated
type TokenRecordInfo struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	SubscriptionID int64   `json:"subscription_id"`
	HashPrefix     string  `json:"hash_prefix"`
	CreatedAt      string  `json:"created_at"`
	ExpiresAt      string  `json:"expires_at"`
	IsActive       bool    `json:"is_active"`
	RevokedAt      *string `json:"revoked_at,omitempty"`
}
