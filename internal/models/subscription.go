package models

import "time"

// Subscription status values as stored in user_subscriptions.status
const (
	SubscriptionStatusExpired   = 0
	SubscriptionStatusActive    = 1
	SubscriptionStatusSuspended = 2
)

// Subscription is a user's entitlement to a plan. Owned by billing; read-only here.
type Subscription struct {
	ID           int64
	UserID       int64
	PlanID       int64
	PlanName     string
	Status       int
	StartDate    time.Time
	EndDate      time.Time
	TrafficUsed  int64
	TrafficTotal int64
	TrafficGB    int
	DeviceLimit  int
}

// IsExpired reports whether the subscription has ended at now.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.EndDate.After(now)
}
