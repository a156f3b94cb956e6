package models

import "time"

// NodeGroup is an EdgeTunnel service group with its external sync API
type NodeGroup struct {
	ID          int64
	Name        string
	Description string
	APIEndpoint string
	APIKey      string
	MaxUsers    int
	IsActive    bool
}

// UserNodeAssignment binds a user to a node within a group
type UserNodeAssignment struct {
	ID         int64
	UserID     int64
	GroupID    int64
	NodeID     int64
	AssignedAt time.Time
	ExpiresAt  *time.Time
	IsActive   bool
}
