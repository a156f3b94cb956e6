package service

import (
	"errors"
	"fmt"

	"github.com/wenwu/saas-platform/sublink-service/internal/proxyconf"
)

var (
	// ErrInvalidToken covers every reason a subscription token is rejected
	ErrInvalidToken = errors.New("invalid or expired subscription token")
	// ErrTokenRevoked is a valid signature with no matching active record
	ErrTokenRevoked = fmt.Errorf("%w: revoked or unknown", ErrInvalidToken)

	ErrSubscriptionExpired  = errors.New("subscription expired")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoNodes              = errors.New("no servers available")
	ErrNoNodeGroup          = errors.New("no active node group")
	ErrUnsupportedFormat    = proxyconf.ErrUnsupportedFormat
)
