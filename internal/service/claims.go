package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
)

// SubscriptionClaims is the payload of a subscription token.
//
// HS256 over a fixed struct is deterministic: the same claims and key always
// produce the same token text, which is what lets GetOrCreate rebuild a token
// from its stored record instead of keeping the token itself.
type SubscriptionClaims struct {
	UserID         int64  `json:"userId"`
	SubscriptionID int64  `json:"subscriptionId"`
	Type           string `json:"type"`
	jwt.RegisteredClaims
}

func signSubscriptionToken(secret []byte, userID, subscriptionID int64, issuedAt, expiresAt time.Time) (string, error) {
	claims := SubscriptionClaims{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Type:           models.TokenTypeSubscription,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func parseSubscriptionToken(secret []byte, token string, now func() time.Time) (*SubscriptionClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	)

	claims := &SubscriptionClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims.Type != models.TokenTypeSubscription {
		return nil, errors.New("not a subscription token")
	}
	if claims.UserID <= 0 || claims.SubscriptionID <= 0 {
		return nil, errors.New("token missing subject ids")
	}
	// exp is checked by the parser; re-check against our own clock
	if claims.ExpiresAt == nil || !now().Before(claims.ExpiresAt.Time) {
		return nil, jwt.ErrTokenExpired
	}
	return claims, nil
}
