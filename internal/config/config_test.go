package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	secret := strings.Repeat("s", 32)
	return &Config{
		JWT:            JWTConfig{SecretKey: secret},
		Subscription:   SubscriptionConfig{TokenSecret: secret, MaxExpiryDays: 30, RetentionDays: 90},
		InternalSecret: strings.Repeat("i", 32),
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "panel", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/panel?sslmode=disable", c.DSN())
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.JWT.SecretKey = "your-secret-key-change-in-production"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Subscription.TokenSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Subscription.MaxExpiryDays = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.InternalSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFallsBackToSessionSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", strings.Repeat("k", 40))
	t.Setenv("SUBSCRIPTION_TOKEN_SECRET", "")
	t.Setenv("SUBSCRIPTION_TOKEN_MAX_DAYS", "7")
	t.Setenv("SUBSCRIPTION_TOKEN_RETENTION_DAYS", "")

	cfg := Load()
	assert.Equal(t, cfg.JWT.SecretKey, cfg.Subscription.TokenSecret)
	assert.Equal(t, 7, cfg.Subscription.MaxExpiryDays)
	assert.Equal(t, 90, cfg.Subscription.RetentionDays)
}
