package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authEngine() *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(testSessionSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(ctxUserID)})
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := authEngine()

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", "Token abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc", http.StatusUnauthorized, ""},
		{"uid string", "Bearer " + sessionToken(t, jwt.MapClaims{"uid": "42"}), http.StatusOK, `{"user_id":42}`},
		{"numeric userId", "Bearer " + sessionToken(t, jwt.MapClaims{"userId": float64(7)}), http.StatusOK, `{"user_id":7}`},
		{"non numeric sub", "Bearer " + sessionToken(t, jwt.MapClaims{"sub": "alice"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sessionToken(t, jwt.MapClaims{"uid": "1", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, ""},
		{"subscription token", "Bearer " + sessionToken(t, jwt.MapClaims{"userId": float64(1), "type": "subscription"}), http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestInternalAuthMiddleware_EmptySecretDeniesAll(t *testing.T) {
	r := gin.New()
	r.GET("/x", InternalAuthMiddleware(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLogger_NeverLogsToken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/api/subscription/:format/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/subscription/clash/secret-token-value", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "/api/subscription/:format/:token", fields["route"])
	assert.Equal(t, "clash", fields["format"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "secret-token-value")
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "k")
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "other")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = rl.Allow(ctx, "k")
	assert.True(t, ok)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/limited", RateLimitMiddleware(NewRateLimiter(1, time.Minute), zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", RateLimitMiddleware(failingLimiter{}, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("/limited"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/limited"))
	assert.Equal(t, http.StatusOK, hit("/open"))
	assert.Equal(t, http.StatusOK, hit("/open"))
}
