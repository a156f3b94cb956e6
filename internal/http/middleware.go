package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"go.uber.org/zap"
)

const ctxUserID = "userID"

// JWTAuthMiddleware validates session JWTs for user endpoints
// 兼容 auth-service 签发的 JWT 格式，使用 MapClaims 解析
func JWTAuthMiddleware(secretKey string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortJSON(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortJSON(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			abortJSON(c, http.StatusUnauthorized, "invalid token")
			return
		}

		// 订阅 token 不能当作登录态使用
		if typ, _ := claims["type"].(string); typ == models.TokenTypeSubscription {
			abortJSON(c, http.StatusUnauthorized, "invalid token")
			return
		}

		// 提取用户信息: 依次尝试 uid / userId / sub / id
		userID, ok := userIDFromClaims(claims)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "invalid token claims")
			return
		}
		c.Set(ctxUserID, userID)

		c.Next()
	}
}

func userIDFromClaims(claims jwt.MapClaims) (int64, bool) {
	for _, key := range []string{"uid", "userId", "sub", "id"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 && v == float64(int64(v)) {
				return int64(v), true
			}
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

// InternalAuthMiddleware validates internal service calls
// 使用常量时间比较防止时序攻击
func InternalAuthMiddleware(internalSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Internal-Secret")
		if internalSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(internalSecret)) != 1 {
			abortJSON(c, http.StatusUnauthorized, "unauthorized internal access")
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request. The route template is logged
// instead of the raw path so subscription tokens never reach the logs.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if format := c.Param("format"); format != "" {
			fields = append(fields, zap.String("format", format))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// DeliveryCORS sets the headers subscription clients and web previews need
func DeliveryCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.APIResponse{Success: false, Message: message})
}
