package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wenwu/saas-platform/sublink-service/internal/config"
	"github.com/wenwu/saas-platform/sublink-service/internal/service"
	"go.uber.org/zap"
)

// Services are the handlers' dependencies
type Services struct {
	Delivery *service.DeliveryService
	Issuance *service.IssuanceService
	Tokens   *service.TokenManager
	Inspect  *service.InspectService
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	logger  *zap.Logger

	userLimiter     Limiter
	deliveryLimiter Limiter

	httpServer *http.Server
}

// NewServer wires routes. rdb may be nil, in which case rate limits are per process.
func NewServer(cfg *config.Config, svcs Services, rdb *redis.Client, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger.Named("http")))

	handler := NewHandler(
		svcs.Delivery,
		svcs.Issuance,
		svcs.Tokens,
		svcs.Inspect,
		cfg.Server.PublicBaseURL,
		cfg.Subscription.RetentionDays,
		logger.Named("handler"),
	)

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
	}

	// 用户 API: 每用户每分钟 N 次; 订阅拉取: 每 IP 每分钟 N 次
	if rdb != nil {
		s.userLimiter = NewRedisRateLimiter(rdb, "user", cfg.RateLimit.UserPerMinute, time.Minute)
		s.deliveryLimiter = NewRedisRateLimiter(rdb, "delivery", cfg.RateLimit.DeliveryPerMinute, time.Minute)
	} else {
		s.userLimiter = NewRateLimiter(cfg.RateLimit.UserPerMinute, time.Minute)
		s.deliveryLimiter = NewRateLimiter(cfg.RateLimit.DeliveryPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "sublink-service",
		})
	})

	// Subscription delivery - authenticated by the token in the path
	sub := s.router.Group("/api/subscription")
	sub.Use(DeliveryCORS())
	{
		sub.GET("/universal/:token", RateLimitMiddleware(s.deliveryLimiter, s.logger), s.handler.GetUniversalSubscription)
		sub.GET("/edgetunnel/:format/:token", RateLimitMiddleware(s.deliveryLimiter, s.logger), s.handler.GetEdgeTunnelSubscription)
		sub.GET("/edgetunnel/:format", s.handler.GetEdgeTunnelFormat)
		sub.GET("/:format/:token", RateLimitMiddleware(s.deliveryLimiter, s.logger), s.handler.GetSubscription)

		sub.OPTIONS("/universal/:token", s.handler.SubscriptionPreflight)
		sub.OPTIONS("/edgetunnel/:format/:token", s.handler.SubscriptionPreflight)
		sub.OPTIONS("/:format/:token", s.handler.SubscriptionPreflight)
	}

	// User API - requires session JWT
	user := s.router.Group("/api/user")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(s.userLimiter, s.logger))
	{
		user.GET("/subscription-links", s.handler.GetSubscriptionLinks)
		user.POST("/refresh-subscription-token", s.handler.RefreshSubscriptionToken)
	}

	// Internal API - called by billing and admin tooling
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/subscriptions/issue", s.handler.IssueSubscriptionToken)
		internal.POST("/tokens/revoke", s.handler.RevokeTokens)
		internal.POST("/tokens/cleanup", s.handler.CleanupTokens)
		internal.GET("/admin/tokens", s.handler.ListTokenRecords)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured port until Shutdown is called
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
