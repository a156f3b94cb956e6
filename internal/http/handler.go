package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/sublink-service/internal/models"
	"github.com/wenwu/saas-platform/sublink-service/internal/service"
	"go.uber.org/zap"
)

type Handler struct {
	delivery      *service.DeliveryService
	issuance      *service.IssuanceService
	tokens        *service.TokenManager
	inspect       *service.InspectService
	publicBaseURL string
	retentionDays int
	logger        *zap.Logger
}

func NewHandler(
	delivery *service.DeliveryService,
	issuance *service.IssuanceService,
	tokens *service.TokenManager,
	inspect *service.InspectService,
	publicBaseURL string,
	retentionDays int,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		delivery:      delivery,
		issuance:      issuance,
		tokens:        tokens,
		inspect:       inspect,
		publicBaseURL: publicBaseURL,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// ==================== Subscription Delivery ====================

// GetSubscription serves a client config for a subscription token
// GET /api/subscription/:format/:token
func (h *Handler) GetSubscription(c *gin.Context) {
	h.deliver(c, service.ScopeAllNodes)
}

// GetEdgeTunnelSubscription is GetSubscription restricted to the user's assigned EdgeTunnel nodes
// GET /api/subscription/edgetunnel/:format/:token
func (h *Handler) GetEdgeTunnelSubscription(c *gin.Context) {
	h.deliver(c, service.ScopeAssignedNodes)
}

func (h *Handler) deliver(c *gin.Context, scope service.NodeScope) {
	d, err := h.delivery.Deliver(c.Request.Context(), c.Param("format"), c.Param("token"), scope)
	if err != nil {
		h.deliveryError(c, err)
		return
	}
	writeDelivery(c, d)
}

// GetUniversalSubscription serves the raw base64 link list. No token check.
// GET /api/subscription/universal/:token
func (h *Handler) GetUniversalSubscription(c *gin.Context) {
	d, err := h.delivery.DeliverUniversal(c.Request.Context())
	if err != nil {
		h.deliveryError(c, err)
		return
	}
	writeDelivery(c, d)
}

// GetEdgeTunnelFormat answers a two-segment path whose format is "edgetunnel".
// "edgetunnel" is not a client format, so this is always 400.
// GET /api/subscription/edgetunnel/:format
func (h *Handler) GetEdgeTunnelFormat(c *gin.Context) {
	h.deliveryError(c, service.ErrUnsupportedFormat)
}

// SubscriptionPreflight answers CORS preflight on delivery routes
func (h *Handler) SubscriptionPreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func writeDelivery(c *gin.Context, d *service.Delivery) {
	h := c.Writer.Header()
	// 订阅内容包含用户凭据, 禁止任何中间层缓存
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(d.Filename)+`"`)
	c.Data(http.StatusOK, d.Document.ContentType, d.Document.Body)
}

func (h *Handler) deliveryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat):
		c.String(http.StatusBadRequest, "Unsupported format")
	case errors.Is(err, service.ErrInvalidToken):
		if errors.Is(err, service.ErrTokenRevoked) {
			h.logger.Info("revoked or unknown subscription token", zap.String("route", c.FullPath()))
		} else {
			h.logger.Debug("subscription token rejected", zap.Error(err))
		}
		c.String(http.StatusUnauthorized, "Invalid or expired subscription token")
	case errors.Is(err, service.ErrSubscriptionNotFound):
		c.String(http.StatusNotFound, "Subscription not found")
	case errors.Is(err, service.ErrSubscriptionExpired):
		c.String(http.StatusForbidden, "Subscription expired")
	case errors.Is(err, service.ErrNoNodes):
		c.String(http.StatusNotFound, "No servers available")
	default:
		h.logger.Error("subscription delivery failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}

// sanitizeFilename keeps the Content-Disposition header well formed
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, name)
}

// ==================== User API Handlers ====================

// GetSubscriptionLinks returns the caller's subscription links
// GET /api/user/subscription-links
func (h *Handler) GetSubscriptionLinks(c *gin.Context) {
	resp, err := h.issuance.UserLinks(c.Request.Context(), h.baseURL(c), c.GetInt64(ctxUserID))
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: resp})
}

// RefreshSubscriptionToken rotates the caller's token; old links stop working
// POST /api/user/refresh-subscription-token
func (h *Handler) RefreshSubscriptionToken(c *gin.Context) {
	resp, err := h.issuance.RefreshUserToken(c.Request.Context(), h.baseURL(c), c.GetInt64(ctxUserID))
	if err != nil {
		h.userError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Subscription token refreshed",
		Data:    resp,
	})
}

func (h *Handler) userError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSubscriptionNotFound):
		respondError(c, http.StatusNotFound, "No active subscription found")
	case errors.Is(err, service.ErrSubscriptionExpired):
		respondError(c, http.StatusForbidden, "Subscription expired")
	default:
		h.logger.Error("subscription link request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// baseURL is the configured public origin, else the origin of the request
func (h *Handler) baseURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// ==================== Internal API Handlers ====================

// IssueSubscriptionToken is called by billing after a payment or redemption
// POST /api/internal/subscriptions/issue
func (h *Handler) IssueSubscriptionToken(c *gin.Context) {
	var req models.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.issuance.IssueForSubscription(c.Request.Context(), h.baseURL(c), req.UserID, req.SubscriptionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			respondError(c, http.StatusNotFound, "Subscription not found")
		case errors.Is(err, service.ErrSubscriptionExpired):
			respondError(c, http.StatusConflict, "Subscription expired")
		default:
			h.logger.Error("token issuance failed",
				zap.Int64("user_id", req.UserID),
				zap.Int64("subscription_id", req.SubscriptionID),
				zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Token issuance failed")
		}
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: resp})
}

// RevokeTokens revokes a user's tokens after cancellation or downgrade
// POST /api/internal/tokens/revoke
func (h *Handler) RevokeTokens(c *gin.Context) {
	var req models.RevokeTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "revoked by internal request"
	}
	n, err := h.tokens.Revoke(c.Request.Context(), req.UserID, req.SubscriptionID, reason)
	if err != nil {
		h.logger.Error("token revocation failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Token revocation failed")
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: gin.H{"revoked": n}})
}

// CleanupTokens deletes stale token records
// POST /api/internal/tokens/cleanup
func (h *Handler) CleanupTokens(c *gin.Context) {
	var req models.CleanupTokensRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.DaysToKeep <= 0 {
		req.DaysToKeep = h.retentionDays
	}

	n, err := h.tokens.CleanupExpired(c.Request.Context(), req.DaysToKeep)
	if err != nil {
		h.logger.Error("token cleanup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Token cleanup failed")
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: gin.H{"deleted": n, "days_to_keep": req.DaysToKeep}})
}

// ListTokenRecords shows a user's token records and audit trail for support
// GET /api/internal/admin/tokens?user_id=&limit=
func (h *Handler) ListTokenRecords(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, http.StatusBadRequest, "user_id required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	records, err := h.inspect.TokenRecords(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list token records failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	logs, err := h.inspect.AuditTrail(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list token logs failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if logs == nil {
		logs = []*models.TokenLog{}
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: gin.H{
		"records": records,
		"logs":    logs,
	}})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.APIResponse{Success: false, Message: message})
}
