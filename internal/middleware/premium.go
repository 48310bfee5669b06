package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
	"github.com/EnowBibi/KontriVibeBackend/pkg/contextkeys"
)

// EntitlementSource resolves a user's premium access.
type EntitlementSource interface {
	GetEntitlement(ctx context.Context, userID string) (*subscription.Entitlement, error)
}

// AttachEntitlement stores the caller's entitlement in the gin context.
// It never blocks the request: anonymous callers and lookup failures
// simply leave nothing behind.
func AttachEntitlement(src EntitlementSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			c.Next()
			return
		}
		ent, err := src.GetEntitlement(c.Request.Context(), userID)
		if err != nil {
			logger.CtxWithError(c.Request.Context(), "Failed to load entitlement", err)
		} else {
			c.Set(contextkeys.EntitlementKey, ent)
		}
		c.Next()
	}
}

// RequirePremium rejects callers without an active premium entitlement.
// It must run after AuthMiddleware.
func RequirePremium(src EntitlementSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authentication required"))
			c.Abort()
			return
		}

		ent, err := src.GetEntitlement(c.Request.Context(), userID)
		if err != nil {
			logger.CtxWithError(c.Request.Context(), "Failed to check premium status", err)
			apperrors.HandleError(c, err)
			c.Abort()
			return
		}

		if !ent.IsPremiumActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":       "Premium subscription required",
				"message":     "This feature is only available to premium subscribers",
				"upgradePath": "/subscribe",
			})
			return
		}

		c.Set(contextkeys.EntitlementKey, ent)
		c.Next()
	}
}

// GetEntitlement returns the entitlement stored by AttachEntitlement or
// RequirePremium.
func GetEntitlement(c *gin.Context) (*subscription.Entitlement, bool) {
	v, ok := c.Get(contextkeys.EntitlementKey)
	if !ok {
		return nil, false
	}
	ent, ok := v.(*subscription.Entitlement)
	return ent, ok
}
