package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// WebhookHandler receives provider status notifications. It always answers
// 200 so the provider does not retry failures it cannot fix.
type WebhookHandler struct {
	*BaseHandler
	webhookService services.WebhookService
}

func NewWebhookHandler(base *BaseHandler, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    base,
		webhookService: webhookService,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks/payment", h.HandlePayment)
}

func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	ctx := c.Request.Context()

	var payload dto.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		logger.CtxWithError(ctx, "Invalid webhook body", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid webhook payload"})
		return
	}

	result, err := h.webhookService.Process(ctx, &payload)
	switch {
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Payment not found"})
	case err != nil:
		logger.CtxWithError(ctx, "Webhook processing failed", err, "transaction_id", payload.TransID)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Error processing webhook"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Webhook processed",
			"status":    result.Status,
			"duplicate": result.Skipped,
		})
	}
}
