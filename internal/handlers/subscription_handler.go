package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService subscription.Service
}

func NewSubscriptionHandler(base *BaseHandler, subscriptionService subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup, g Guards) {
	// Public routes - Plan information
	r.GET("/plans", h.GetPlans)

	// Protected routes - Subscription lifecycle
	subscriptions := r.Group("/subscriptions")
	subscriptions.Use(g.Auth)
	{
		subscriptions.POST("/create", h.CreateSubscription)
		subscriptions.POST("/verify", h.VerifyPayment)
		subscriptions.GET("/status", h.GetStatus)
		subscriptions.POST("/cancel", h.CancelSubscription)
		subscriptions.GET("/history", h.GetHistory)
	}
}

func (h *SubscriptionHandler) GetPlans(c *gin.Context) {
	plans := subscription.PurchasablePlans()
	resp := make([]dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, dto.NewPlanResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"plans": resp, "total": len(resp)})
}

func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateSubscriptionRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.subscriptionService.CreateAttempt(c.Request.Context(), subscription.CreateAttemptInput{
		UserID:           userID,
		SubscriptionType: models.SubscriptionType(req.SubscriptionType),
		PaymentMethod:    req.PaymentMethod,
		RedirectURL:      req.RedirectURL,
		Phone:            req.Phone,
		IPAddress:        c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"subscription": gin.H{
			"id":           result.SubscriptionID,
			"type":         result.SubscriptionType,
			"amount":       result.Amount,
			"currency":     result.Currency,
			"durationDays": result.DurationDays,
			"status":       result.Status,
		},
		"payment": gin.H{
			"transactionId": result.TransactionID,
			"paymentMethod": result.PaymentMethod,
			"paymentLink":   result.PaymentLink,
			"expiresIn":     result.ExpiresIn,
		},
	})
}

func (h *SubscriptionHandler) VerifyPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.VerifyPaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.subscriptionService.VerifyPayment(c.Request.Context(), userID, req.TransactionID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	if result.Status != models.PaymentStatusSuccessful {
		message := "Payment is still pending or has failed"
		if result.Status == models.PaymentStatusExpired {
			message = "Payment link has expired"
		}
		h.HandleServiceError(c, apperrors.ErrInvalidStatus("payment", message).
			WithDetails(map[string]interface{}{"status": result.Status}))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"activated":    result.Activated,
		"subscription": result.Subscription,
		"message":      "Subscription activated successfully!",
	})
}

func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	ent, err := h.subscriptionService.GetEntitlement(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"isPremium":        ent.IsPremiumActive,
		"premiumExpiresAt": ent.PremiumExpiresAt,
		"daysRemaining":    ent.DaysRemaining,
		"subscription":     ent.Subscription,
	})
}

func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	// The body is optional.
	var req dto.CancelSubscriptionRequest
	if c.Request.ContentLength != 0 && !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.subscriptionService.Cancel(c.Request.Context(), userID, req.Reason)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Subscription cancelled successfully",
		"cancelledAt": result.CancelledAt,
		"reason":      result.Reason,
	})
}

func (h *SubscriptionHandler) GetHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	history, err := h.subscriptionService.History(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": history, "total": len(history)})
}
