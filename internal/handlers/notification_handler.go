package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
)

type NotificationHandler struct {
	*BaseHandler
	notificationService services.NotificationService
}

func NewNotificationHandler(base *BaseHandler, notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler:         base,
		notificationService: notificationService,
	}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup, g Guards) {
	notifications := r.Group("/notifications")
	notifications.Use(g.Auth)
	{
		notifications.GET("", h.GetUserNotifications)
		notifications.PUT("/read-all", h.MarkAllAsRead)
		notifications.PUT("/:notificationId/read", h.MarkAsRead)
		notifications.DELETE("/:notificationId", h.DeleteNotification)
		notifications.POST("/push-token/register", h.RegisterPushToken)
		notifications.POST("/push-token/unregister", h.UnregisterPushToken)
	}
}

// --- Notifications ---

func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	criteria := dto.NotificationCriteria{
		Limit:      ParseQueryInt(c, "limit", 0),
		Skip:       ParseQueryInt(c, "skip", 0),
		UnreadOnly: c.Query("unreadOnly") == "true",
	}

	resp, err := h.notificationService.List(c.Request.Context(), userID, criteria)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        resp.Notifications,
		"pagination":  resp.Pagination,
		"unreadCount": resp.UnreadCount,
	})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkAsRead(c.Request.Context(), userID, c.Param("notificationId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": notification})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "All notifications marked as read",
		"updatedCount": updated,
	})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.Delete(c.Request.Context(), userID, c.Param("notificationId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted successfully"})
}

// --- Push tokens ---

func (h *NotificationHandler) RegisterPushToken(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.RegisterPushTokenRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	token, err := h.notificationService.RegisterPushToken(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Push token registered successfully",
		"data":    token,
	})
}

func (h *NotificationHandler) UnregisterPushToken(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UnregisterPushTokenRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.notificationService.UnregisterPushToken(c.Request.Context(), userID, req.Token); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Push token unregistered successfully"})
}
