package dto

import (
	"encoding/json"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// ---------------- Requests ----------------

type RegisterPushTokenRequest struct {
	Token      string `json:"token" validate:"required"`
	DeviceType string `json:"deviceType" validate:"required,device_type"`
	DeviceID   string `json:"deviceId" validate:"omitempty,max=200"`
}

type UnregisterPushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ---------------- Responses ----------------

type NotificationResponse struct {
	ID        string                   `json:"id"`
	Type      models.NotificationType  `json:"type"`
	Title     string                   `json:"title"`
	Message   string                   `json:"message"`
	Data      *models.NotificationData `json:"data,omitempty"`
	IsRead    bool                     `json:"isRead"`
	ReadAt    *time.Time               `json:"readAt,omitempty"`
	PushSent  bool                     `json:"pushSent"`
	CreatedAt time.Time                `json:"createdAt"`
}

type NotificationPagination struct {
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
	Skip  int   `json:"skip"`
	Pages int   `json:"pages"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Pagination    NotificationPagination  `json:"pagination"`
	UnreadCount   int64                   `json:"unreadCount"`
}

// ---------------- Criteria ----------------

type NotificationCriteria struct {
	Limit      int
	Skip       int
	UnreadOnly bool
}

func NewNotificationResponse(n *models.Notification) *NotificationResponse {
	resp := &NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		PushSent:  n.PushSent,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		var data models.NotificationData
		if err := json.Unmarshal(n.Data, &data); err == nil {
			resp.Data = &data
		}
	}
	return resp
}
