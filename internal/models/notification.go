package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	BaseModel
	UserID    string           `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1" json:"userId"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	Type      NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Data      datatypes.JSON   `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool             `gorm:"default:false;index" json:"isRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	PushSent  bool             `gorm:"default:false" json:"pushSent"`
	ExpiresAt *time.Time       `gorm:"index" json:"expiresAt,omitempty"`
}

// NotificationData is the shape stored in Notification.Data.
type NotificationData struct {
	RelatedContentID string                 `json:"relatedContentId,omitempty"`
	RelatedLink      string                 `json:"relatedLink,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type PushToken struct {
	BaseModel
	UserID     string     `gorm:"type:uuid;not null;index" json:"userId"`
	Token      string     `gorm:"not null;uniqueIndex" json:"token"`
	DeviceType DeviceType `gorm:"type:varchar(10);not null" json:"deviceType"`
	DeviceID   string     `json:"deviceId,omitempty"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	LastUsedAt time.Time  `json:"lastUsedAt"`
}
