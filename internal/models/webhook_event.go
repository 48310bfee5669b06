package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the raw record of one inbound provider notification.
type WebhookEvent struct {
	BaseModel
	Provider        string         `gorm:"type:varchar(20);not null;default:'fapshi'" json:"provider"`
	TransID         string         `gorm:"index" json:"transId"`
	Status          string         `gorm:"type:varchar(20)" json:"status"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ProcessedAt     *time.Time     `json:"processedAt,omitempty"`
	ProcessingError string         `json:"processingError,omitempty"`
}
