package repositories

import (
	"context"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id string, at time.Time, processingErr string) error
}

type WebhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &WebhookEventRepositoryImpl{db: db}
}

func (r *WebhookEventRepositoryImpl) Create(ctx context.Context, event *models.WebhookEvent) error {
	return conn(ctx, r.db).Create(event).Error
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(ctx context.Context, id string, at time.Time, processingErr string) error {
	return conn(ctx, r.db).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     at,
			"processing_error": processingErr,
		}).Error
}
