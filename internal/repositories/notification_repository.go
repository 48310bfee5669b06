package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

type NotificationCriteria struct {
	UnreadOnly bool
	Limit      int
	Skip       int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindForUser(ctx context.Context, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id, userID string, at time.Time) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error)
	MarkPushSent(ctx context.Context, id string) error
	Delete(ctx context.Context, id, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Push tokens
	UpsertPushToken(ctx context.Context, token *models.PushToken) error
	DeactivatePushToken(ctx context.Context, token, userID string) error
	FindActivePushTokens(ctx context.Context, userID string) ([]models.PushToken, error)
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *models.Notification) error {
	return conn(ctx, r.db).Create(n).Error
}

func (r *NotificationRepositoryImpl) FindForUser(ctx context.Context, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	var (
		items []models.Notification
		total int64
	)

	query := conn(ctx, r.db).Model(&models.Notification{}).Where("user_id = ?", userID)
	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(criteria.Skip).
		Limit(criteria.Limit).
		Find(&items).Error
	return items, total, err
}

func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id, userID string, at time.Time) (*models.Notification, error) {
	db := conn(ctx, r.db)
	result := db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotificationNotFound
	}

	var n models.Notification
	if err := db.First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result := conn(ctx, r.db).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) MarkPushSent(ctx context.Context, id string) error {
	return conn(ctx, r.db).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("push_sent", true).Error
}

func (r *NotificationRepositoryImpl) Delete(ctx context.Context, id, userID string) error {
	result := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := conn(ctx, r.db).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// UpsertPushToken re-binds an existing device token to the caller and reactivates it.
func (r *NotificationRepositoryImpl) UpsertPushToken(ctx context.Context, token *models.PushToken) error {
	db := conn(ctx, r.db)

	var existing models.PushToken
	err := db.Where("token = ?", token.Token).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(token).Error
	case err != nil:
		return err
	}

	token.ID = existing.ID
	token.CreatedAt = existing.CreatedAt
	return db.Model(&existing).Updates(map[string]interface{}{
		"user_id":      token.UserID,
		"device_type":  token.DeviceType,
		"device_id":    token.DeviceID,
		"is_active":    true,
		"last_used_at": token.LastUsedAt,
	}).Error
}

func (r *NotificationRepositoryImpl) DeactivatePushToken(ctx context.Context, token, userID string) error {
	return conn(ctx, r.db).Model(&models.PushToken{}).
		Where("token = ? AND user_id = ?", token, userID).
		Update("is_active", false).Error
}

func (r *NotificationRepositoryImpl) FindActivePushTokens(ctx context.Context, userID string) ([]models.PushToken, error) {
	var tokens []models.PushToken
	err := conn(ctx, r.db).Where("user_id = ? AND is_active = ?", userID, true).Find(&tokens).Error
	return tokens, err
}
