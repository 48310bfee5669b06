package repositories

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrLikeNotFound = errors.New("like not found")
	// ErrAlreadyLiked is returned when the one-like-per-user index rejects an insert.
	ErrAlreadyLiked = errors.New("content already liked")
	// ErrContentNotFound means the liked or commented item does not exist.
	ErrContentNotFound = errors.New("content not found")
)

type LikeRepository interface {
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, userID string, contentType models.ContentType, contentID string) error
	Exists(ctx context.Context, userID string, contentType models.ContentType, contentID string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	// AdjustLikes moves the target's likes_count by delta, never below zero.
	AdjustLikes(ctx context.Context, contentType models.ContentType, contentID string, delta int64) error
}

type LikeRepositoryImpl struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &LikeRepositoryImpl{db: db}
}

func (r *LikeRepositoryImpl) Create(ctx context.Context, like *models.Like) error {
	err := conn(ctx, r.db).Create(like).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyLiked
	}
	return err
}

func (r *LikeRepositoryImpl) Delete(ctx context.Context, userID string, contentType models.ContentType, contentID string) error {
	result := conn(ctx, r.db).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		Delete(&models.Like{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLikeNotFound
	}
	return nil
}

func (r *LikeRepositoryImpl) Exists(ctx context.Context, userID string, contentType models.ContentType, contentID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Like{}).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, contentID).
		Count(&count).Error
	return count > 0, err
}

func (r *LikeRepositoryImpl) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Like{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *LikeRepositoryImpl) AdjustLikes(ctx context.Context, contentType models.ContentType, contentID string, delta int64) error {
	return adjustCounter(conn(ctx, r.db), contentType, contentID, "likes_count", delta)
}

// ============================================
// Content targets
// ============================================

func targetModel(contentType models.ContentType) (interface{}, bool) {
	switch contentType {
	case models.ContentTypeSong:
		return &models.Song{}, true
	case models.ContentTypePost:
		return &models.Post{}, true
	default:
		return nil, false
	}
}

func adjustCounter(db *gorm.DB, contentType models.ContentType, contentID, column string, delta int64) error {
	model, ok := targetModel(contentType)
	if !ok {
		return ErrContentNotFound
	}
	result := db.Model(model).
		Where("id = ?", contentID).
		UpdateColumn(column, gorm.Expr("GREATEST("+column+" + ?, 0)", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrContentNotFound
	}
	return nil
}

func targetExists(db *gorm.DB, contentType models.ContentType, contentID string) (bool, error) {
	model, ok := targetModel(contentType)
	if !ok {
		return false, nil
	}
	var count int64
	err := db.Model(model).Where("id = ?", contentID).Count(&count).Error
	return count > 0, err
}
