package repositories

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id string) (*models.Comment, error)
	FindByContent(ctx context.Context, contentType models.ContentType, contentID string, page, pageSize int) ([]models.Comment, int64, error)
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int64, error)
	// AdjustComments moves a post's comments_count by delta. Songs keep no
	// counter; for them only existence is checked.
	AdjustComments(ctx context.Context, contentType models.ContentType, contentID string, delta int64) error
}

type CommentRepositoryImpl struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *models.Comment) error {
	return conn(ctx, r.db).Create(comment).Error
}

func (r *CommentRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := conn(ctx, r.db).First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepositoryImpl) FindByContent(ctx context.Context, contentType models.ContentType, contentID string, page, pageSize int) ([]models.Comment, int64, error) {
	var (
		comments []models.Comment
		total    int64
	)

	query := conn(ctx, r.db).Model(&models.Comment{}).
		Where("content_type = ? AND content_id = ?", contentType, contentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	err := query.Preload("User").Order("created_at ASC").Find(&comments).Error
	return comments, total, err
}

func (r *CommentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&models.Comment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepositoryImpl) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Comment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *CommentRepositoryImpl) AdjustComments(ctx context.Context, contentType models.ContentType, contentID string, delta int64) error {
	db := conn(ctx, r.db)
	if contentType == models.ContentTypePost {
		return adjustCounter(db, contentType, contentID, "comments_count", delta)
	}
	exists, err := targetExists(db, contentType, contentID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrContentNotFound
	}
	return nil
}
