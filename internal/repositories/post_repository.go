package repositories

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrPostNotFound = errors.New("post not found")
)

// PostFilter narrows a feed query. Empty fields do not filter.
type PostFilter struct {
	AuthorID     string
	SongID       string
	ChallengeID  string
	Visibilities []models.Visibility
	Page         int
	PageSize     int
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Post, error)
	FindWithFilter(ctx context.Context, filter PostFilter) ([]models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

type PostRepositoryImpl struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &PostRepositoryImpl{db: db}
}

func (r *PostRepositoryImpl) Create(ctx context.Context, post *models.Post) error {
	return conn(ctx, r.db).Create(post).Error
}

func (r *PostRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := conn(ctx, r.db).Preload("Author").First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *PostRepositoryImpl) FindWithFilter(ctx context.Context, filter PostFilter) ([]models.Post, int64, error) {
	var (
		posts []models.Post
		total int64
	)

	query := conn(ctx, r.db).Model(&models.Post{})
	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.SongID != "" {
		query = query.Where("related_song_id = ?", filter.SongID)
	}
	if filter.ChallengeID != "" {
		query = query.Where("related_challenge_id = ?", filter.ChallengeID)
	}
	if len(filter.Visibilities) > 0 {
		query = query.Where("visibility IN ?", filter.Visibilities)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	err := query.Preload("Author").Order("created_at DESC").Find(&posts).Error
	return posts, total, err
}

// Update writes the author-editable columns. Counters are left alone.
func (r *PostRepositoryImpl) Update(ctx context.Context, post *models.Post) error {
	result := conn(ctx, r.db).Model(post).Updates(map[string]interface{}{
		"content":    post.Content,
		"visibility": post.Visibility,
		"media_url":  post.MediaURL,
		"media_key":  post.MediaKey,
		"media_type": post.MediaType,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Delete removes the post with its likes and comments. Callers run it in a
// transaction.
func (r *PostRepositoryImpl) Delete(ctx context.Context, id string) error {
	db := conn(ctx, r.db)
	result := db.Where("id = ?", id).Delete(&models.Post{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	if err := db.Where("content_type = ? AND content_id = ?", models.ContentTypePost, id).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	return db.Where("content_type = ? AND content_id = ?", models.ContentTypePost, id).Delete(&models.Comment{}).Error
}
