package repositories

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSongNotFound = errors.New("song not found")
)

type SongFilter struct {
	Genre    string
	Approved *bool
	ArtistID string
	Search   string
	Page     int
	PageSize int
}

type SongRepository interface {
	Create(ctx context.Context, song *models.Song) error
	FindByID(ctx context.Context, id string) (*models.Song, error)
	FindWithFilter(ctx context.Context, filter SongFilter) ([]models.Song, int64, error)
	Update(ctx context.Context, song *models.Song) error
	Delete(ctx context.Context, id string) error
	IncrementStreams(ctx context.Context, id string) (int64, error)
	SetApproved(ctx context.Context, id string, approved bool) error
}

type SongRepositoryImpl struct {
	db *gorm.DB
}

func NewSongRepository(db *gorm.DB) SongRepository {
	return &SongRepositoryImpl{db: db}
}

func (r *SongRepositoryImpl) Create(ctx context.Context, song *models.Song) error {
	return conn(ctx, r.db).Create(song).Error
}

func (r *SongRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Song, error) {
	var song models.Song
	err := conn(ctx, r.db).Preload("Artist").First(&song, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSongNotFound
		}
		return nil, err
	}
	return &song, nil
}

func (r *SongRepositoryImpl) FindWithFilter(ctx context.Context, filter SongFilter) ([]models.Song, int64, error) {
	var (
		songs []models.Song
		total int64
	)

	query := conn(ctx, r.db).Model(&models.Song{})
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.Approved != nil {
		query = query.Where("is_approved = ?", *filter.Approved)
	}
	if filter.ArtistID != "" {
		query = query.Where("artist_id = ?", filter.ArtistID)
	}
	if filter.Search != "" {
		query = query.Where("title ILIKE ?", "%"+filter.Search+"%")
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

	err := query.Preload("Artist").Order("created_at DESC").Find(&songs).Error
	return songs, total, err
}

func (r *SongRepositoryImpl) Update(ctx context.Context, song *models.Song) error {
	result := conn(ctx, r.db).Model(song).Updates(map[string]interface{}{
		"title":        song.Title,
		"genre":        song.Genre,
		"mood":         song.Mood,
		"description":  song.Description,
		"duration_sec": song.DurationSec,
		"snippet_url":  song.SnippetURL,
		"cover_image":  song.CoverImage,
		"cover_key":    song.CoverKey,
		"access_level": song.AccessLevel,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}

func (r *SongRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := conn(ctx, r.db).Where("id = ?", id).Delete(&models.Song{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}

func (r *SongRepositoryImpl) IncrementStreams(ctx context.Context, id string) (int64, error) {
	db := conn(ctx, r.db)
	result := db.Model(&models.Song{}).
		Where("id = ?", id).
		UpdateColumn("streams_count", gorm.Expr("streams_count + ?", 1))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrSongNotFound
	}

	var count int64
	err := db.Model(&models.Song{}).Where("id = ?", id).Pluck("streams_count", &count).Error
	return count, err
}

func (r *SongRepositoryImpl) SetApproved(ctx context.Context, id string, approved bool) error {
	result := conn(ctx, r.db).Model(&models.Song{}).
		Where("id = ?", id).
		Update("is_approved", approved)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}
