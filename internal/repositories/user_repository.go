package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Entitlement projection
	SetPremium(ctx context.Context, userID string, expiresAt time.Time) error
	ClearPremium(ctx context.Context, userID string) error
	ClearPremiumIfLapsed(ctx context.Context, userID string, now time.Time) (bool, error)
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	err := conn(ctx, r.db).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) SetPremium(ctx context.Context, userID string, expiresAt time.Time) error {
	result := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_premium":         true,
			"premium_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) ClearPremium(ctx context.Context, userID string) error {
	result := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_premium", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearPremiumIfLapsed clears the flag only when the stored expiry has
// passed, so a newer subscription's projection is never overwritten.
func (r *UserRepositoryImpl) ClearPremiumIfLapsed(ctx context.Context, userID string, now time.Time) (bool, error) {
	result := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND is_premium = ? AND (premium_expires_at IS NULL OR premium_expires_at <= ?)", userID, true, now).
		Update("is_premium", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
