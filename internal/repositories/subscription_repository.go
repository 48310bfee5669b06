package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrOpenSubscriptionExists is returned when the one-open-row index rejects an insert.
	ErrOpenSubscriptionExists = errors.New("user already has an open subscription")
	// ErrSubscriptionStateChanged means a conditional update matched no row.
	ErrSubscriptionStateChanged = errors.New("subscription state changed concurrently")
)

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
	FindOpenByUser(ctx context.Context, userID string) (*models.Subscription, error)
	FindActiveByUser(ctx context.Context, userID string) (*models.Subscription, error)
	FindByTransactionID(ctx context.Context, transID string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]models.Subscription, error)

	// Conditional transitions. The bool reports whether this call won.
	RepricePending(ctx context.Context, id string, revision int64, subType models.SubscriptionType, price int64) error
	SetTransactionID(ctx context.Context, id, transID string) error
	Activate(ctx context.Context, id string, a SubscriptionActivation) (bool, error)
	Cancel(ctx context.Context, id, reason string, at time.Time) (bool, error)
	Expire(ctx context.Context, id string, now time.Time) (bool, error)

	// Sweeps
	FindLapsed(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	FindExpiring(ctx context.Context, now, until time.Time, limit int) ([]models.Subscription, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// SubscriptionActivation is what a paid attempt writes onto its pending row.
// Plan and price come from the attempt, not from the row.
type SubscriptionActivation struct {
	SubscriptionType models.SubscriptionType
	Price            int64
	TransactionID    string
	Start            time.Time
	Expiry           time.Time
}

type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{db: db}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, sub *models.Subscription) error {
	err := conn(ctx, r.db).Create(sub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrOpenSubscriptionExists
	}
	return err
}

func (r *SubscriptionRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SubscriptionRepositoryImpl) FindOpenByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.first(ctx, "user_id = ? AND status IN ?", userID,
		[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusPending})
}

func (r *SubscriptionRepositoryImpl) FindActiveByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.first(ctx, "user_id = ? AND status = ?", userID, models.SubscriptionStatusActive)
}

func (r *SubscriptionRepositoryImpl) FindByTransactionID(ctx context.Context, transID string) (*models.Subscription, error) {
	return r.first(ctx, "fapshi_transaction_id = ?", transID)
}

func (r *SubscriptionRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*models.Subscription, error) {
	var sub models.Subscription
	err := conn(ctx, r.db).Where(query, args...).Order("created_at DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// RepricePending hands a stale pending row to a new attempt and detaches it
// from the previous transaction id. It only succeeds while the row is still
// at the revision the caller read.
func (r *SubscriptionRepositoryImpl) RepricePending(ctx context.Context, id string, revision int64, subType models.SubscriptionType, price int64) error {
	result := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND revision = ?", id, models.SubscriptionStatusPending, revision).
		Updates(map[string]interface{}{
			"subscription_type":     subType,
			"price":                 price,
			"fapshi_transaction_id": nil,
			"revision":              gorm.Expr("revision + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionStateChanged
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) SetTransactionID(ctx context.Context, id, transID string) error {
	result := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("fapshi_transaction_id", transID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) Activate(ctx context.Context, id string, a SubscriptionActivation) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionStatusPending).
		Updates(map[string]interface{}{
			"status":                models.SubscriptionStatusActive,
			"subscription_type":     a.SubscriptionType,
			"price":                 a.Price,
			"fapshi_transaction_id": a.TransactionID,
			"start_date":            a.Start,
			"expiry_date":           a.Expiry,
			"renewal_date":          a.Expiry,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *SubscriptionRepositoryImpl) Cancel(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":              models.SubscriptionStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        at,
			"auto_renew":          false,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *SubscriptionRepositoryImpl) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	result := conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND expiry_date <= ?", id, models.SubscriptionStatusActive, now).
		Update("status", models.SubscriptionStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *SubscriptionRepositoryImpl) FindLapsed(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := conn(ctx, r.db).
		Where("status = ? AND expiry_date <= ?", models.SubscriptionStatusActive, now).
		Order("expiry_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// FindExpiring returns active subscriptions expiring in (now, until] that
// have not been reminded in the last day.
func (r *SubscriptionRepositoryImpl) FindExpiring(ctx context.Context, now, until time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := conn(ctx, r.db).
		Where("status = ? AND expiry_date > ? AND expiry_date <= ?", models.SubscriptionStatusActive, now, until).
		Where("last_reminder_at IS NULL OR last_reminder_at <= ?", now.Add(-24*time.Hour)).
		Order("expiry_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepositoryImpl) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return conn(ctx, r.db).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("last_reminder_at", at).Error
}
