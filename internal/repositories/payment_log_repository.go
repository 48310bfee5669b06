package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrPaymentLogNotFound = errors.New("payment log not found")
)

// PaymentStatusUpdate is the set of columns a provider status report may change.
type PaymentStatusUpdate struct {
	Status           models.PaymentStatus
	ConfirmedAt      *time.Time
	PaymentMethod    models.PaymentMethod // empty keeps the stored value
	FinancialTransID string               // empty keeps the stored value
	PayerName        string
}

type PaymentLogRepository interface {
	Create(ctx context.Context, log *models.PaymentLog) error
	FindByTransID(ctx context.Context, transID string) (*models.PaymentLog, error)
	FindByTransIDForUser(ctx context.Context, transID, userID string) (*models.PaymentLog, error)
	FindLatestBySubscription(ctx context.Context, subscriptionID string) (*models.PaymentLog, error)
	FindStale(ctx context.Context, now time.Time, limit int) ([]models.PaymentLog, error)

	MarkInitiated(ctx context.Context, id, transID string, expiresAt time.Time) error
	MarkInitiationFailed(ctx context.Context, id, message string) error
	// LinkUnlinked attaches transID to the latest failed attempt on the
	// subscription that never got a transaction id. amount 0 matches any.
	LinkUnlinked(ctx context.Context, subscriptionID, transID string, amount int64) (*models.PaymentLog, error)
	// ApplyStatus writes the update only when the stored status differs and
	// is not yet successful. It reports whether a row changed.
	ApplyStatus(ctx context.Context, transID string, update PaymentStatusUpdate) (bool, error)
}

type PaymentLogRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentLogRepository(db *gorm.DB) PaymentLogRepository {
	return &PaymentLogRepositoryImpl{db: db}
}

func (r *PaymentLogRepositoryImpl) Create(ctx context.Context, log *models.PaymentLog) error {
	return conn(ctx, r.db).Create(log).Error
}

func (r *PaymentLogRepositoryImpl) FindByTransID(ctx context.Context, transID string) (*models.PaymentLog, error) {
	return r.first(ctx, "fapshi_trans_id = ?", transID)
}

func (r *PaymentLogRepositoryImpl) FindByTransIDForUser(ctx context.Context, transID, userID string) (*models.PaymentLog, error) {
	return r.first(ctx, "fapshi_trans_id = ? AND user_id = ?", transID, userID)
}

func (r *PaymentLogRepositoryImpl) FindLatestBySubscription(ctx context.Context, subscriptionID string) (*models.PaymentLog, error) {
	return r.first(ctx, "subscription_id = ?", subscriptionID)
}

func (r *PaymentLogRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*models.PaymentLog, error) {
	var log models.PaymentLog
	err := conn(ctx, r.db).Where(query, args...).Order("created_at DESC").First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentLogNotFound
		}
		return nil, err
	}
	return &log, nil
}

// FindStale returns attempts the payer can no longer complete: still
// created/pending with a transaction id and a passed expiry.
func (r *PaymentLogRepositoryImpl) FindStale(ctx context.Context, now time.Time, limit int) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	err := conn(ctx, r.db).
		Where("status IN ? AND fapshi_trans_id IS NOT NULL AND expires_at <= ?",
			[]models.PaymentStatus{models.PaymentStatusCreated, models.PaymentStatusPending}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *PaymentLogRepositoryImpl) MarkInitiated(ctx context.Context, id, transID string, expiresAt time.Time) error {
	result := conn(ctx, r.db).Model(&models.PaymentLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"fapshi_trans_id": transID,
			"expires_at":      expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentLogNotFound
	}
	return nil
}

func (r *PaymentLogRepositoryImpl) MarkInitiationFailed(ctx context.Context, id, message string) error {
	result := conn(ctx, r.db).Model(&models.PaymentLog{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusCreated).
		Updates(map[string]interface{}{
			"status":        models.PaymentStatusFailed,
			"error_message": message,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentLogNotFound
	}
	return nil
}

func (r *PaymentLogRepositoryImpl) ApplyStatus(ctx context.Context, transID string, update PaymentStatusUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":       update.Status,
		"confirmed_at": update.ConfirmedAt,
	}
	if update.PaymentMethod != "" {
		values["payment_method"] = update.PaymentMethod
	}
	if update.FinancialTransID != "" {
		values["fapshi_financial_trans_id"] = update.FinancialTransID
	}
	if update.PayerName != "" {
		values["payer_name"] = update.PayerName
	}

	result := conn(ctx, r.db).Model(&models.PaymentLog{}).
		Where("fapshi_trans_id = ? AND status <> ? AND status <> ?",
			transID, update.Status, models.PaymentStatusSuccessful).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PaymentLogRepositoryImpl) LinkUnlinked(ctx context.Context, subscriptionID, transID string, amount int64) (*models.PaymentLog, error) {
	db := conn(ctx, r.db)
	query := db.Where("subscription_id = ? AND fapshi_trans_id IS NULL AND status = ?",
		subscriptionID, models.PaymentStatusFailed)
	if amount != 0 {
		query = query.Where("amount = ?", amount)
	}

	var log models.PaymentLog
	if err := query.Order("created_at DESC").First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentLogNotFound
		}
		return nil, err
	}

	result := db.Model(&models.PaymentLog{}).
		Where("id = ? AND fapshi_trans_id IS NULL", log.ID).
		Update("fapshi_trans_id", transID)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrPaymentLogNotFound
	}
	log.FapshiTransID = &transID
	return &log, nil
}
