package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/EnowBibi/KontriVibeBackend/internal/email"
	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// NotificationRetention is how long an in-app notification is kept.
const NotificationRetention = 30 * 24 * time.Hour

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationService interface {
	subscription.Notifier

	// Notification operations
	Notify(ctx context.Context, userID string, nType models.NotificationType, title, message string, data *models.NotificationData) (*models.Notification, error)
	List(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*dto.NotificationResponse, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, notificationID string) error
	CleanExpired(ctx context.Context) (int64, error)

	// Push tokens
	RegisterPushToken(ctx context.Context, userID string, req *dto.RegisterPushTokenRequest) (*models.PushToken, error)
	UnregisterPushToken(ctx context.Context, userID, token string) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	publisher        events.Publisher
	mailer           *email.Mailer
	now              func() time.Time
}

// NewNotificationService builds the service. mailer may be nil when email
// is disabled; publisher may be nil when no broker is configured.
func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	publisher events.Publisher,
	mailer *email.Mailer,
) NotificationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		mailer:           mailer,
		now:              time.Now,
	}
}

// ---------------- Notification operations ----------------

// Notify stores an in-app notification and queues a push to every active
// device of the user. A failed push never fails the call.
func (s *notificationService) Notify(
	ctx context.Context,
	userID string,
	nType models.NotificationType,
	title, message string,
	data *models.NotificationData,
) (*models.Notification, error) {
	now := s.now().UTC()
	expiresAt := now.Add(NotificationRetention)

	n := &models.Notification{
		UserID:    userID,
		Type:      nType,
		Title:     title,
		Message:   message,
		ExpiresAt: &expiresAt,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification data: %w", err)
		}
		n.Data = datatypes.JSON(raw)
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	n.PushSent = s.push(ctx, n, data)
	return n, nil
}

func (s *notificationService) push(ctx context.Context, n *models.Notification, data *models.NotificationData) bool {
	tokens, err := s.notificationRepo.FindActivePushTokens(ctx, n.UserID)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to load push tokens", err, "user_id", n.UserID)
		metrics.RecordNotification(string(n.Type), "failed")
		return false
	}
	if len(tokens) == 0 {
		logger.CtxDebug(ctx, "No active push tokens", "user_id", n.UserID)
		metrics.RecordNotification(string(n.Type), "no_tokens")
		return false
	}

	msg := events.PushMessage{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Tokens:         make([]string, 0, len(tokens)),
		Title:          n.Title,
		Body:           n.Message,
		Data: map[string]string{
			"userId":         n.UserID,
			"notificationId": n.ID,
			"type":           string(n.Type),
		},
	}
	for _, t := range tokens {
		msg.Tokens = append(msg.Tokens, t.Token)
	}
	if data != nil && data.RelatedContentID != "" {
		msg.Data["relatedContentId"] = data.RelatedContentID
	}

	if err := s.publisher.Publish(ctx, events.NotificationPush, msg); err != nil {
		logger.CtxWithError(ctx, "Failed to queue push notification", err, "notification_id", n.ID)
		metrics.RecordNotification(string(n.Type), "failed")
		return false
	}
	if err := s.notificationRepo.MarkPushSent(ctx, n.ID); err != nil {
		logger.CtxWithError(ctx, "Failed to mark push as sent", err, "notification_id", n.ID)
	}
	metrics.RecordNotification(string(n.Type), "queued")
	return true
}

func (s *notificationService) List(ctx context.Context, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	if criteria.Limit <= 0 {
		criteria.Limit = defaultNotificationLimit
	}
	if criteria.Limit > maxNotificationLimit {
		criteria.Limit = maxNotificationLimit
	}
	if criteria.Skip < 0 {
		criteria.Skip = 0
	}

	items, total, err := s.notificationRepo.FindForUser(ctx, userID, repositories.NotificationCriteria{
		UnreadOnly: criteria.UnreadOnly,
		Limit:      criteria.Limit,
		Skip:       criteria.Skip,
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	unread, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	resp := &dto.NotificationListResponse{
		Notifications: make([]*dto.NotificationResponse, 0, len(items)),
		Pagination: dto.NotificationPagination{
			Total: total,
			Limit: criteria.Limit,
			Skip:  criteria.Skip,
			Pages: dto.Pages(total, criteria.Limit),
		},
		UnreadCount: unread,
	}
	for i := range items {
		resp.Notifications = append(resp.Notifications, dto.NewNotificationResponse(&items[i]))
	}
	return resp, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*dto.NotificationResponse, error) {
	n, err := s.notificationRepo.MarkAsRead(ctx, notificationID, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}
	return dto.NewNotificationResponse(n), nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.notificationRepo.MarkAllAsRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return updated, nil
}

func (s *notificationService) Delete(ctx context.Context, userID, notificationID string) error {
	if err := s.notificationRepo.Delete(ctx, notificationID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return apperrors.ErrNotificationNotFound
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

// CleanExpired removes notifications past their retention.
func (s *notificationService) CleanExpired(ctx context.Context) (int64, error) {
	removed, err := s.notificationRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return removed, nil
}

// ---------------- Push tokens ----------------

func (s *notificationService) RegisterPushToken(ctx context.Context, userID string, req *dto.RegisterPushTokenRequest) (*models.PushToken, error) {
	token := &models.PushToken{
		UserID:     userID,
		Token:      req.Token,
		DeviceType: models.DeviceType(req.DeviceType),
		DeviceID:   req.DeviceID,
		IsActive:   true,
		LastUsedAt: s.now().UTC(),
	}
	if err := s.notificationRepo.UpsertPushToken(ctx, token); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return token, nil
}

func (s *notificationService) UnregisterPushToken(ctx context.Context, userID, token string) error {
	if err := s.notificationRepo.DeactivatePushToken(ctx, token, userID); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// ---------------- Subscription lifecycle ----------------

func (s *notificationService) PaymentSucceeded(ctx context.Context, user *models.User, sub *models.Subscription, log *models.PaymentLog) error {
	metadata := map[string]interface{}{
		"subscriptionId":   sub.ID,
		"subscriptionType": sub.SubscriptionType,
		"amount":           log.Amount,
		"currency":         log.Currency,
		"transactionId":    log.TransID(),
	}
	if sub.ExpiryDate != nil {
		metadata["expiryDate"] = sub.ExpiryDate
	}

	_, err := s.Notify(ctx, user.ID, models.NotificationPaymentSuccess,
		"Payment Successful",
		fmt.Sprintf("Your subscription to %s has been activated", planName(sub.SubscriptionType)),
		&models.NotificationData{RelatedContentID: sub.ID, Metadata: metadata},
	)
	if err != nil {
		return err
	}

	if s.mailer != nil && sub.ExpiryDate != nil {
		receipt := email.ReceiptData{
			Name:          user.FullName,
			Plan:          planName(sub.SubscriptionType),
			Amount:        log.Amount,
			Currency:      log.Currency,
			TransactionID: log.TransID(),
			ExpiryDate:    *sub.ExpiryDate,
		}
		if err := s.mailer.SendPaymentReceipt(ctx, user.Email, receipt); err != nil {
			logger.CtxWithError(ctx, "Failed to send payment receipt", err, "user_id", user.ID)
		}
	}
	return nil
}

func (s *notificationService) PaymentFailed(ctx context.Context, log *models.PaymentLog) error {
	_, err := s.Notify(ctx, log.UserID, models.NotificationPaymentFailed,
		"Payment Failed",
		fmt.Sprintf("Your payment of %d %s for %s did not go through. You can try again at any time.",
			log.Amount, log.Currency, planName(log.SubscriptionType)),
		&models.NotificationData{
			RelatedContentID: log.SubscriptionID,
			Metadata:         map[string]interface{}{"transactionId": log.TransID()},
		},
	)
	return err
}

func (s *notificationService) SubscriptionCancelled(ctx context.Context, user *models.User, sub *models.Subscription) error {
	_, err := s.Notify(ctx, user.ID, models.NotificationSubscriptionCancelled,
		"Subscription Cancelled",
		fmt.Sprintf("Your %s subscription has been cancelled.", planName(sub.SubscriptionType)),
		&models.NotificationData{RelatedContentID: sub.ID},
	)
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendCancellation(ctx, user.Email, user.FullName, planName(sub.SubscriptionType)); err != nil {
			logger.CtxWithError(ctx, "Failed to send cancellation email", err, "user_id", user.ID)
		}
	}
	return nil
}

func (s *notificationService) SubscriptionExpired(ctx context.Context, sub *models.Subscription) error {
	_, err := s.Notify(ctx, sub.UserID, models.NotificationSubscriptionExpired,
		"Subscription Expired",
		"Your premium subscription has expired. Renew now to continue enjoying unlimited features.",
		&models.NotificationData{RelatedContentID: sub.ID, RelatedLink: "/subscribe"},
	)
	return err
}

func (s *notificationService) SubscriptionExpiring(ctx context.Context, user *models.User, sub *models.Subscription, daysRemaining int) error {
	_, err := s.Notify(ctx, user.ID, models.NotificationSubscriptionExpiring,
		"Subscription Expiring Soon",
		fmt.Sprintf("Your premium subscription expires in %d days. Renew now to continue enjoying unlimited features.", daysRemaining),
		&models.NotificationData{
			RelatedContentID: sub.ID,
			Metadata:         map[string]interface{}{"daysRemaining": daysRemaining},
		},
	)
	if err != nil {
		return err
	}

	if s.mailer != nil && sub.ExpiryDate != nil {
		if err := s.mailer.SendExpiringReminder(ctx, user.Email, user.FullName, planName(sub.SubscriptionType), *sub.ExpiryDate, daysRemaining); err != nil {
			logger.CtxWithError(ctx, "Failed to send expiry reminder email", err, "user_id", user.ID)
		}
	}
	return nil
}

func planName(t models.SubscriptionType) string {
	switch t {
	case models.SubscriptionTypeMonthly:
		return "Monthly Premium"
	case models.SubscriptionTypeQuarterly:
		return "Quarterly Premium"
	case models.SubscriptionTypeYearly:
		return "Yearly Premium"
	default:
		return string(t)
	}
}
