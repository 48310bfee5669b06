// Package subscription holds the premium subscription lifecycle: payment
// attempts, reconciliation of provider status, cancellation, entitlement
// reads and the periodic sweeps.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// Provider is the subset of the payment provider client the engine uses.
type Provider interface {
	InitiateRedirectPayment(ctx context.Context, req fapshi.RedirectPaymentRequest) (*fapshi.RedirectPaymentResponse, error)
	InitiateDirectPayment(ctx context.Context, req fapshi.DirectPaymentRequest) (*fapshi.DirectPaymentResponse, error)
	GetPaymentStatus(ctx context.Context, transID string) (*fapshi.PaymentStatus, error)
	ExpirePayment(ctx context.Context, transID string) error
}

// Notifier is told about lifecycle transitions after they commit. Errors
// are logged by the caller and never undo a transition.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, user *models.User, sub *models.Subscription, log *models.PaymentLog) error
	PaymentFailed(ctx context.Context, log *models.PaymentLog) error
	SubscriptionCancelled(ctx context.Context, user *models.User, sub *models.Subscription) error
	SubscriptionExpired(ctx context.Context, sub *models.Subscription) error
	SubscriptionExpiring(ctx context.Context, user *models.User, sub *models.Subscription, daysRemaining int) error
}

type Service interface {
	CreateAttempt(ctx context.Context, in CreateAttemptInput) (*AttemptResult, error)
	Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error)
	VerifyPayment(ctx context.Context, userID, transID string) (*VerifyResult, error)
	Cancel(ctx context.Context, userID, reason string) (*CancelResult, error)
	GetEntitlement(ctx context.Context, userID string) (*Entitlement, error)
	History(ctx context.Context, userID string) ([]SubscriptionSummary, error)

	SweepExpired(ctx context.Context) (int, error)
	SweepStaleAttempts(ctx context.Context) (int, error)
	RemindExpiring(ctx context.Context, within time.Duration) (int, error)
}

// Deps are the collaborators of the service. Events, Locker and Now
// default to no-op implementations and time.Now.
type Deps struct {
	Users         repositories.UserRepository
	Subscriptions repositories.SubscriptionRepository
	PaymentLogs   repositories.PaymentLogRepository
	Transactor    repositories.Transactor
	Provider      Provider
	Notifier      Notifier
	Events        events.Publisher
	Locker        lock.Locker
	Now           func() time.Time
}

type service struct {
	users         repositories.UserRepository
	subscriptions repositories.SubscriptionRepository
	paymentLogs   repositories.PaymentLogRepository
	tx            repositories.Transactor
	provider      Provider
	notifier      Notifier
	events        events.Publisher
	locker        lock.Locker
	now           func() time.Time
}

// sweepBatch bounds the rows one sweep run touches.
const sweepBatch = 200

func NewService(d Deps) Service {
	s := &service{
		users:         d.Users,
		subscriptions: d.Subscriptions,
		paymentLogs:   d.PaymentLogs,
		tx:            d.Transactor,
		provider:      d.Provider,
		notifier:      d.Notifier,
		events:        d.Events,
		locker:        d.Locker,
		now:           d.Now,
	}
	if s.events == nil {
		s.events = events.NoopPublisher{}
	}
	if s.locker == nil {
		s.locker = lock.NoopLocker{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// withLock runs fn under the named distributed lock. A lock that cannot be
// taken is logged and fn still runs: the conditional writes decide.
func (s *service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.CtxWarn(ctx, "Proceeding without lock", "key", key, "error", err)
		return fn(ctx)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.CtxWarn(ctx, "Failed to release lock", "key", key, "error", err)
		}
	}()
	return fn(ctx)
}

func (s *service) publish(ctx context.Context, routingKey string, sub *models.Subscription, reason string) {
	event := events.SubscriptionEvent{
		SubscriptionID:   sub.ID,
		UserID:           sub.UserID,
		SubscriptionType: string(sub.SubscriptionType),
		Status:           string(sub.Status),
		ExpiryDate:       sub.ExpiryDate,
		Reason:           reason,
		OccurredAt:       s.now().UTC(),
	}
	if sub.FapshiTransactionID != nil {
		event.TransactionID = *sub.FapshiTransactionID
	}
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		logger.CtxWithError(ctx, "Failed to publish event", err, "routing_key", routingKey, "subscription_id", sub.ID)
	}
}

// notify runs one notifier call after commit. Failures are logged only.
func (s *service) notify(ctx context.Context, what string, fn func(n Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		logger.CtxWithError(ctx, "Notification failed", err, "notification", what)
	}
}

// dbError wraps a persistence failure unless it is already an AppError.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.DatabaseError(err)
}
