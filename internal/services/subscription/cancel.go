package subscription

import (
	"context"
	"errors"
	"strings"

	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

const DefaultCancellationReason = "User requested cancellation"

func (s *service) Cancel(ctx context.Context, userID, reason string) (*CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancellationReason
	}

	sub, err := s.subscriptions.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, apperrors.ErrNoActiveSubscription
		}
		return nil, dbError(err)
	}

	now := s.now().UTC()
	var won bool
	err = s.withLock(ctx, lock.SubscriptionKey(sub.ID), func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var txErr error
			won, txErr = s.subscriptions.Cancel(ctx, sub.ID, reason, now)
			if txErr != nil || !won {
				return txErr
			}
			// Cancellation revokes premium immediately.
			return s.users.ClearPremium(ctx, userID)
		})
	})
	if err != nil {
		return nil, dbError(err)
	}
	if !won {
		return nil, apperrors.ErrNoActiveSubscription
	}

	sub.Status = models.SubscriptionStatusCancelled
	sub.CancellationReason = reason
	sub.CancelledAt = &now
	sub.AutoRenew = false

	metrics.RecordCancellation()
	logger.CtxInfo(ctx, "Subscription cancelled", "subscription_id", sub.ID, "reason", reason)
	s.publish(ctx, events.SubscriptionCancelled, sub, reason)

	if user, err := s.users.FindByID(ctx, userID); err == nil {
		s.notify(ctx, "subscription_cancelled", func(n Notifier) error {
			return n.SubscriptionCancelled(ctx, user, sub)
		})
	} else {
		logger.CtxWithError(ctx, "Failed to load user for cancellation notice", err, "user_id", userID)
	}

	return &CancelResult{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		Reason:         reason,
		CancelledAt:    now,
	}, nil
}
