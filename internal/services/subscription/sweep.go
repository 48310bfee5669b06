package subscription

import (
	"context"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// DefaultReminderWindow is how far ahead RemindExpiring looks.
const DefaultReminderWindow = 3 * 24 * time.Hour

// ============================================
// Expiry
// ============================================

// SweepExpired moves lapsed active subscriptions to expired. Reads never
// depend on it: entitlement is recomputed from expiry on every call.
func (s *service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	subs, err := s.subscriptions.FindLapsed(ctx, now, sweepBatch)
	if err != nil {
		return 0, dbError(err)
	}

	expired := 0
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		sub := &subs[i]

		var won bool
		err := s.withLock(ctx, lock.SubscriptionKey(sub.ID), func(ctx context.Context) error {
			return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
				var txErr error
				won, txErr = s.subscriptions.Expire(ctx, sub.ID, now)
				if txErr != nil || !won {
					return txErr
				}
				// A newer subscription may already have moved the projection forward.
				_, txErr = s.users.ClearPremiumIfLapsed(ctx, sub.UserID, now)
				return txErr
			})
		})
		if err != nil {
			logger.CtxWithError(ctx, "Failed to expire subscription", err, "subscription_id", sub.ID)
			continue
		}
		if !won {
			continue
		}

		expired++
		sub.Status = models.SubscriptionStatusExpired
		metrics.RecordExpiration()
		s.publish(ctx, events.SubscriptionExpired, sub, "")
		s.notify(ctx, "subscription_expired", func(n Notifier) error {
			return n.SubscriptionExpired(ctx, sub)
		})
	}
	return expired, nil
}

// ============================================
// Stale payment attempts
// ============================================

// SweepStaleAttempts closes attempts whose payment window has passed. The
// provider is asked to expire each one first. When it refuses, the real
// status is fetched instead, so a payment completed at the last moment is
// activated rather than expired.
func (s *service) SweepStaleAttempts(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.paymentLogs.FindStale(ctx, now, sweepBatch)
	if err != nil {
		return 0, dbError(err)
	}

	closed := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		transID := stale[i].TransID()

		in := ReconcileInput{
			TransactionID:  transID,
			ProviderStatus: fapshi.StatusExpired,
			Source:         SourceSweep,
		}
		if err := s.provider.ExpirePayment(ctx, transID); err != nil {
			remote, statusErr := s.provider.GetPaymentStatus(ctx, transID)
			if statusErr != nil {
				logger.CtxWithError(ctx, "Stale attempt left for next run", statusErr, "transaction_id", transID)
				continue
			}
			in.ProviderStatus = remote.Status
			in.Metadata = MetadataFrom(remote)
		}

		res, err := s.Reconcile(ctx, in)
		if err != nil {
			logger.CtxWithError(ctx, "Failed to reconcile stale attempt", err, "transaction_id", transID)
			continue
		}
		if !res.Skipped {
			closed++
		}
	}
	return closed, nil
}

// ============================================
// Reminders
// ============================================

// RemindExpiring notifies users whose subscription ends within the window.
// Each subscription is reminded at most once a day.
func (s *service) RemindExpiring(ctx context.Context, within time.Duration) (int, error) {
	if within <= 0 {
		within = DefaultReminderWindow
	}
	now := s.now().UTC()
	subs, err := s.subscriptions.FindExpiring(ctx, now, now.Add(within), sweepBatch)
	if err != nil {
		return 0, dbError(err)
	}

	reminded := 0
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return reminded, err
		}
		sub := &subs[i]

		user, err := s.users.FindByID(ctx, sub.UserID)
		if err != nil {
			logger.CtxWithError(ctx, "Failed to load user for reminder", err, "subscription_id", sub.ID)
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.SubscriptionExpiring(ctx, user, sub, daysRemaining(sub.ExpiryDate, now)); err != nil {
				logger.CtxWithError(ctx, "Failed to send expiry reminder", err, "subscription_id", sub.ID)
				continue
			}
		}
		if err := s.subscriptions.MarkReminded(ctx, sub.ID, now); err != nil {
			logger.CtxWithError(ctx, "Failed to record reminder", err, "subscription_id", sub.ID)
			continue
		}
		reminded++
	}
	return reminded, nil
}
