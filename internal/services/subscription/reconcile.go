package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// Reconcile applies one provider status report to the local records. It is
// safe to call any number of times, concurrently, for the same transaction.
func (s *service) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	source := in.Source
	if source == "" {
		source = SourceWebhook
	}
	status := MapProviderStatus(in.ProviderStatus)
	ctx = logger.WithCorrelationID(ctx, in.TransactionID)

	var result *ReconcileResult
	err := s.withLock(ctx, lock.ReconcileKey(in.TransactionID), func(ctx context.Context) error {
		var err error
		result, err = s.reconcile(ctx, in, status)
		return err
	})

	switch {
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		metrics.RecordReconciliation(source, string(status), "not_found")
		logger.CtxWarn(ctx, "Reconcile for unknown transaction", "transaction_id", in.TransactionID, "source", source)
		return nil, err
	case err != nil:
		metrics.RecordReconciliation(source, string(status), "error")
		return nil, err
	case result.Skipped:
		metrics.RecordReconciliation(source, string(status), "skipped")
	default:
		metrics.RecordReconciliation(source, string(status), "applied")
	}

	logger.CtxInfo(ctx, "Payment reconciled",
		"transaction_id", in.TransactionID, "source", source, "status", status,
		"activated", result.Activated, "skipped", result.Skipped)
	return result, nil
}

func (s *service) reconcile(ctx context.Context, in ReconcileInput, status models.PaymentStatus) (*ReconcileResult, error) {
	attempt, err := s.findAttempt(ctx, in)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentLogNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, dbError(err)
	}

	s.audit(ctx, attempt, in.Metadata)

	if attempt.Status == status {
		return &ReconcileResult{Status: status, Skipped: true}, nil
	}

	now := s.now().UTC()
	update := repositories.PaymentStatusUpdate{
		Status:           status,
		PaymentMethod:    NormalizeMedium(in.Metadata.Medium),
		FinancialTransID: in.Metadata.FinancialTransID,
		PayerName:        in.Metadata.PayerName,
	}
	if status == models.PaymentStatusSuccessful {
		confirmed := now
		if in.Metadata.DateConfirmed != nil {
			confirmed = in.Metadata.DateConfirmed.UTC()
		}
		update.ConfirmedAt = &confirmed
	}

	var (
		applied    bool
		activated  bool
		sub        *models.Subscription
		superseded string
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var txErr error
		applied, txErr = s.paymentLogs.ApplyStatus(ctx, in.TransactionID, update)
		if txErr != nil || !applied {
			return txErr
		}
		if status != models.PaymentStatusSuccessful {
			return nil
		}
		sub, superseded, activated, txErr = s.activate(ctx, attempt, now)
		return txErr
	})
	if err != nil {
		return nil, dbError(err)
	}

	if !applied {
		// Another caller got there first.
		return &ReconcileResult{Status: status, Skipped: true}, nil
	}

	attempt.Status = status
	attempt.ConfirmedAt = update.ConfirmedAt
	if update.PaymentMethod != "" {
		attempt.PaymentMethod = update.PaymentMethod
	}

	switch {
	case activated:
		metrics.RecordActivation(string(sub.SubscriptionType))
		s.publish(ctx, events.SubscriptionActivated, sub, "")
		s.notifyActivated(ctx, sub, attempt)
		if superseded != "" {
			s.expireSuperseded(ctx, superseded)
		}
	case status == models.PaymentStatusFailed:
		s.notify(ctx, "payment_failed", func(n Notifier) error {
			return n.PaymentFailed(ctx, attempt)
		})
	}

	return &ReconcileResult{Status: status, Activated: activated, Subscription: sub}, nil
}

// findAttempt looks the attempt up by transaction id. An initiation that
// timed out never stored one, so a report carrying the external id (the
// subscription id sent at initiation) is linked to that attempt instead.
func (s *service) findAttempt(ctx context.Context, in ReconcileInput) (*models.PaymentLog, error) {
	attempt, err := s.paymentLogs.FindByTransID(ctx, in.TransactionID)
	if !errors.Is(err, repositories.ErrPaymentLogNotFound) || in.Metadata.ExternalID == "" {
		return attempt, err
	}
	if _, parseErr := uuid.Parse(in.Metadata.ExternalID); parseErr != nil {
		return nil, err
	}

	attempt, err = s.paymentLogs.LinkUnlinked(ctx, in.Metadata.ExternalID, in.TransactionID, in.Metadata.Amount)
	if err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "Linked transaction to timed out attempt",
		"transaction_id", in.TransactionID, "payment_log_id", attempt.ID, "subscription_id", attempt.SubscriptionID)
	return attempt, nil
}

// activate moves the attempt's subscription from pending to active and
// projects the entitlement onto the user. Only the caller whose conditional
// update wins writes the projection. The plan, price and transaction id
// written are the attempt's: a pending row reused by a newer attempt may
// carry a different plan by now. The second return is the transaction id of
// that newer attempt, if the row was handed over to one.
func (s *service) activate(ctx context.Context, attempt *models.PaymentLog, now time.Time) (*models.Subscription, string, bool, error) {
	sub, err := s.subscriptions.FindByTransactionID(ctx, attempt.TransID())
	if errors.Is(err, repositories.ErrSubscriptionNotFound) && attempt.SubscriptionID != "" {
		// The pending row was reused by a newer attempt.
		sub, err = s.subscriptions.FindByID(ctx, attempt.SubscriptionID)
	}
	if errors.Is(err, repositories.ErrSubscriptionNotFound) {
		logger.CtxWarn(ctx, "No subscription for successful payment", "transaction_id", attempt.TransID())
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}

	if sub.Status != models.SubscriptionStatusPending {
		logger.CtxInfo(ctx, "Subscription not pending, activation skipped",
			"subscription_id", sub.ID, "status", sub.Status)
		return sub, "", false, nil
	}

	plan, ok := LookupPlan(attempt.SubscriptionType)
	if !ok || !plan.Purchasable() {
		logger.CtxWarn(ctx, "Payment has no purchasable plan, activation skipped",
			"subscription_id", sub.ID, "plan", attempt.SubscriptionType)
		return sub, "", false, nil
	}

	var superseded string
	if sub.FapshiTransactionID != nil && *sub.FapshiTransactionID != attempt.TransID() {
		superseded = *sub.FapshiTransactionID
	}
	if sub.SubscriptionType != plan.Type || sub.Price != attempt.Amount {
		logger.CtxWarn(ctx, "Activating reused subscription with the paid plan",
			"subscription_id", sub.ID, "paid_plan", plan.Type, "paid_amount", attempt.Amount,
			"row_plan", sub.SubscriptionType, "row_price", sub.Price)
	}

	transID := attempt.TransID()
	expiry := plan.ExpiryFrom(now)
	won, err := s.subscriptions.Activate(ctx, sub.ID, repositories.SubscriptionActivation{
		SubscriptionType: plan.Type,
		Price:            attempt.Amount,
		TransactionID:    transID,
		Start:            now,
		Expiry:           expiry,
	})
	if err != nil || !won {
		return sub, "", false, err
	}
	if err := s.users.SetPremium(ctx, sub.UserID, expiry); err != nil {
		return nil, "", false, err
	}

	start := now
	sub.Status = models.SubscriptionStatusActive
	sub.SubscriptionType = plan.Type
	sub.Price = attempt.Amount
	sub.FapshiTransactionID = &transID
	sub.StartDate = &start
	sub.ExpiryDate = &expiry
	sub.RenewalDate = &expiry
	return sub, superseded, true, nil
}

// expireSuperseded closes the newer attempt at the provider once its row has
// been paid for by an older one, so the payer is not charged twice.
func (s *service) expireSuperseded(ctx context.Context, transID string) {
	if err := s.provider.ExpirePayment(ctx, transID); err != nil {
		logger.CtxWithError(ctx, "Failed to expire superseded payment", err, "transaction_id", transID)
		return
	}
	_, err := s.Reconcile(ctx, ReconcileInput{
		TransactionID:  transID,
		ProviderStatus: fapshi.StatusExpired,
		Source:         SourceSweep,
	})
	if err != nil {
		logger.CtxWithError(ctx, "Failed to record superseded payment", err, "transaction_id", transID)
	}
}

func (s *service) notifyActivated(ctx context.Context, sub *models.Subscription, attempt *models.PaymentLog) {
	user, err := s.users.FindByID(ctx, sub.UserID)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to load user for payment notification", err, "user_id", sub.UserID)
		return
	}
	s.notify(ctx, "payment_success", func(n Notifier) error {
		return n.PaymentSucceeded(ctx, user, sub, attempt)
	})
}

// audit compares the stored digest and the reported amount. It only logs.
func (s *service) audit(ctx context.Context, attempt *models.PaymentLog, meta PaymentMetadata) {
	if !VerifyChecksum(attempt) {
		logger.CtxWarn(ctx, "Payment log checksum mismatch", "payment_log_id", attempt.ID)
	}
	if meta.Amount != 0 && meta.Amount != attempt.Amount {
		logger.CtxWarn(ctx, "Provider amount differs from logged amount",
			"payment_log_id", attempt.ID, "logged", attempt.Amount, "reported", meta.Amount)
	}
}
