package subscription

import (
	"context"
	"errors"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// VerifyPayment polls the provider for one of the caller's transactions and
// reconciles the answer.
func (s *service) VerifyPayment(ctx context.Context, userID, transID string) (*VerifyResult, error) {
	attempt, err := s.paymentLogs.FindByTransIDForUser(ctx, transID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentLogNotFound) {
			return nil, apperrors.ErrTransactionNotOwned
		}
		return nil, dbError(err)
	}

	remote, err := s.provider.GetPaymentStatus(ctx, transID)
	if err != nil {
		logger.CtxWithError(ctx, "Payment status lookup failed", err, "transaction_id", transID)
		return nil, apperrors.ErrPaymentVerification(err)
	}

	res, err := s.Reconcile(ctx, ReconcileInput{
		TransactionID:  transID,
		ProviderStatus: remote.Status,
		Metadata:       MetadataFrom(remote),
		Source:         SourceVerify,
	})
	if err != nil {
		return nil, err
	}

	out := &VerifyResult{Status: res.Status, Activated: res.Activated}
	if attempt.Status == models.PaymentStatusSuccessful {
		// Already settled; a late provider answer cannot undo it.
		out.Status = models.PaymentStatusSuccessful
	}
	if out.Status != models.PaymentStatusSuccessful {
		return out, nil
	}

	sub := res.Subscription
	if sub == nil {
		sub, err = s.subscriptions.FindByID(ctx, attempt.SubscriptionID)
		if err != nil && !errors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, dbError(err)
		}
	}
	out.Subscription = summarize(sub, s.now().UTC())
	return out, nil
}
