package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

var errMissingTransID = &fapshi.Error{StatusCode: http.StatusBadGateway, Message: "provider response has no transaction id"}

// validateAttempt checks the request shape before anything is read or written.
func validateAttempt(in CreateAttemptInput) (Plan, error) {
	plan, ok := LookupPlan(in.SubscriptionType)
	if !ok || !plan.Purchasable() {
		return Plan{}, apperrors.FieldError("subscriptionType", "must be one of monthly, quarterly, yearly")
	}

	switch in.PaymentMethod {
	case MethodRedirect:
		if strings.TrimSpace(in.RedirectURL) == "" {
			return Plan{}, apperrors.FieldError("redirectUrl", "redirectUrl is required for redirect payments")
		}
	case MethodDirect:
		if in.Phone == "" {
			return Plan{}, apperrors.FieldError("phone", "phone is required for direct payments")
		}
		if !fapshi.ValidPhone(in.Phone) {
			return Plan{}, apperrors.FieldError("phone", "phone must be a 9 digit number starting with 6")
		}
	default:
		return Plan{}, apperrors.FieldError("paymentMethod", "must be one of redirect, direct")
	}
	return plan, nil
}

func (s *service) CreateAttempt(ctx context.Context, in CreateAttemptInput) (*AttemptResult, error) {
	plan, err := validateAttempt(in)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, dbError(err)
	}

	// Truncated so the stored timestamp reproduces the checksum.
	now := s.now().UTC().Truncate(time.Millisecond)

	var (
		sub     *models.Subscription
		attempt *models.PaymentLog
	)
	err = s.withLock(ctx, lock.UserSubscriptionKey(user.ID), func(ctx context.Context) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var txErr error
			sub, txErr = s.prepareSubscription(ctx, user.ID, plan, now)
			if txErr != nil {
				return txErr
			}

			attempt = &models.PaymentLog{
				UserID:           user.ID,
				SubscriptionID:   sub.ID,
				Amount:           plan.Price,
				Currency:         plan.Currency,
				PaymentMethod:    paymentMethodFor(in.PaymentMethod),
				SubscriptionType: plan.Type,
				Status:           models.PaymentStatusCreated,
				PayerPhone:       in.Phone,
				PayerEmail:       user.Email,
				PayerName:        user.FullName,
				InitiatedAt:      now,
				IPAddress:        in.IPAddress,
				UserAgent:        in.UserAgent,
				SecurityChecksum: Checksum(user.ID, plan.Price, plan.Type, now),
			}
			return s.paymentLogs.Create(ctx, attempt)
		})
	})
	if err != nil {
		return nil, dbError(err)
	}

	transID, link, err := s.initiate(ctx, in, user, sub, plan)
	if err != nil {
		metrics.RecordPaymentAttempt(string(plan.Type), in.PaymentMethod, "failed")
		if markErr := s.paymentLogs.MarkInitiationFailed(ctx, attempt.ID, err.Error()); markErr != nil {
			logger.CtxWithError(ctx, "Failed to mark payment attempt as failed", markErr, "payment_log_id", attempt.ID)
		}
		retryable := fapshi.IsTimeout(err)
		logger.CtxWithError(ctx, "Payment initiation failed", err,
			"subscription_id", sub.ID, "method", in.PaymentMethod, "retryable", retryable)
		return nil, apperrors.ErrPaymentInitiation(err, retryable)
	}

	expiresAt := s.now().UTC().Add(AttemptTTL)
	if err := s.paymentLogs.MarkInitiated(ctx, attempt.ID, transID, expiresAt); err != nil {
		return nil, dbError(err)
	}
	if err := s.subscriptions.SetTransactionID(ctx, sub.ID, transID); err != nil {
		return nil, dbError(err)
	}

	metrics.RecordPaymentAttempt(string(plan.Type), in.PaymentMethod, "initiated")
	logger.CtxInfo(ctx, "Payment initiated",
		"subscription_id", sub.ID, "transaction_id", transID, "plan", plan.Type, "method", in.PaymentMethod)

	return &AttemptResult{
		SubscriptionID:   sub.ID,
		SubscriptionType: plan.Type,
		Amount:           plan.Price,
		Currency:         plan.Currency,
		DurationDays:     plan.DurationDays,
		Status:           models.SubscriptionStatusPending,
		PaymentMethod:    in.PaymentMethod,
		TransactionID:    transID,
		PaymentLink:      link,
		ExpiresIn:        "15 minutes",
	}, nil
}

// prepareSubscription returns the pending row the new attempt belongs to.
// An open subscription with a payable attempt is a conflict. A pending row
// whose attempts are all dead is reused.
func (s *service) prepareSubscription(ctx context.Context, userID string, plan Plan, now time.Time) (*models.Subscription, error) {
	open, err := s.subscriptions.FindOpenByUser(ctx, userID)
	if errors.Is(err, repositories.ErrSubscriptionNotFound) {
		sub := &models.Subscription{
			UserID:           userID,
			SubscriptionType: plan.Type,
			Status:           models.SubscriptionStatusPending,
			Price:            plan.Price,
			Currency:         plan.Currency,
			AutoRenew:        true,
		}
		if err := s.subscriptions.Create(ctx, sub); err != nil {
			if errors.Is(err, repositories.ErrOpenSubscriptionExists) {
				return nil, apperrors.ErrSubscriptionExists
			}
			return nil, err
		}
		return sub, nil
	}
	if err != nil {
		return nil, err
	}

	if open.Status == models.SubscriptionStatusActive {
		return nil, conflict(open, now)
	}

	latest, err := s.paymentLogs.FindLatestBySubscription(ctx, open.ID)
	switch {
	case err == nil:
		if attemptLive(latest, now) {
			return nil, conflict(open, now)
		}
	case !errors.Is(err, repositories.ErrPaymentLogNotFound):
		return nil, err
	}

	// Another attempt that took the row since it was read wins.
	if err := s.subscriptions.RepricePending(ctx, open.ID, open.Revision, plan.Type, plan.Price); err != nil {
		if errors.Is(err, repositories.ErrSubscriptionStateChanged) {
			return nil, conflict(open, now)
		}
		return nil, err
	}
	logger.CtxInfo(ctx, "Reusing stale pending subscription", "subscription_id", open.ID, "plan", plan.Type)

	open.SubscriptionType = plan.Type
	open.Price = plan.Price
	open.FapshiTransactionID = nil
	open.Revision++
	return open, nil
}

// attemptLive reports whether the payer may still complete log. An attempt
// that never got an expiry counts as in flight for one AttemptTTL.
func attemptLive(log *models.PaymentLog, now time.Time) bool {
	if !log.Live(now) {
		return false
	}
	if log.ExpiresAt == nil {
		return now.Sub(log.InitiatedAt) < AttemptTTL
	}
	return true
}

func conflict(open *models.Subscription, now time.Time) error {
	return apperrors.ErrSubscriptionExists.WithDetails(map[string]interface{}{
		"currentSubscription": summarize(open, now),
	})
}

// initiate calls the provider outside any transaction.
func (s *service) initiate(ctx context.Context, in CreateAttemptInput, user *models.User, sub *models.Subscription, plan Plan) (string, string, error) {
	message := fmt.Sprintf("KontriVibe %s subscription", plan.Type)

	if in.PaymentMethod == MethodDirect {
		resp, err := s.provider.InitiateDirectPayment(ctx, fapshi.DirectPaymentRequest{
			Amount:     plan.Price,
			Phone:      in.Phone,
			Name:       user.FullName,
			Email:      user.Email,
			UserID:     user.ID,
			ExternalID: sub.ID,
			Message:    message,
		})
		if err != nil {
			return "", "", err
		}
		if resp.TransID == "" {
			return "", "", errMissingTransID
		}
		return resp.TransID, "", nil
	}

	resp, err := s.provider.InitiateRedirectPayment(ctx, fapshi.RedirectPaymentRequest{
		Amount:      plan.Price,
		Email:       user.Email,
		UserID:      user.ID,
		ExternalID:  sub.ID,
		RedirectURL: in.RedirectURL,
		Message:     message,
	})
	if err != nil {
		return "", "", err
	}
	if resp.TransID == "" {
		return "", "", errMissingTransID
	}
	return resp.TransID, resp.Link, nil
}

func paymentMethodFor(method string) models.PaymentMethod {
	if method == MethodDirect {
		return models.PaymentMethodDirectPay
	}
	return models.PaymentMethodRedirectPay
}
