package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/metrics"
	"github.com/EnowBibi/KontriVibeBackend/internal/models"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/dto"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

// WebhookService records inbound provider notifications and feeds them to
// the reconciliation engine.
type WebhookService interface {
	Process(ctx context.Context, payload *dto.WebhookPayload) (*subscription.ReconcileResult, error)
}

type webhookService struct {
	events        repositories.WebhookEventRepository
	subscriptions subscription.Service
	provider      subscription.Provider
	verify        bool
	now           func() time.Time
}

// NewWebhookService builds the service. With verify on, the reported status
// is re-fetched from the provider and the payload is only a trigger.
func NewWebhookService(
	events repositories.WebhookEventRepository,
	subscriptions subscription.Service,
	provider subscription.Provider,
	verify bool,
) WebhookService {
	return &webhookService{
		events:        events,
		subscriptions: subscriptions,
		provider:      provider,
		verify:        verify,
		now:           time.Now,
	}
}

var errMissingTransID = apperrors.FieldError("transId", "transId is required")

func (s *webhookService) Process(ctx context.Context, payload *dto.WebhookPayload) (*subscription.ReconcileResult, error) {
	ctx = logger.WithCorrelationID(ctx, payload.TransID)
	event := s.record(ctx, payload)

	res, err := s.reconcile(ctx, payload)
	s.finish(ctx, event, err)

	switch {
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		metrics.RecordWebhook("not_found")
	case err != nil:
		metrics.RecordWebhook("error")
	case res.Skipped:
		metrics.RecordWebhook("duplicate")
	default:
		metrics.RecordWebhook("processed")
	}
	return res, err
}

func (s *webhookService) reconcile(ctx context.Context, payload *dto.WebhookPayload) (*subscription.ReconcileResult, error) {
	if payload.TransID == "" {
		return nil, errMissingTransID
	}

	status := payload.ToStatus()
	if s.verify {
		remote, err := s.provider.GetPaymentStatus(ctx, payload.TransID)
		if err != nil {
			return nil, apperrors.ErrPaymentVerification(err)
		}
		if remote.Status != payload.Status {
			logger.CtxWarn(ctx, "Webhook status differs from provider",
				"transaction_id", payload.TransID, "reported", payload.Status, "provider", remote.Status)
		}
		status = remote
	}

	return s.subscriptions.Reconcile(ctx, subscription.ReconcileInput{
		TransactionID:  payload.TransID,
		ProviderStatus: status.Status,
		Metadata:       subscription.MetadataFrom(status),
		Source:         subscription.SourceWebhook,
	})
}

// record stores the raw event. A failed insert is logged and processing
// goes on without the audit row.
func (s *webhookService) record(ctx context.Context, payload *dto.WebhookPayload) *models.WebhookEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	event := &models.WebhookEvent{
		Provider: "fapshi",
		TransID:  payload.TransID,
		Status:   payload.Status,
		Payload:  datatypes.JSON(raw),
	}
	if err := s.events.Create(ctx, event); err != nil {
		logger.CtxWithError(ctx, "Failed to store webhook event", err, "transaction_id", payload.TransID)
		return nil
	}
	return event
}

func (s *webhookService) finish(ctx context.Context, event *models.WebhookEvent, procErr error) {
	if event == nil {
		return
	}
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := s.events.MarkProcessed(ctx, event.ID, s.now().UTC(), msg); err != nil {
		logger.CtxWithError(ctx, "Failed to mark webhook event processed", err, "webhook_event_id", event.ID)
	}
}
