package dto

import (
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/services/subscription"
)

type CreateSubscriptionRequest struct {
	SubscriptionType string `json:"subscriptionType" validate:"required,plan"`
	PaymentMethod    string `json:"paymentMethod" validate:"required,payment_method"`
	RedirectURL      string `json:"redirectUrl" validate:"required_if=PaymentMethod redirect,omitempty,url"`
	Phone            string `json:"phone" validate:"required_if=PaymentMethod direct,omitempty,cm_phone"`
}

type VerifyPaymentRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// WebhookPayload is the provider's status notification body. Fields are
// optional here; the handler reports a missing transId itself.
type WebhookPayload struct {
	TransID          string `json:"transId"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	PayerName        string `json:"payerName"`
	Email            string `json:"email"`
	FinancialTransID string `json:"financialTransId"`
	DateConfirmed    string `json:"dateConfirmed"`
	Medium           string `json:"medium"`
	ExternalID       string `json:"externalId"`
	UserID           string `json:"userId"`
}

// ToStatus views the payload as a provider status report.
func (p *WebhookPayload) ToStatus() *fapshi.PaymentStatus {
	return &fapshi.PaymentStatus{
		TransID:          p.TransID,
		Status:           p.Status,
		Medium:           p.Medium,
		Amount:           p.Amount,
		PayerName:        p.PayerName,
		Email:            p.Email,
		ExternalID:       p.ExternalID,
		UserID:           p.UserID,
		FinancialTransID: p.FinancialTransID,
		DateConfirmed:    p.DateConfirmed,
	}
}

type PlanResponse struct {
	Type         string `json:"type"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"durationDays"`
}

func NewPlanResponse(p subscription.Plan) PlanResponse {
	return PlanResponse{
		Type:         string(p.Type),
		Price:        p.Price,
		Currency:     p.Currency,
		DurationDays: p.DurationDays,
	}
}
