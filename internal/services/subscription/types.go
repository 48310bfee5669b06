package subscription

import (
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/models"
)

// Payment initiation methods accepted from clients.
const (
	MethodRedirect = "redirect"
	MethodDirect   = "direct"
)

// Reconcile callers.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
	SourceSweep   = "sweep"
)

// AttemptTTL is how long a payment link or push request stays payable.
const AttemptTTL = 15 * time.Minute

type CreateAttemptInput struct {
	UserID           string
	SubscriptionType models.SubscriptionType
	PaymentMethod    string
	RedirectURL      string
	Phone            string
	IPAddress        string
	UserAgent        string
}

type AttemptResult struct {
	SubscriptionID   string                    `json:"subscriptionId"`
	SubscriptionType models.SubscriptionType   `json:"subscriptionType"`
	Amount           int64                     `json:"amount"`
	Currency         string                    `json:"currency"`
	DurationDays     int                       `json:"durationDays"`
	Status           models.SubscriptionStatus `json:"status"`
	PaymentMethod    string                    `json:"paymentMethod"`
	TransactionID    string                    `json:"transactionId"`
	PaymentLink      string                    `json:"paymentLink,omitempty"`
	ExpiresIn        string                    `json:"expiresIn"`
}

// PaymentMetadata is what the provider reports alongside a status.
type PaymentMetadata struct {
	FinancialTransID string
	Medium           string
	DateConfirmed    *time.Time
	Amount           int64
	PayerName        string
	Email            string
	ExternalID       string
}

type ReconcileInput struct {
	TransactionID  string
	ProviderStatus string
	Metadata       PaymentMetadata
	Source         string
}

type ReconcileResult struct {
	Status       models.PaymentStatus `json:"status"`
	Activated    bool                 `json:"activated"`
	Skipped      bool                 `json:"skipped"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

type SubscriptionSummary struct {
	ID            string                    `json:"id"`
	Type          models.SubscriptionType   `json:"type"`
	Status        models.SubscriptionStatus `json:"status"`
	Price         int64                     `json:"price"`
	Currency      string                    `json:"currency"`
	StartDate     *time.Time                `json:"startDate,omitempty"`
	ExpiryDate    *time.Time                `json:"expiryDate,omitempty"`
	RenewalDate   *time.Time                `json:"renewalDate,omitempty"`
	DaysRemaining int                       `json:"daysRemaining"`
	AutoRenew     bool                      `json:"autoRenew"`
}

type VerifyResult struct {
	Status       models.PaymentStatus `json:"status"`
	Activated    bool                 `json:"activated"`
	Subscription *SubscriptionSummary `json:"subscription,omitempty"`
}

type CancelResult struct {
	SubscriptionID string                    `json:"subscriptionId"`
	Status         models.SubscriptionStatus `json:"status"`
	Reason         string                    `json:"reason"`
	CancelledAt    time.Time                 `json:"cancelledAt"`
}

type Entitlement struct {
	IsPremiumActive  bool                 `json:"isPremiumActive"`
	PremiumExpiresAt *time.Time           `json:"premiumExpiresAt,omitempty"`
	DaysRemaining    int                  `json:"daysRemaining"`
	Subscription     *SubscriptionSummary `json:"subscription,omitempty"`
}

// daysRemaining rounds a positive remainder up to whole days.
func daysRemaining(until *time.Time, now time.Time) int {
	if until == nil {
		return 0
	}
	ms := until.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	const msPerDay = int64(86_400_000)
	return int((ms + msPerDay - 1) / msPerDay)
}

func summarize(sub *models.Subscription, now time.Time) *SubscriptionSummary {
	if sub == nil {
		return nil
	}
	return &SubscriptionSummary{
		ID:            sub.ID,
		Type:          sub.SubscriptionType,
		Status:        sub.Status,
		Price:         sub.Price,
		Currency:      sub.Currency,
		StartDate:     sub.StartDate,
		ExpiryDate:    sub.ExpiryDate,
		RenewalDate:   sub.RenewalDate,
		DaysRemaining: daysRemaining(sub.ExpiryDate, now),
		AutoRenew:     sub.AutoRenew,
	}
}
