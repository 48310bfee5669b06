package models

import "time"

// PaymentLog is one payment attempt against the provider.
type PaymentLog struct {
	BaseModel
	UserID                 string           `gorm:"type:uuid;not null;index" json:"userId"`
	SubscriptionID         string           `gorm:"type:uuid;index" json:"subscriptionId"`
	FapshiTransID          *string          `gorm:"uniqueIndex" json:"fapshiTransId,omitempty"`
	FapshiFinancialTransID string           `json:"fapshiFinancialTransId,omitempty"`
	Amount                 int64            `gorm:"not null" json:"amount"`
	Currency               string           `gorm:"type:varchar(3);default:'XAF'" json:"currency"`
	PaymentMethod          PaymentMethod    `gorm:"type:varchar(20)" json:"paymentMethod"`
	SubscriptionType       SubscriptionType `gorm:"type:varchar(20);not null" json:"subscriptionType"`
	Status                 PaymentStatus    `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	PayerName              string           `json:"payerName,omitempty"`
	PayerPhone             string           `json:"payerPhone,omitempty"`
	PayerEmail             string           `json:"payerEmail,omitempty"`
	InitiatedAt            time.Time        `json:"initiatedAt"`
	ConfirmedAt            *time.Time       `json:"confirmedAt,omitempty"`
	ExpiresAt              *time.Time       `gorm:"index" json:"expiresAt,omitempty"`
	RetryCount             int              `gorm:"default:0" json:"retryCount"`
	ErrorMessage           string           `json:"errorMessage,omitempty"`
	IPAddress              string           `json:"-"`
	UserAgent              string           `json:"-"`
	SecurityChecksum       string           `json:"-"`
}

// TransID dereferences FapshiTransID.
func (p *PaymentLog) TransID() string {
	if p.FapshiTransID == nil {
		return ""
	}
	return *p.FapshiTransID
}

// Live reports whether the attempt can still be completed by the payer at t.
func (p *PaymentLog) Live(t time.Time) bool {
	if p.Status != PaymentStatusCreated && p.Status != PaymentStatusPending {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(t)
}
