package models

import "time"

// Subscription is one purchase of a premium plan. The partial unique index
// allows a single open (active or pending) row per user while keeping
// cancelled and expired rows as history. Revision is bumped each time a
// pending row is handed to a new payment attempt.
type Subscription struct {
	BaseModel
	UserID              string             `gorm:"type:uuid;not null;index;index:idx_subscriptions_open_user,unique,where:status <> 'cancelled' AND status <> 'expired'" json:"userId"`
	SubscriptionType    SubscriptionType   `gorm:"type:varchar(20);not null" json:"subscriptionType"`
	Status              SubscriptionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Price               int64              `gorm:"not null" json:"price"`
	Currency            string             `gorm:"type:varchar(3);default:'XAF'" json:"currency"`
	StartDate           *time.Time         `json:"startDate,omitempty"`
	ExpiryDate          *time.Time         `gorm:"index" json:"expiryDate,omitempty"`
	RenewalDate         *time.Time         `json:"renewalDate,omitempty"`
	FapshiTransactionID *string            `gorm:"uniqueIndex" json:"fapshiTransactionId,omitempty"`
	AutoRenew           bool               `gorm:"default:true" json:"autoRenew"`
	CancellationReason  string             `json:"cancellationReason,omitempty"`
	CancelledAt         *time.Time         `json:"cancelledAt,omitempty"`
	LastReminderAt      *time.Time         `json:"-"`
	Revision            int64              `gorm:"not null;default:0" json:"-"`
}
