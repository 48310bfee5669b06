package fapshi

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// The provider's status vocabulary.
const (
	StatusCreated    = "CREATED"
	StatusPending    = "PENDING"
	StatusSuccessful = "SUCCESSFUL"
	StatusFailed     = "FAILED"
	StatusExpired    = "EXPIRED"
)

type RedirectPaymentRequest struct {
	Amount      int64  `json:"amount"`
	Email       string `json:"email,omitempty"`
	UserID      string `json:"userId,omitempty"`
	ExternalID  string `json:"externalId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

type RedirectPaymentResponse struct {
	Message       string `json:"message"`
	Link          string `json:"link"`
	TransID       string `json:"transId"`
	DateInitiated string `json:"dateInitiated"`
}

type DirectPaymentRequest struct {
	Amount     int64  `json:"amount"`
	Phone      string `json:"phone"`
	Medium     string `json:"medium,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	UserID     string `json:"userId,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type DirectPaymentResponse struct {
	Message       string `json:"message"`
	TransID       string `json:"transId"`
	DateInitiated string `json:"dateInitiated"`
}

// PaymentStatus is the body of GET /payment-status/:transId and of webhooks.
type PaymentStatus struct {
	TransID          string `json:"transId"`
	Status           string `json:"status"`
	Medium           string `json:"medium"`
	ServiceName      string `json:"serviceName,omitempty"`
	Amount           int64  `json:"amount"`
	RevenueAmount    int64  `json:"revenueAmount,omitempty"`
	PayerName        string `json:"payerName"`
	Email            string `json:"email"`
	RedirectURL      string `json:"redirectUrl,omitempty"`
	ExternalID       string `json:"externalId"`
	UserID           string `json:"userId"`
	FinancialTransID string `json:"financialTransId"`
	DateInitiated    string `json:"dateInitiated"`
	DateConfirmed    string `json:"dateConfirmed"`
}

// ConfirmedAt parses DateConfirmed. The provider sends either RFC 3339 or
// a bare date.
func (p *PaymentStatus) ConfirmedAt() *time.Time {
	s := strings.TrimSpace(p.DateConfirmed)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

type errorResponse struct {
	Message string `json:"message"`
}

// Error is a failed provider call.
type Error struct {
	StatusCode int
	Message    string
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fapshi: %s (status %d): %v", e.Message, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fapshi: %s (status %d)", e.Message, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a provider timeout, where the request
// may or may not have been accepted.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout
}
