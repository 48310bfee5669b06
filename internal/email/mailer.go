package email

import (
	"context"
	"fmt"
	"time"
)

// Mailer builds the transactional emails the subscription flow sends.
type Mailer struct {
	sender    Sender
	templates *TemplateManager
}

func NewMailer(sender Sender, templates *TemplateManager) *Mailer {
	return &Mailer{sender: sender, templates: templates}
}

type ReceiptData struct {
	Name          string
	Plan          string
	Amount        int64
	Currency      string
	TransactionID string
	ExpiryDate    time.Time
}

func (m *Mailer) SendPaymentReceipt(ctx context.Context, to string, data ReceiptData) error {
	html, err := m.templates.Render(TemplatePaymentReceipt, TemplateData{
		"Name":          data.Name,
		"Plan":          data.Plan,
		"Amount":        data.Amount,
		"Currency":      data.Currency,
		"TransactionID": data.TransactionID,
		"ExpiryDate":    data.ExpiryDate.Format("02 Jan 2006"),
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, &Email{
		To:       to,
		Subject:  "Your KontriVibe Premium receipt",
		Body:     fmt.Sprintf("Your %s plan is active until %s.", data.Plan, data.ExpiryDate.Format("02 Jan 2006")),
		HTMLBody: html,
	})
}

func (m *Mailer) SendCancellation(ctx context.Context, to, name, plan string) error {
	html, err := m.templates.Render(TemplateSubscriptionCancelled, TemplateData{"Name": name, "Plan": plan})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, &Email{
		To:       to,
		Subject:  "Your KontriVibe subscription was cancelled",
		HTMLBody: html,
	})
}

func (m *Mailer) SendExpiringReminder(ctx context.Context, to, name, plan string, expiry time.Time, daysRemaining int) error {
	html, err := m.templates.Render(TemplateSubscriptionExpiring, TemplateData{
		"Name":          name,
		"Plan":          plan,
		"ExpiryDate":    expiry.Format("02 Jan 2006"),
		"DaysRemaining": daysRemaining,
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, &Email{
		To:       to,
		Subject:  "Your KontriVibe Premium is about to expire",
		HTMLBody: html,
	})
}
