package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"

	"gopkg.in/gomail.v2"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// GomailSender sends synchronously over SMTP.
type GomailSender struct {
	config *SMTPConfig
	dialer *gomail.Dialer
}

func NewGomailSender(config *SMTPConfig) *GomailSender {
	return &GomailSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

func (s *GomailSender) Validate() error {
	if s.config.Host == "" {
		return errors.New("smtp host is not configured")
	}
	if s.config.FromEmail == "" {
		return errors.New("from email is not configured")
	}
	return nil
}

func (s *GomailSender) Send(ctx context.Context, email *Email) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromEmail, s.config.FromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.HTMLBody != "" {
		m.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			m.AddAlternative("text/plain", email.Body)
		}
	} else {
		m.SetBody("text/plain", email.Body)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}
	logger.CtxInfo(ctx, "email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// LogSender only logs. Used when email is disabled.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, email *Email) error {
	logger.CtxInfo(ctx, "email delivery disabled, dropping message", "to", email.To, "subject", email.Subject)
	return nil
}
