// Package notification sends the emails that accompany workflow changes.
//
// Triggers enqueue a send_email River job inside the business transaction,
// so an email goes out only if the change it reports commits. The job
// worker renders the template and hands it to a Sender.
//
// Import Path: approvedpremises.io/cas/internal/notification
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// Email is one message to one recipient.
type Email struct {
	To              string            `json:"to"`
	ToName          string            `json:"to_name,omitempty"`
	Template        Template          `json:"template"`
	Personalisation map[string]string `json:"personalisation"`
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridSender creates a sender from the notify settings.
func NewSendGridSender(cfg config.NotifyConfig) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

// Send renders e and posts it to SendGrid.
func (s *SendGridSender) Send(ctx context.Context, e Email) error {
	subject, body, err := Render(e)
	if err != nil {
		return err
	}
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail(e.ToName, e.To), body, "")
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send %s email: %w", e.Template, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected %s email: status %d: %s", e.Template, resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	logger.FromContext(ctx).Debug("Email sent",
		zap.String("template", string(e.Template)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// LogSender renders emails and logs them instead of sending. Used when email
// delivery is disabled.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, e Email) error {
	subject, _, err := Render(e)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Email delivery disabled, not sending",
		zap.String("template", string(e.Template)),
		zap.String("subject", subject),
	)
	return nil
}

// NewSender picks the SendGrid sender when delivery is enabled.
func NewSender(cfg config.NotifyConfig) Sender {
	if cfg.Enabled {
		return NewSendGridSender(cfg)
	}
	return LogSender{}
}

var (
	_ Sender = (*SendGridSender)(nil)
	_ Sender = LogSender{}
)
