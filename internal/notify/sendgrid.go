package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// SendGridMailer delivers through the SendGrid v3 mail API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   From
	logger *logging.Logger
}

// NewSendGridMailer returns nil without an API key so callers can fall back.
func NewSendGridMailer(apiKey string, from From, logger *logging.Logger) *SendGridMailer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from.withDefaults(),
		logger: logger,
	}
}

func (m *SendGridMailer) Deliver(ctx context.Context, email Email) error {
	if m == nil || m.client == nil {
		return deliveryError("sendgrid", errors.New("client not configured"))
	}
	if err := email.validate(); err != nil {
		return err
	}

	resp, err := m.client.SendWithContext(ctx, m.build(email))
	if err != nil {
		return deliveryError("sendgrid", err)
	}
	if resp.StatusCode >= 300 {
		m.logger.Error("sendgrid rejected email",
			"status", resp.StatusCode,
			"category", email.Category,
			"body", resp.Body,
		)
		return deliveryError("sendgrid", fmt.Errorf("status %d", resp.StatusCode))
	}
	m.logger.Info("email delivered", "provider", "sendgrid", "category", email.Category)
	return nil
}

// build keeps the text part first; SendGrid rejects text/plain after text/html.
// Click tracking is off so the app link in the body is not rewritten.
func (m *SendGridMailer) build(email Email) *mail.SGMailV3 {
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(m.from.Name, m.from.Address))
	msg.Subject = email.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", email.To))
	for k, v := range email.Metadata {
		p.SetCustomArg(k, v)
	}
	msg.AddPersonalizations(p)

	if email.Text != "" {
		msg.AddContent(mail.NewContent("text/plain", email.Text))
	}
	if email.HTML != "" {
		msg.AddContent(mail.NewContent("text/html", email.HTML))
	}
	if email.Category != "" {
		msg.AddCategories(email.Category)
	}

	tracking := mail.NewTrackingSettings()
	tracking.SetClickTracking(mail.NewClickTrackingSetting().SetEnable(false))
	msg.SetTrackingSettings(tracking)
	return msg
}

var _ Mailer = (*SendGridMailer)(nil)
