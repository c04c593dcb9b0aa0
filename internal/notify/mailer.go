package notify

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/wolfman30/love-auditor/pkg/logging"
)

// DefaultFromName is the sender display name when none is configured.
const DefaultFromName = "Love Auditor"

// CategoryPremiumUnlock tags the premium-unlocked email at the provider.
const CategoryPremiumUnlock = "premium_unlock"

// Mailer hands a rendered email to a delivery provider.
type Mailer interface {
	Deliver(ctx context.Context, email Email) error
}

// Email is a rendered transactional message. Category and Metadata travel
// to the provider as tags so bounces can be traced to the purchase.
type Email struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	Category string
	Metadata map[string]string
}

func (e Email) validate() error {
	if strings.TrimSpace(e.To) == "" {
		return errors.New("notify: recipient required")
	}
	if strings.TrimSpace(e.Subject) == "" {
		return errors.New("notify: subject required")
	}
	if e.Text == "" && e.HTML == "" {
		return errors.New("notify: empty body")
	}
	return nil
}

// From is the envelope sender shared by every provider.
type From struct {
	Address string
	Name    string
}

func (f From) withDefaults() From {
	f.Address = strings.TrimSpace(f.Address)
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = DefaultFromName
	}
	return f
}

// header renders the RFC 5322 From value, quoting the display name.
func (f From) header() string {
	return (&netmail.Address{Name: f.Name, Address: f.Address}).String()
}

// LogMailer records deliveries in the log instead of sending them. It is the
// mailer when no provider is configured.
type LogMailer struct {
	logger *logging.Logger
}

func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Deliver(_ context.Context, email Email) error {
	if err := email.validate(); err != nil {
		return err
	}
	m.logger.Info("email delivery skipped: no provider configured",
		"category", email.Category,
		"subject", email.Subject,
	)
	return nil
}

func deliveryError(provider string, err error) error {
	return fmt.Errorf("notify: %s delivery: %w", provider, err)
}

var _ Mailer = (*LogMailer)(nil)
