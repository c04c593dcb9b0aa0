package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/love-auditor/pkg/logging"
)

// PremiumNotifier tells a buyer their premium audit is unlocked. It satisfies
// the webhook's upgrade notifier.
type PremiumNotifier struct {
	mailer Mailer
	appURL string
	title  string
	logger *logging.Logger
}

// PremiumNotifierConfig controls the links and branding in the email.
type PremiumNotifierConfig struct {
	AppURL   string
	AppTitle string
}

func NewPremiumNotifier(mailer Mailer, cfg PremiumNotifierConfig, logger *logging.Logger) *PremiumNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	title := strings.TrimSpace(cfg.AppTitle)
	if title == "" {
		title = DefaultFromName
	}
	return &PremiumNotifier{
		mailer: mailer,
		appURL: strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/"),
		title:  title,
		logger: logger,
	}
}

// NotifyUpgrade sends the premium-unlocked email to the buyer.
func (n *PremiumNotifier) NotifyUpgrade(ctx context.Context, email, plan string) error {
	if n == nil || n.mailer == nil {
		return nil
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("notify: recipient email is required")
	}

	msg := ComposePremiumEmail(n.title, n.appURL, email, plan)
	if err := n.mailer.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("notify: premium email: %w", err)
	}
	n.logger.Info("premium unlock email sent", "plan", plan)
	return nil
}

// ComposePremiumEmail renders the premium-unlocked message.
func ComposePremiumEmail(title, appURL, email, plan string) Email {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		plan = "premium"
	}

	var body strings.Builder
	body.WriteString("Your full audit is unlocked.\n\n")
	fmt.Fprintf(&body, "Plan: %s\n", plan)
	body.WriteString("Every roast now comes with the detailed analysis, the full red flag list, and advice. You can also keep questioning the Auditor about your results.\n")
	if appURL != "" {
		fmt.Fprintf(&body, "\nJump back in: %s\n", appURL)
	}

	var page strings.Builder
	page.WriteString("<p>Your full audit is unlocked.</p>")
	fmt.Fprintf(&page, "<p>Plan: <strong>%s</strong></p>", html.EscapeString(plan))
	page.WriteString("<p>Every roast now comes with the detailed analysis, the full red flag list, and advice. You can also keep questioning the Auditor about your results.</p>")
	if appURL != "" {
		escaped := html.EscapeString(appURL)
		fmt.Fprintf(&page, "<p><a href=\"%s\">%s</a></p>", escaped, escaped)
	}

	return Email{
		To:       email,
		Subject:  fmt.Sprintf("%s: premium unlocked", title),
		Text:     body.String(),
		HTML:     page.String(),
		Category: CategoryPremiumUnlock,
		Metadata: map[string]string{"plan": plan},
	}
}
