package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/notify"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// BuildMailer picks SendGrid or SES, falling back to the logging mailer.
func BuildMailer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.EmailFromAddress) == "" {
		logger.Info("email disabled: EMAIL_FROM_ADDRESS not set")
		return notify.NewLogMailer(logger)
	}
	from := notify.From{Address: cfg.EmailFromAddress, Name: cfg.EmailFromName}

	switch cfg.EmailProvider {
	case "sendgrid":
		if mailer := notify.NewSendGridMailer(cfg.SendGridAPIKey, from, logger); mailer != nil {
			logger.Info("email provider: sendgrid")
			return mailer
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; logging instead")
	case "ses":
		if awsCfg != nil {
			logger.Info("email provider: ses", "configuration_set", cfg.SESConfigurationSet)
			return notify.NewSESMailer(sesv2.NewFromConfig(*awsCfg), from, cfg.SESConfigurationSet, logger)
		}
		logger.Warn("ses selected but aws config is unavailable; logging instead")
	}
	return notify.NewLogMailer(logger)
}
