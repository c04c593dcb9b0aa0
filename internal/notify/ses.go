package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers through Amazon SES v2. Category and Metadata become
// message tags, which reach the configuration set's event destinations.
type SESMailer struct {
	api              sesAPI
	from             From
	configurationSet string
	logger           *logging.Logger
}

// NewSESMailer returns nil without a client.
func NewSESMailer(client *sesv2.Client, from From, configurationSet string, logger *logging.Logger) *SESMailer {
	if client == nil {
		return nil
	}
	return newSESMailer(client, from, configurationSet, logger)
}

func newSESMailer(api sesAPI, from From, configurationSet string, logger *logging.Logger) *SESMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &SESMailer{
		api:              api,
		from:             from.withDefaults(),
		configurationSet: strings.TrimSpace(configurationSet),
		logger:           logger,
	}
}

func (m *SESMailer) Deliver(ctx context.Context, email Email) error {
	if err := email.validate(); err != nil {
		return err
	}

	body := &types.Body{}
	if email.Text != "" {
		body.Text = utf8Content(email.Text)
	}
	if email.HTML != "" {
		body.Html = utf8Content(email.HTML)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from.header()),
		Destination:      &types.Destination{ToAddresses: []string{email.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(email.Subject), Body: body},
		},
		EmailTags: sesTags(email),
	}
	if m.configurationSet != "" {
		input.ConfigurationSetName = aws.String(m.configurationSet)
	}

	out, err := m.api.SendEmail(ctx, input)
	if err != nil {
		return deliveryError("ses", err)
	}
	m.logger.Info("email delivered",
		"provider", "ses",
		"category", email.Category,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// sesTags emits tags in a stable order. SES only accepts letters, digits,
// underscores and dashes in tag names and values.
func sesTags(email Email) []types.MessageTag {
	var tags []types.MessageTag
	add := func(name, value string) {
		name, value = sesTagValue(name), sesTagValue(value)
		if name == "" || value == "" {
			return
		}
		tags = append(tags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}
	add("category", email.Category)

	keys := make([]string, 0, len(email.Metadata))
	for k := range email.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, email.Metadata[k])
	}
	return tags
}

func sesTagValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(s))
}

var _ Mailer = (*SESMailer)(nil)
