package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlockEmail() Email {
	return ComposePremiumEmail("Love Auditor", "https://love-auditor.online", "buyer@example.com", "lifetime_299")
}

func TestEmail_Validate(t *testing.T) {
	tests := []struct {
		name  string
		email Email
	}{
		{"no recipient", Email{Subject: "s", Text: "b"}},
		{"no subject", Email{To: "a@b.co", Text: "b"}},
		{"no body", Email{To: "a@b.co", Subject: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.email.validate())
			assert.Error(t, NewLogMailer(nil).Deliver(context.Background(), tt.email))
		})
	}
	assert.NoError(t, unlockEmail().validate())
}

func TestFrom_Header(t *testing.T) {
	from := From{Address: "hello@love-auditor.online"}.withDefaults()
	assert.Equal(t, `"Love Auditor" <hello@love-auditor.online>`, from.header())

	named := From{Address: "hello@love-auditor.online", Name: "The Auditor, Esq."}.withDefaults()
	assert.Equal(t, `"The Auditor, Esq." <hello@love-auditor.online>`, named.header())
}

func TestNewSendGridMailer_NilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridMailer("  ", From{Address: "hello@love-auditor.online"}, nil))

	var unset *SendGridMailer
	assert.Error(t, unset.Deliver(context.Background(), unlockEmail()))
}

type sendGridPayload struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Subject          string `json:"subject"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		CustomArgs map[string]string `json:"custom_args"`
	} `json:"personalizations"`
	Content []struct {
		Type string `json:"type"`
	} `json:"content"`
	Categories       []string `json:"categories"`
	TrackingSettings struct {
		ClickTracking struct {
			Enable *bool `json:"enable"`
		} `json:"click_tracking"`
	} `json:"tracking_settings"`
}

func TestSendGridMailer_DeliverPremiumUnlock(t *testing.T) {
	var payload sendGridPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewSendGridMailer("sg-key", From{Address: "hello@love-auditor.online"}, nil)
	require.NotNil(t, mailer)
	mailer.client.BaseURL = srv.URL + "/v3/mail/send"

	require.NoError(t, mailer.Deliver(context.Background(), unlockEmail()))
	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "hello@love-auditor.online", payload.From.Email)
	assert.Equal(t, DefaultFromName, payload.From.Name)
	assert.Equal(t, "Love Auditor: premium unlocked", payload.Subject)
	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "buyer@example.com", payload.Personalizations[0].To[0].Email)
	assert.Equal(t, "lifetime_299", payload.Personalizations[0].CustomArgs["plan"])
	require.Len(t, payload.Content, 2)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Equal(t, "text/html", payload.Content[1].Type)
	assert.Equal(t, []string{CategoryPremiumUnlock}, payload.Categories)
	require.NotNil(t, payload.TrackingSettings.ClickTracking.Enable)
	assert.False(t, *payload.TrackingSettings.ClickTracking.Enable)
}

func TestSendGridMailer_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	mailer := NewSendGridMailer("sg-key", From{Address: "hello@love-auditor.online"}, nil)
	mailer.client.BaseURL = srv.URL + "/v3/mail/send"

	err := mailer.Deliver(context.Background(), unlockEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

type recordingSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (s *recordingSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer_DeliverPremiumUnlock(t *testing.T) {
	api := &recordingSES{}
	mailer := newSESMailer(api, From{Address: "hello@love-auditor.online", Name: "The Love Auditor"}, "transactional", nil)

	require.NoError(t, mailer.Deliver(context.Background(), unlockEmail()))

	in := api.input
	assert.Equal(t, `"The Love Auditor" <hello@love-auditor.online>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"buyer@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "transactional", aws.ToString(in.ConfigurationSetName))
	assert.Equal(t, "Love Auditor: premium unlocked", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Text.Data), "Plan: lifetime_299")
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Html.Data), "<strong>lifetime_299</strong>")

	require.Len(t, in.EmailTags, 2)
	assert.Equal(t, "category", aws.ToString(in.EmailTags[0].Name))
	assert.Equal(t, CategoryPremiumUnlock, aws.ToString(in.EmailTags[0].Value))
	assert.Equal(t, "plan", aws.ToString(in.EmailTags[1].Name))
	assert.Equal(t, "lifetime_299", aws.ToString(in.EmailTags[1].Value))
}

func TestSESMailer_TextOnlyWithoutConfigurationSet(t *testing.T) {
	api := &recordingSES{}
	mailer := newSESMailer(api, From{Address: "a@b.co"}, "", nil)

	require.NoError(t, mailer.Deliver(context.Background(), Email{To: "x@y.z", Subject: "s", Text: "b"}))
	assert.Nil(t, api.input.ConfigurationSetName)
	assert.Nil(t, api.input.Content.Simple.Body.Html)
	assert.Empty(t, api.input.EmailTags)
}

func TestSESMailer_Errors(t *testing.T) {
	mailer := newSESMailer(&recordingSES{err: errors.New("throttled")}, From{Address: "a@b.co"}, "", nil)
	err := mailer.Deliver(context.Background(), unlockEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	assert.Nil(t, NewSESMailer(nil, From{}, "", nil))
}

func TestSESTagValue(t *testing.T) {
	assert.Equal(t, "lifetime_299", sesTagValue(" lifetime_299 "))
	assert.Equal(t, "pro_plan_v2", sesTagValue("pro plan.v2"))
	assert.Equal(t, "ab", sesTagValue("a/b"))
}
