package entitlements

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

const (
	providerLemonSqueezy = "lemonsqueezy"
	eventOrderCreated    = "order_created"
	maxWebhookBodyBytes  = 1 << 20
)

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID, identityID string) (bool, error)
}

// UpgradeNotifier is told when a user becomes premium for the first time.
type UpgradeNotifier interface {
	NotifyUpgrade(ctx context.Context, email, plan string) error
}

// WebhookConfig configures the payment webhook. Plan defaults to DefaultPlan.
type WebhookConfig struct {
	Secret string
	Plan   string
}

// LemonSqueezyWebhookHandler verifies order webhooks and grants premium.
type LemonSqueezyWebhookHandler struct {
	secret    string
	plan      string
	directory Directory
	processed processedTracker
	notifier  UpgradeNotifier
	metrics   *metrics.WebhookMetrics
	logger    *logging.Logger
}

// NewLemonSqueezyWebhookHandler creates the handler. processed and notifier
// may be nil.
func NewLemonSqueezyWebhookHandler(
	cfg WebhookConfig,
	directory Directory,
	processed processedTracker,
	notifier UpgradeNotifier,
	m *metrics.WebhookMetrics,
	logger *logging.Logger,
) *LemonSqueezyWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	plan := strings.TrimSpace(cfg.Plan)
	if plan == "" {
		plan = DefaultPlan
	}
	return &LemonSqueezyWebhookHandler{
		secret:    strings.TrimSpace(cfg.Secret),
		plan:      plan,
		directory: directory,
		processed: processed,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

type lemonSqueezyEvent struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			UserEmail string `json:"user_email"`
			Status    string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// Handle processes an inbound webhook. Responses: 405 for non-POST, 500 when
// the secret is missing or a store fails, 401 on signature mismatch, 400 on
// a malformed payload, and 200 for applied, duplicate, ignored or unmatched
// events.
func (h *LemonSqueezyWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveLatency(providerLemonSqueezy, time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.secret == "" || h.directory == nil {
		h.logger.Error("lemonsqueezy webhook not configured", "has_secret", h.secret != "", "has_directory", h.directory != nil)
		h.metrics.ObserveEvent(providerLemonSqueezy, "", "misconfigured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "webhook not configured"})
		return
	}

	// Verification runs on the bytes exactly as received.
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.metrics.ObserveEvent(providerLemonSqueezy, "", "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !VerifySignature(payload, r.Header.Get(SignatureHeader), h.secret) {
		h.logger.Warn("invalid lemonsqueezy webhook signature", "body_bytes", len(payload))
		h.metrics.ObserveEvent(providerLemonSqueezy, "", "bad_signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var evt lemonSqueezyEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode lemonsqueezy event", "error", err)
		h.metrics.ObserveEvent(providerLemonSqueezy, "", "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	eventName := strings.TrimSpace(evt.Meta.EventName)
	if eventName != eventOrderCreated {
		h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"message": "event ignored"})
		return
	}

	email := strings.TrimSpace(evt.Data.Attributes.UserEmail)
	if email == "" {
		h.logger.Warn("lemonsqueezy order missing user email", "order_id", evt.Data.ID)
		h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user email"})
		return
	}

	eventID := eventKey(evt, payload)
	ctx := r.Context()
	if h.processed != nil {
		if done, err := h.processed.AlreadyProcessed(ctx, providerLemonSqueezy, eventID); err != nil {
			h.logger.Error("processed lookup failed", "error", err, "event_id", eventID)
			h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		} else if done {
			h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "duplicate")
			writeJSON(w, http.StatusOK, map[string]string{"message": "already processed"})
			return
		}
	}

	identity, err := h.directory.FindByEmail(ctx, email)
	if errors.Is(err, ErrIdentityNotFound) {
		// Acknowledge so the provider does not keep redelivering.
		h.logger.Warn("lemonsqueezy order for unknown user", "order_id", evt.Data.ID, "email", email)
		h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "user_not_found")
		writeJSON(w, http.StatusOK, map[string]string{"message": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("identity lookup failed", "error", err, "order_id", evt.Data.ID)
		h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := h.directory.SetPremium(ctx, identity.ID, h.plan); err != nil {
		h.logger.Error("failed to grant premium", "error", err, "identity_id", identity.ID)
		h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	firstApplication := !identity.IsPremium
	if h.processed != nil {
		inserted, err := h.processed.MarkProcessed(ctx, providerLemonSqueezy, eventID, identity.ID)
		if err != nil {
			h.logger.Error("failed to record processed event", "error", err, "event_id", eventID)
		} else if !inserted {
			firstApplication = false
		}
	}

	h.logger.Info("user upgraded to premium",
		"identity_id", identity.ID,
		"plan", h.plan,
		"order_id", evt.Data.ID,
		"first_application", firstApplication,
	)
	h.metrics.ObserveEvent(providerLemonSqueezy, eventName, "applied")

	if firstApplication && h.notifier != nil {
		if err := h.notifier.NotifyUpgrade(ctx, identity.Email, h.plan); err != nil {
			h.logger.Warn("failed to send premium notification", "error", err, "identity_id", identity.ID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "user upgraded successfully"})
}

// eventKey identifies an order for idempotency. Orders without an id fall
// back to a digest of the raw body.
func eventKey(evt lemonSqueezyEvent, payload []byte) string {
	if id := strings.TrimSpace(evt.Data.ID); id != "" {
		return eventOrderCreated + ":" + id
	}
	sum := sha256.Sum256(payload)
	return eventOrderCreated + ":sha256:" + hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
