package checkout

import (
	"net/http"
	"strings"

	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// Handler redirects signed-in users to the hosted checkout.
type Handler struct {
	checkoutURL string
	appURL      string
	referrals   ReferralStore
	logger      *logging.Logger
}

// HandlerConfig holds the redirect targets.
type HandlerConfig struct {
	CheckoutURL string
	AppURL      string
}

func NewHandler(cfg HandlerConfig, referrals ReferralStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		checkoutURL: strings.TrimSpace(cfg.CheckoutURL),
		appURL:      strings.TrimSpace(cfg.AppURL),
		referrals:   referrals,
		logger:      logger,
	}
}

// Redirect sends the caller to checkout with their email and referral code.
// Users who are already premium go back to the app.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	if h.checkoutURL == "" {
		http.Error(w, "checkout not configured", http.StatusServiceUnavailable)
		return
	}
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok || strings.TrimSpace(claims.Email) == "" {
		http.Error(w, "sign in required", http.StatusUnauthorized)
		return
	}
	if claims.IsPremium && h.appURL != "" {
		http.Redirect(w, r, h.appURL, http.StatusFound)
		return
	}

	referral, err := ResolveReferral(r.Context(), h.referrals, VisitorID(r), r.URL.Query().Get(ReferralParam))
	if err != nil {
		h.logger.Warn("checkout referral lookup failed", "error", err)
	}

	target, err := BuildURL(h.checkoutURL, claims.Email, referral)
	if err != nil {
		h.logger.Error("checkout url build failed", "error", err)
		http.Error(w, "checkout unavailable", http.StatusInternalServerError)
		return
	}
	h.logger.Info("checkout redirect", "has_referral", referral != "")
	http.Redirect(w, r, target, http.StatusFound)
}
