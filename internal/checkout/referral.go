package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/love-auditor/internal/session"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

const (
	// VisitorCookie identifies an anonymous visitor across sign-in.
	VisitorCookie = "la_visitor"
	// ReferralParam is the affiliate query parameter on inbound links.
	ReferralParam = "aff"

	visitorCookieMaxAge = 365 * 24 * time.Hour
)

// ReferralStore persists one referral code per visitor.
type ReferralStore interface {
	SaveReferral(ctx context.Context, visitorID, code string) error
	LoadReferral(ctx context.Context, visitorID string) (string, error)
}

// ResolveReferral returns the referral code to attach to a checkout. A code
// on the current request wins and is persisted; otherwise the stored code
// for the visitor is used.
func ResolveReferral(ctx context.Context, store ReferralStore, visitorID, fromURL string) (string, error) {
	fromURL = NormalizeReferral(fromURL)
	if store == nil || visitorID == "" {
		return fromURL, nil
	}
	if fromURL != "" {
		if err := store.SaveReferral(ctx, visitorID, fromURL); err != nil {
			return fromURL, fmt.Errorf("checkout: persist referral: %w", err)
		}
		return fromURL, nil
	}
	code, err := store.LoadReferral(ctx, visitorID)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("checkout: load referral: %w", err)
	}
	return NormalizeReferral(code), nil
}

// VisitorID returns the visitor cookie value, or "" when absent or malformed.
func VisitorID(r *http.Request) string {
	c, err := r.Cookie(VisitorCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// CaptureReferral assigns a visitor cookie when missing and persists any
// ?aff= code on the request so it survives the sign-in round trip.
func CaptureReferral(store ReferralStore, secure bool, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitor := VisitorID(r)
			if visitor == "" {
				visitor = uuid.NewString()
				cookie := &http.Cookie{
					Name:     VisitorCookie,
					Value:    visitor,
					Path:     "/",
					MaxAge:   int(visitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				}
				http.SetCookie(w, cookie)
				r.AddCookie(cookie)
			}

			if code := NormalizeReferral(r.URL.Query().Get(ReferralParam)); code != "" && store != nil {
				if err := store.SaveReferral(r.Context(), visitor, code); err != nil {
					logger.Warn("referral capture failed", "error", err)
				} else {
					logger.Info("referral captured", "code", code)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
