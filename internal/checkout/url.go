// Package checkout builds the Lemon Squeezy checkout redirect and tracks the
// affiliate code a visitor arrived with.
package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	emailParam    = "checkout[email]"
	referralParam = "checkout[custom][Referral_Partner]"
)

// BuildURL appends the purchaser email and optional referral code to the
// hosted checkout URL. Existing query parameters on base are kept.
func BuildURL(base, email, referral string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("checkout: base url is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("checkout: email is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("checkout: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("checkout: base url %q must be absolute", base)
	}

	q := u.Query()
	q.Set(emailParam, email)
	if referral = NormalizeReferral(referral); referral != "" {
		q.Set(referralParam, referral)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NormalizeReferral trims a referral code and rejects values that could not
// be a partner code. Invalid codes become "".
func NormalizeReferral(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 64 {
		return ""
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return code
}
