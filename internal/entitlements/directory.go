package entitlements

import (
	"context"
	"errors"
)

// DefaultPlan is the plan label applied when none is configured.
const DefaultPlan = "lifetime_299"

// ErrIdentityNotFound is returned by FindByEmail when no user matches.
var ErrIdentityNotFound = errors.New("entitlements: identity not found")

// Identity is a user record owned by the identity provider.
type Identity struct {
	ID        string
	Email     string
	IsPremium bool
	Plan      string
}

// Directory looks up users and grants the premium entitlement. SetPremium
// must be idempotent.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	SetPremium(ctx context.Context, identityID, plan string) error
}
