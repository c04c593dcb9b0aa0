package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"
)

const defaultClerkTimeout = 10 * time.Second

var errClerkKeyMissing = errors.New("entitlements: clerk secret key not configured")

// ClerkDirectory resolves identities through the Clerk Backend API and keeps
// the entitlement in the user's public metadata.
type ClerkDirectory struct {
	users      *user.Client
	configured bool
}

// NewClerkDirectory creates a Clerk-backed directory. An empty apiBase uses
// the SDK's default API URL. The SDK appends the API version itself, so a
// trailing /v1 on apiBase is dropped.
func NewClerkDirectory(secretKey, apiBase string) *ClerkDirectory {
	secretKey = strings.TrimSpace(secretKey)
	config := &clerk.ClientConfig{}
	config.Key = clerk.String(secretKey)
	config.HTTPClient = &http.Client{Timeout: defaultClerkTimeout}
	base := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(apiBase), "/"), "/v1")
	if base != "" {
		config.URL = clerk.String(base)
	}
	return &ClerkDirectory{
		users:      user.NewClient(config),
		configured: secretKey != "",
	}
}

// premiumMetadata is the slice of public metadata the auth middleware reads.
type premiumMetadata struct {
	IsPremium bool   `json:"isPremium"`
	Plan      string `json:"plan,omitempty"`
}

func (d *ClerkDirectory) FindByEmail(ctx context.Context, email string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Identity{}, ErrIdentityNotFound
	}
	if !d.configured {
		return Identity{}, errClerkKeyMissing
	}

	params := &user.ListParams{EmailAddresses: []string{email}}
	params.Limit = clerk.Int64(1)
	list, err := d.users.List(ctx, params)
	if err != nil {
		return Identity{}, fmt.Errorf("entitlements: clerk user lookup: %w", err)
	}
	if list == nil || len(list.Users) == 0 || list.Users[0] == nil {
		return Identity{}, ErrIdentityNotFound
	}

	found := list.Users[0]
	identity := Identity{ID: found.ID, Email: email}
	if len(found.PublicMetadata) > 0 {
		var meta premiumMetadata
		if err := json.Unmarshal(found.PublicMetadata, &meta); err != nil {
			return Identity{}, fmt.Errorf("entitlements: clerk metadata for %s: %w", found.ID, err)
		}
		identity.IsPremium = meta.IsPremium
		identity.Plan = meta.Plan
	}
	for _, addr := range found.EmailAddresses {
		if addr != nil && addr.EmailAddress != "" {
			identity.Email = addr.EmailAddress
			break
		}
	}
	return identity, nil
}

// SetPremium merges isPremium=true and the plan into public metadata.
// Clerk merges metadata keys, so repeating the call leaves the same state.
func (d *ClerkDirectory) SetPremium(ctx context.Context, identityID, plan string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return errors.New("entitlements: clerk identity id required")
	}
	if !d.configured {
		return errClerkKeyMissing
	}
	raw, err := json.Marshal(premiumMetadata{IsPremium: true, Plan: plan})
	if err != nil {
		return fmt.Errorf("entitlements: encode metadata: %w", err)
	}
	if _, err := d.users.UpdateMetadata(ctx, identityID, &user.UpdateMetadataParams{
		PublicMetadata: clerk.JSONRawMessage(raw),
	}); err != nil {
		return fmt.Errorf("entitlements: clerk set premium: %w", err)
	}
	return nil
}
