// Package session persists a visitor's last audit input, last roast result,
// chat history and referral code behind an injected Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/love-auditor/internal/audit"
)

var (
	// ErrNotFound is returned when a session has no stored value.
	ErrNotFound = errors.New("session: not found")
	// ErrChatBusy is returned by AcquireChat while another reply is in flight.
	ErrChatBusy = errors.New("session: chat reply already in flight")
)

// DefaultChatLockTTL bounds how long a crashed chat call can hold the lock.
// Servers derive a longer TTL from their inference budget with ChatLockTTL.
const DefaultChatLockTTL = 3 * time.Minute

// chatLockSlack covers history reads and writes around the inference calls.
const chatLockSlack = 30 * time.Second

// ChatLockTTL returns a lock TTL that outlives the slowest chat call: every
// attempt may spend one timeout on vision and one on the reply.
func ChatLockTTL(attempts int, attemptTimeout time.Duration) time.Duration {
	if attempts < 1 || attemptTimeout <= 0 {
		return DefaultChatLockTTL
	}
	ttl := time.Duration(attempts)*2*attemptTimeout + chatLockSlack
	if ttl < DefaultChatLockTTL {
		return DefaultChatLockTTL
	}
	return ttl
}

// Store is the persistence contract for one visitor session.
//
// SaveInput and SaveResult compare against the stored value and only write
// when it changed; the changed flag reports whether a write happened.
// Reset clears input, result, history and owner together. Referral codes are
// kept per visitor, last write wins, and never expire.
//
// AcquireChat returns an owner token; ReleaseChat only frees the lock while
// that token still holds it, so a call that outlived the lock TTL cannot
// free a lock taken by a later call.
type Store interface {
	LoadInput(ctx context.Context, sessionID string) (audit.AuditInput, error)
	SaveInput(ctx context.Context, sessionID string, input audit.AuditInput) (bool, error)
	LoadResult(ctx context.Context, sessionID string) (audit.RoastResult, error)
	SaveResult(ctx context.Context, sessionID string, result audit.RoastResult) (bool, error)
	History(ctx context.Context, sessionID string) ([]audit.ChatTurn, error)
	AppendTurns(ctx context.Context, sessionID string, turns ...audit.ChatTurn) error
	Reset(ctx context.Context, sessionID string) error

	SaveOwner(ctx context.Context, sessionID, owner string) error
	LoadOwner(ctx context.Context, sessionID string) (string, error)

	AcquireChat(ctx context.Context, sessionID string) (string, error)
	ReleaseChat(ctx context.Context, sessionID, token string) error

	SaveReferral(ctx context.Context, visitorID, code string) error
	LoadReferral(ctx context.Context, visitorID string) (string, error)
}
