package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/love-auditor/internal/session"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

var errForeignSession = errors.New("session belongs to another user")

// checkOwner lets a caller through when the session has no owner or when the
// caller's subject matches it. Anonymous callers have an empty subject.
func checkOwner(ctx context.Context, store session.Store, sessionID, subject string) (owned bool, err error) {
	owner, err := store.LoadOwner(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if owner != subject {
		return true, errForeignSession
	}
	return true, nil
}

func writeOwnerError(w http.ResponseWriter, logger *logging.Logger, err error, sessionID string) {
	if errors.Is(err, errForeignSession) {
		writeError(w, http.StatusForbidden, errForeignSession.Error())
		return
	}
	logger.Error("session owner load failed", "error", err, "session_id", sessionID)
	writeError(w, http.StatusInternalServerError, "session unavailable")
}

// claimSession records subject as the owner of an unowned session.
func claimSession(ctx context.Context, store session.Store, logger *logging.Logger, sessionID, subject string) {
	if subject == "" {
		return
	}
	if err := store.SaveOwner(ctx, sessionID, subject); err != nil {
		logger.Warn("session owner save failed", "error", err, "session_id", sessionID)
	}
}
