package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/love-auditor/internal/audit"
	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/internal/session"
)

type storedInput struct {
	Gender        audit.Gender             `json:"gender"`
	Status        audit.RelationshipStatus `json:"status"`
	ChatText      string                   `json:"chat_text"`
	HasScreenshot bool                     `json:"has_screenshot"`
}

// SessionResponse is the body of GET /api/session/{sessionID}.
type SessionResponse struct {
	SessionID string             `json:"session_id"`
	Input     *storedInput       `json:"input,omitempty"`
	Result    *audit.RoastResult `json:"result,omitempty"`
	History   []audit.ChatTurn   `json:"history"`
	Premium   bool               `json:"premium"`
}

// GetSession handles GET /api/session/{sessionID}.
func (h *AuditHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := validSessionID(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session storage not configured")
		return
	}

	ctx := r.Context()
	claims, _ := middleware.UserFromContext(ctx)
	if _, err := checkOwner(ctx, h.store, sessionID, claims.Subject); err != nil {
		writeOwnerError(w, h.logger, err, sessionID)
		return
	}
	resp := SessionResponse{SessionID: sessionID, Premium: claims.IsPremium}

	input, err := h.store.LoadInput(ctx, sessionID)
	switch {
	case err == nil:
		resp.Input = &storedInput{
			Gender:        input.Gender,
			Status:        input.Status,
			ChatText:      input.ChatText,
			HasScreenshot: input.HasScreenshot(),
		}
	case !errors.Is(err, session.ErrNotFound):
		h.logger.Error("session input load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	result, err := h.store.LoadResult(ctx, sessionID)
	switch {
	case err == nil:
		view := viewResult(result, claims.IsPremium)
		resp.Result = &view
	case !errors.Is(err, session.ErrNotFound):
		h.logger.Error("session result load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	if resp.Input == nil && resp.Result == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	history, err := h.store.History(ctx, sessionID)
	if err != nil {
		h.logger.Error("session history load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if history == nil {
		history = []audit.ChatTurn{}
	}
	resp.History = history
	writeJSON(w, http.StatusOK, resp)
}

// ResetSession handles DELETE /api/session/{sessionID}.
func (h *AuditHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := validSessionID(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session storage not configured")
		return
	}
	claims, _ := middleware.UserFromContext(r.Context())
	if _, err := checkOwner(r.Context(), h.store, sessionID, claims.Subject); err != nil {
		writeOwnerError(w, h.logger, err, sessionID)
		return
	}
	if err := h.store.Reset(r.Context(), sessionID); err != nil {
		h.logger.Error("session reset failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
