package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/love-auditor/internal/audit"
	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/internal/session"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

const (
	maxChatBodyBytes  = 64 << 10
	maxChatMessageLen = 2000
)

// Replier answers a follow-up question about a roast.
type Replier interface {
	Reply(ctx context.Context, history []audit.ChatTurn, message string, roast audit.RoastResult, input audit.AuditInput) (string, error)
}

// ChatHandler serves the premium auditor chat.
type ChatHandler struct {
	replier Replier
	store   session.Store
	logger  *logging.Logger
}

func NewChatHandler(replier Replier, store session.Store, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{replier: replier, store: store, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the body of POST /api/chat.
type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply"`
	History   []audit.ChatTurn `json:"history"`
	Degraded  bool             `json:"degraded,omitempty"`
}

// Chat handles POST /api/chat. Each call appends exactly one user turn and
// one auditor turn. Only one reply per session may be in flight.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	if !claims.IsPremium {
		writeError(w, http.StatusForbidden, "premium required")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "session storage not configured")
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, maxChatBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, ok := validSessionID(req.SessionID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(message) > maxChatMessageLen {
		writeError(w, http.StatusBadRequest, "message is too long")
		return
	}

	ctx := r.Context()
	owned, err := checkOwner(ctx, h.store, sessionID, claims.Subject)
	if err != nil {
		writeOwnerError(w, h.logger, err, sessionID)
		return
	}
	roast, err := h.store.LoadResult(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusConflict, "no roast for this session yet")
		return
	}
	if err != nil {
		h.logger.Error("chat result load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	input, err := h.store.LoadInput(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		h.logger.Error("chat input load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	if !owned {
		claimSession(ctx, h.store, h.logger, sessionID, claims.Subject)
	}

	lockToken, err := h.store.AcquireChat(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrChatBusy) {
			writeError(w, http.StatusConflict, "a reply is already in progress")
			return
		}
		h.logger.Error("chat lock failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	defer func() {
		if err := h.store.ReleaseChat(context.WithoutCancel(ctx), sessionID, lockToken); err != nil {
			h.logger.Warn("chat lock release failed", "error", err, "session_id", sessionID)
		}
	}()

	history, err := h.store.History(ctx, sessionID)
	if err != nil {
		h.logger.Error("chat history load failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	reply, replyErr := h.replier.Reply(ctx, history, message, roast, input)
	if replyErr != nil && !errors.Is(replyErr, audit.ErrMisconfigured) {
		h.logger.Error("chat reply failed", "error", replyErr, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}

	turns := []audit.ChatTurn{
		{Role: audit.ChatRoleUser, Text: message},
		{Role: audit.ChatRoleAuditor, Text: reply},
	}
	if err := h.store.AppendTurns(context.WithoutCancel(ctx), sessionID, turns...); err != nil {
		h.logger.Error("chat history append failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	resp := ChatResponse{
		SessionID: sessionID,
		Reply:     reply,
		History:   append(history, turns...),
	}
	if replyErr != nil {
		h.logger.Error("chat served apology: inference misconfigured", "error", replyErr)
		resp.Degraded = true
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
