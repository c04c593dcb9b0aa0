package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/wolfman30/love-auditor/internal/audit"
	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/internal/session"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// A base64 screenshot at the size cap plus the JSON envelope.
const maxRoastBodyBytes = 8 << 20

// Roaster produces a roast for an audit input.
type Roaster interface {
	Generate(ctx context.Context, input audit.AuditInput) (audit.RoastResult, error)
}

// AuditHandler serves roast generation and the stored session view.
type AuditHandler struct {
	roaster Roaster
	store   session.Store
	logger  *logging.Logger
}

func NewAuditHandler(roaster Roaster, store session.Store, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{roaster: roaster, store: store, logger: logger}
}

type roastRequest struct {
	SessionID  string `json:"session_id"`
	Gender     string `json:"gender"`
	Status     string `json:"status"`
	ChatText   string `json:"chat_text"`
	Screenshot string `json:"screenshot"`
}

// RoastResponse is the body of POST /api/roast.
type RoastResponse struct {
	SessionID string            `json:"session_id"`
	Result    audit.RoastResult `json:"result"`
	Premium   bool              `json:"premium"`
	Degraded  bool              `json:"degraded,omitempty"`
}

// Roast handles POST /api/roast.
func (h *AuditHandler) Roast(w http.ResponseWriter, r *http.Request) {
	var req roastRequest
	if err := decodeJSON(w, r, maxRoastBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sessionID, ok := validSessionID(sessionID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	input, err := audit.AuditInput{
		Gender:     audit.Gender(req.Gender),
		Status:     audit.RelationshipStatus(req.Status),
		ChatText:   req.ChatText,
		Screenshot: req.Screenshot,
	}.Normalize()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims, _ := middleware.UserFromContext(r.Context())
	if h.store != nil {
		if _, err := checkOwner(r.Context(), h.store, sessionID, claims.Subject); err != nil {
			writeOwnerError(w, h.logger, err, sessionID)
			return
		}
	}

	result, genErr := h.roaster.Generate(r.Context(), input)
	if genErr != nil && !errors.Is(genErr, audit.ErrMisconfigured) {
		h.logger.Error("roast generation failed", "error", genErr, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "roast failed")
		return
	}

	h.persist(r.Context(), sessionID, claims.Subject, input, result)

	resp := RoastResponse{
		SessionID: sessionID,
		Result:    viewResult(result, claims.IsPremium),
		Premium:   claims.IsPremium,
	}
	if genErr != nil {
		h.logger.Error("roast served fallback: inference misconfigured", "error", genErr)
		resp.Degraded = true
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// persist stores the input and full result. A new input starts a fresh chat.
// A signed-in caller becomes the session owner. Failures are logged; the
// caller still gets the roast.
func (h *AuditHandler) persist(ctx context.Context, sessionID, subject string, input audit.AuditInput, result audit.RoastResult) {
	if h.store == nil {
		return
	}
	previous, err := h.store.LoadInput(ctx, sessionID)
	switch {
	case err == nil && previous != input:
		if err := h.store.Reset(ctx, sessionID); err != nil {
			h.logger.Warn("session reset failed", "error", err, "session_id", sessionID)
		}
	case err != nil && !errors.Is(err, session.ErrNotFound):
		h.logger.Warn("session input load failed", "error", err, "session_id", sessionID)
	}

	if _, err := h.store.SaveInput(ctx, sessionID, input); err != nil {
		h.logger.Warn("session input save failed", "error", err, "session_id", sessionID)
	}
	if _, err := h.store.SaveResult(ctx, sessionID, result); err != nil {
		h.logger.Warn("session result save failed", "error", err, "session_id", sessionID)
	}
	claimSession(ctx, h.store, h.logger, sessionID, subject)
}

func viewResult(result audit.RoastResult, premium bool) audit.RoastResult {
	if premium {
		return result
	}
	return result.Free()
}
