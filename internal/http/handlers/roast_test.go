package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/love-auditor/internal/audit"
	"github.com/wolfman30/love-auditor/internal/session"
)

func validRoastBody(sessionID string) map[string]string {
	return map[string]string{
		"session_id": sessionID,
		"gender":     "female",
		"status":     "talking",
		"chat_text":  "  [Partner]: wyd  ",
	}
}

func TestRoast_FreeViewAndPersistence(t *testing.T) {
	store := session.NewMemoryStore()
	roaster := &stubRoaster{result: premiumRoast()}
	h := NewAuditHandler(roaster, store, nil)

	rec := httptest.NewRecorder()
	h.Roast(rec, jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-1")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RoastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.False(t, resp.Premium)
	assert.Equal(t, 72, resp.Result.ToxicityScore)
	assert.Equal(t, 3, resp.Result.HiddenRedFlagsCount)
	assert.False(t, resp.Result.HasPremiumContent(), "free callers must not see premium fields")

	require.Len(t, roaster.inputs, 1)
	assert.Equal(t, audit.StatusTalking, roaster.inputs[0].Status)
	assert.Equal(t, "[Partner]: wyd", roaster.inputs[0].ChatText)

	stored, err := store.LoadResult(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, stored.HasPremiumContent(), "the full result is stored")
}

func TestRoast_PremiumSeesEverything(t *testing.T) {
	h := NewAuditHandler(&stubRoaster{result: premiumRoast()}, session.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	h.Roast(rec, withClaims(jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-2")), true))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RoastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Premium)
	assert.Len(t, resp.Result.RedFlagsList, 3)
	require.NotNil(t, resp.Result.Advice)
}

func TestRoast_GeneratesSessionID(t *testing.T) {
	h := NewAuditHandler(&stubRoaster{result: premiumRoast()}, session.NewMemoryStore(), nil)
	rec := httptest.NewRecorder()
	h.Roast(rec, jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RoastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.SessionID, 36)
}

func TestRoast_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"gender":`},
		{"unknown gender", `{"gender":"robot","status":"Dating","chat_text":"hi"}`},
		{"unknown status", `{"gender":"Male","status":"engaged","chat_text":"hi"}`},
		{"no evidence", `{"gender":"Male","status":"Dating","chat_text":"   "}`},
		{"not an image", `{"gender":"Male","status":"Dating","screenshot":"data:text/plain;base64,aGk="}`},
		{"bad session id", `{"session_id":"a:b","gender":"Male","status":"Dating","chat_text":"hi"}`},
		{"trailing data", `{"gender":"Male","status":"Dating","chat_text":"hi"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roaster := &stubRoaster{result: premiumRoast()}
			h := NewAuditHandler(roaster, session.NewMemoryStore(), nil)
			rec := httptest.NewRecorder()
			h.Roast(rec, httptest.NewRequest(http.MethodPost, "/api/roast", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, roaster.inputs, "invalid input must not reach inference")
		})
	}
}

func TestRoast_MisconfiguredServesFallback(t *testing.T) {
	roaster := &stubRoaster{result: audit.FallbackRoast(), err: audit.ErrMisconfigured}
	h := NewAuditHandler(roaster, session.NewMemoryStore(), nil)

	rec := httptest.NewRecorder()
	h.Roast(rec, jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-3")))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp RoastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, "SYSTEM OVERLOAD", resp.Result.Verdict)
	assert.Equal(t, 88, resp.Result.ToxicityScore)
}

func TestRoast_NewInputClearsChatHistory(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	h := NewAuditHandler(&stubRoaster{result: premiumRoast()}, store, nil)

	h.Roast(httptest.NewRecorder(), jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-4")))
	require.NoError(t, store.AppendTurns(ctx, "sess-4",
		audit.ChatTurn{Role: audit.ChatRoleUser, Text: "why?"},
		audit.ChatTurn{Role: audit.ChatRoleAuditor, Text: "because."}))

	// Same input keeps the conversation.
	h.Roast(httptest.NewRecorder(), jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-4")))
	history, err := store.History(ctx, "sess-4")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	body := validRoastBody("sess-4")
	body["chat_text"] = "[Partner]: new evidence"
	h.Roast(httptest.NewRecorder(), jsonRequest(t, http.MethodPost, "/api/roast", body))
	history, err = store.History(ctx, "sess-4")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRoast_OwnedSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	roaster := &stubRoaster{result: premiumRoast()}
	h := NewAuditHandler(roaster, store, nil)

	rec := httptest.NewRecorder()
	h.Roast(rec, withSubject(jsonRequest(t, http.MethodPost, "/api/roast", validRoastBody("sess-5")), "user_a", false))
	require.Equal(t, http.StatusOK, rec.Code)
	owner, err := store.LoadOwner(ctx, "sess-5")
	require.NoError(t, err)
	assert.Equal(t, "user_a", owner)

	body := validRoastBody("sess-5")
	body["chat_text"] = "[Partner]: overwrite"
	rec = httptest.NewRecorder()
	h.Roast(rec, withSubject(jsonRequest(t, http.MethodPost, "/api/roast", body), "user_b", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = httptest.NewRecorder()
	h.Roast(rec, jsonRequest(t, http.MethodPost, "/api/roast", body))
	assert.Equal(t, http.StatusForbidden, rec.Code, "anonymous callers cannot overwrite an owned session")
	assert.Len(t, roaster.inputs, 1, "rejected callers never reach inference")

	// The owner can replace the input; ownership survives the reset.
	rec = httptest.NewRecorder()
	h.Roast(rec, withSubject(jsonRequest(t, http.MethodPost, "/api/roast", body), "user_a", false))
	require.Equal(t, http.StatusOK, rec.Code)
	owner, err = store.LoadOwner(ctx, "sess-5")
	require.NoError(t, err)
	assert.Equal(t, "user_a", owner)
}
