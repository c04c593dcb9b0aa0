package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/love-auditor/internal/audit"
	"github.com/wolfman30/love-auditor/internal/http/middleware"
	"github.com/wolfman30/love-auditor/internal/session"
)

type stubRoaster struct {
	mu     sync.Mutex
	result audit.RoastResult
	err    error
	inputs []audit.AuditInput
}

func (s *stubRoaster) Generate(_ context.Context, input audit.AuditInput) (audit.RoastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	return s.result, s.err
}

type stubReplier struct {
	reply    string
	err      error
	calls    int
	lastHist []audit.ChatTurn
	lastMsg  string
}

func (s *stubReplier) Reply(_ context.Context, history []audit.ChatTurn, message string, _ audit.RoastResult, _ audit.AuditInput) (string, error) {
	s.calls++
	s.lastHist = history
	s.lastMsg = message
	return s.reply, s.err
}

func premiumRoast() audit.RoastResult {
	detail := "He answers in one-word texts."
	advice := "Stop carrying the conversation."
	return audit.RoastResult{
		ToxicityScore:       72,
		Verdict:             "MEH",
		ShortAnalysis:       "Low effort detected.",
		HiddenRedFlagsCount: 3,
		DetailedAnalysis:    &detail,
		RedFlagsList:        []string{"Dry texter", "Never asks questions", "Ghosts on weekends"},
		Advice:              &advice,
	}
}

func withClaims(req *http.Request, premium bool) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), middleware.UserClaims{
		Email:     "me@example.com",
		IsPremium: premium,
	}))
}

func withSubject(req *http.Request, subject string, premium bool) *http.Request {
	claims := middleware.UserClaims{Email: subject + "@example.com", IsPremium: premium}
	claims.Subject = subject
	return req.WithContext(middleware.WithUser(req.Context(), claims))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionRouter(h *AuditHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/session/{sessionID}", h.GetSession)
	r.Delete("/api/session/{sessionID}", h.ResetSession)
	return r
}

func seedSession(t *testing.T, store session.Store, id string) {
	t.Helper()
	ctx := context.Background()
	input := audit.AuditInput{Gender: audit.GenderFemale, Status: audit.StatusDating, ChatText: "[Partner]: k"}
	if _, err := store.SaveInput(ctx, id, input); err != nil {
		t.Fatalf("save input: %v", err)
	}
	if _, err := store.SaveResult(ctx, id, premiumRoast()); err != nil {
		t.Fatalf("save result: %v", err)
	}
}
