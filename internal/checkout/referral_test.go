package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/love-auditor/internal/session"
)

type failingReferrals struct{}

func (failingReferrals) SaveReferral(context.Context, string, string) error {
	return errors.New("redis down")
}

func (failingReferrals) LoadReferral(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}

func TestResolveReferral(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	visitor := uuid.NewString()

	code, err := ResolveReferral(ctx, store, visitor, "")
	require.NoError(t, err)
	assert.Empty(t, code)

	code, err = ResolveReferral(ctx, store, visitor, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", code)

	code, err = ResolveReferral(ctx, store, visitor, "")
	require.NoError(t, err)
	assert.Equal(t, "first", code, "stored code is used when the URL has none")

	code, err = ResolveReferral(ctx, store, visitor, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", code, "URL code wins")

	stored, err := store.LoadReferral(ctx, visitor)
	require.NoError(t, err)
	assert.Equal(t, "second", stored, "last write wins")
}

func TestResolveReferralWithoutVisitor(t *testing.T) {
	code, err := ResolveReferral(context.Background(), session.NewMemoryStore(), "", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", code)

	code, err = ResolveReferral(context.Background(), nil, "v", "")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestResolveReferralStoreErrors(t *testing.T) {
	code, err := ResolveReferral(context.Background(), failingReferrals{}, "v", "p1")
	require.Error(t, err)
	assert.Equal(t, "p1", code)

	_, err = ResolveReferral(context.Background(), failingReferrals{}, "v", "")
	require.Error(t, err)
}

func TestCaptureReferral(t *testing.T) {
	store := session.NewMemoryStore()
	var seenVisitor string
	handler := CaptureReferral(store, true, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenVisitor = VisitorID(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?aff=partner42", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, cookies[0].Value, seenVisitor)

	code, err := store.LoadReferral(context.Background(), seenVisitor)
	require.NoError(t, err)
	assert.Equal(t, "partner42", code)

	// Returning visitor keeps the cookie and a later code overwrites.
	req := httptest.NewRequest(http.MethodGet, "/?aff=partner43", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: seenVisitor})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())

	code, err = store.LoadReferral(context.Background(), seenVisitor)
	require.NoError(t, err)
	assert.Equal(t, "partner43", code)
}

func TestCaptureReferralStoreFailureDoesNotBlock(t *testing.T) {
	called := false
	handler := CaptureReferral(failingReferrals{}, false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?aff=p", nil))
	assert.True(t, called)
}

func TestVisitorIDRejectsMalformedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "not-a-uuid"})
	assert.Empty(t, VisitorID(req))
}
