package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(0.5, 2)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	ok, wait := rl.Allow("1.2.3.4")
	if ok {
		t.Fatalf("expected third request to be limited")
	}
	if wait != 2*time.Second {
		t.Fatalf("expected 2s wait at 0.5 rps, got %s", wait)
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatalf("buckets must be per client")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatalf("expected a token after refill")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(time.Hour)
	rl.Allow("b")

	rl.Evict(10 * time.Minute)
	if _, ok := rl.buckets["a"]; ok {
		t.Fatalf("expected idle bucket to be evicted")
	}
	if _, ok := rl.buckets["b"]; !ok {
		t.Fatalf("expected active bucket to stay")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/roast", nil)
		req.Header.Set("X-Real-Ip", "9.9.9.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimitDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mw := RateLimit(0, 5)
	rec := httptest.NewRecorder()
	for i := 0; i < 20; i++ {
		mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected limiter to be disabled, got %d", rec.Code)
	}
}
