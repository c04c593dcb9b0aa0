package inference

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

type stubLLMClient struct {
	resp  LLMResponse
	err   error
	calls int
}

func (s *stubLLMClient) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestFallbackClient_PrimarySuccess(t *testing.T) {
	primary := &stubLLMClient{resp: LLMResponse{Text: "primary"}}
	fallback := &stubLLMClient{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, FallbackConfig{}, nil, logging.New("error"))

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "primary" {
		t.Fatalf("expected primary response, got %s", resp.Text)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not be called, got %d calls", fallback.calls)
	}
}

func TestFallbackClient_UsesFallbackOnError(t *testing.T) {
	primary := &stubLLMClient{err: errors.New("throttled")}
	fallback := &stubLLMClient{resp: LLMResponse{Text: "fallback"}}
	client := NewFallbackClient(primary, fallback, FallbackConfig{}, nil, logging.New("error"))

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "fallback" {
		t.Fatalf("expected fallback response, got %s", resp.Text)
	}
}

func TestFallbackClient_BothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	client := NewFallbackClient(&stubLLMClient{err: primaryErr}, &stubLLMClient{err: fallbackErr}, FallbackConfig{}, nil, logging.New("error"))

	_, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("expected fallback error, got %v", err)
	}
}

func TestFallbackClient_NoFallbackReturnsPrimaryError(t *testing.T) {
	client := NewFallbackClient(&stubLLMClient{err: ErrNoCredentials}, nil, FallbackConfig{}, nil, nil)

	_, err := client.Complete(context.Background(), LLMRequest{Model: "m"})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected primary error, got %v", err)
	}
}

// blockingLLMClient hangs until its context is done.
type blockingLLMClient struct{}

func (blockingLLMClient) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	<-ctx.Done()
	return LLMResponse{}, ctx.Err()
}

type deadlineCheckingClient struct {
	resp LLMResponse
}

func (d deadlineCheckingClient) Complete(ctx context.Context, _ LLMRequest) (LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return LLMResponse{}, err
	}
	return d.resp, nil
}

func TestFallbackClient_FallbackAnswersAfterPrimaryTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewInferenceMetrics(reg)
	client := NewFallbackClient(blockingLLMClient{}, deadlineCheckingClient{resp: LLMResponse{Text: "rescued"}},
		FallbackConfig{PrimaryName: "openrouter", FallbackName: "gemini", ProviderTimeout: 20 * time.Millisecond},
		m, logging.New("error"))

	// The caller's budget covers both providers.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := client.Complete(ctx, LLMRequest{Model: "m"})
	if err != nil {
		t.Fatalf("expected fallback to answer, got %v", err)
	}
	if resp.Text != "rescued" {
		t.Fatalf("expected fallback response, got %q", resp.Text)
	}

	want := `
# HELP loveauditor_inference_provider_calls_total Provider calls behind a fallback chain by provider and outcome
# TYPE loveauditor_inference_provider_calls_total counter
loveauditor_inference_provider_calls_total{outcome="success",provider="gemini"} 1
loveauditor_inference_provider_calls_total{outcome="timeout",provider="openrouter"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "loveauditor_inference_provider_calls_total"); err != nil {
		t.Fatalf("unexpected provider metrics: %v", err)
	}
}

func TestFallbackClient_SkipsFallbackWhenCallerGaveUp(t *testing.T) {
	fallback := &stubLLMClient{resp: LLMResponse{Text: "late"}}
	client := NewFallbackClient(blockingLLMClient{}, fallback, FallbackConfig{ProviderTimeout: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Complete(ctx, LLMRequest{Model: "m"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not run after the caller cancelled, got %d calls", fallback.calls)
	}
}

func TestFallbackClient_MisconfiguredOnlyWhenBothLackCredentials(t *testing.T) {
	transient := errors.New("503 from upstream")

	client := NewFallbackClient(&stubLLMClient{err: ErrNoCredentials}, &stubLLMClient{err: transient}, FallbackConfig{}, nil, nil)
	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, transient) {
		t.Fatalf("expected transient fallback error, got %v", err)
	}

	client = NewFallbackClient(&stubLLMClient{err: transient}, &stubLLMClient{err: ErrNoCredentials}, FallbackConfig{}, nil, nil)
	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, transient) {
		t.Fatalf("expected transient primary error, got %v", err)
	}

	client = NewFallbackClient(&stubLLMClient{err: ErrNoCredentials}, &stubLLMClient{err: ErrNoCredentials}, FallbackConfig{}, nil, nil)
	if _, err := client.Complete(context.Background(), LLMRequest{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}
