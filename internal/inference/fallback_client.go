package inference

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// FallbackConfig names the two providers and bounds each provider call.
// ProviderTimeout applies to the primary and the fallback separately, so a
// hung primary cannot spend the fallback's budget.
type FallbackConfig struct {
	PrimaryName     string
	FallbackName    string
	ProviderTimeout time.Duration
}

// FallbackClient sends a request to the primary provider and, when that
// fails, once to the fallback provider.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	cfg      FallbackConfig
	metrics  *metrics.InferenceMetrics
	tracer   trace.Tracer
	logger   *logging.Logger
}

// NewFallbackClient creates a fallback-enabled client. A nil fallback leaves
// only the primary provider.
func NewFallbackClient(primary, fallback LLMClient, cfg FallbackConfig, m *metrics.InferenceMetrics, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("inference: primary client cannot be nil")
	}
	if cfg.PrimaryName == "" {
		cfg.PrimaryName = "primary"
	}
	if cfg.FallbackName == "" {
		cfg.FallbackName = "fallback"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		metrics:  m,
		tracer:   otel.Tracer("loveauditor.internal.inference.fallback"),
		logger:   logger,
	}
}

// Complete tries the primary provider, then the fallback on error. The
// fallback is skipped once the caller's own context is done.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.call(ctx, c.primary, c.cfg.PrimaryName, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary provider failed, trying fallback",
		"primary", c.cfg.PrimaryName,
		"fallback", c.cfg.FallbackName,
		"error", err.Error(),
	)
	fallbackResp, fallbackErr := c.call(ctx, c.fallback, c.cfg.FallbackName, req)
	if fallbackErr != nil {
		c.logger.Error("fallback provider also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		// Misconfiguration on both sides is still misconfiguration.
		if errors.Is(err, ErrNoCredentials) && errors.Is(fallbackErr, ErrNoCredentials) {
			return LLMResponse{}, fallbackErr
		}
		if errors.Is(fallbackErr, ErrNoCredentials) {
			return LLMResponse{}, err
		}
		return LLMResponse{}, fallbackErr
	}
	return fallbackResp, nil
}

func (c *FallbackClient) call(ctx context.Context, client LLMClient, provider string, req LLMRequest) (LLMResponse, error) {
	ctx, span := c.tracer.Start(ctx, "inference.provider_call", trace.WithAttributes(
		attribute.String("inference.provider", provider),
		attribute.String("inference.model", req.Model),
	))
	defer span.End()

	if c.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ProviderTimeout)
		defer cancel()
	}

	resp, err := client.Complete(ctx, req)
	switch {
	case err == nil:
		c.metrics.ObserveProvider(provider, "success")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		span.RecordError(err)
		c.metrics.ObserveProvider(provider, "timeout")
	default:
		span.RecordError(err)
		c.metrics.ObserveProvider(provider, "error")
	}
	return resp, err
}
