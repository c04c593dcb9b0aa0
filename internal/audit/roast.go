package audit

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/love-auditor/internal/inference"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

var roastTracer = otel.Tracer("loveauditor.internal.audit.roast")

const (
	defaultRoastAttempts    = 3
	defaultRoastTemperature = 0.7
)

// RoastConfig configures a RoastGenerator. AttemptTimeout bounds each
// upstream call; zero leaves it to the transport.
type RoastConfig struct {
	Model          string
	MaxAttempts    int
	Temperature    float32
	MaxTokens      int32
	AttemptTimeout time.Duration
}

// RoastGenerator produces a RoastResult from an AuditInput.
type RoastGenerator struct {
	llm     inference.LLMClient
	vision  Transcriber
	cfg     RoastConfig
	logger  *logging.Logger
	metrics *metrics.InferenceMetrics
}

func NewRoastGenerator(llm inference.LLMClient, vision Transcriber, cfg RoastConfig, logger *logging.Logger, m *metrics.InferenceMetrics) *RoastGenerator {
	if llm == nil {
		panic("audit: roast llm client cannot be nil")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRoastAttempts
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultRoastTemperature
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RoastGenerator{llm: llm, vision: vision, cfg: cfg, logger: logger, metrics: m}
}

// Generate runs the roast pipeline. It always returns a usable result: when
// every attempt fails it returns FallbackRoast with a nil error. The error is
// non-nil only for ErrMisconfigured, again alongside FallbackRoast.
func (g *RoastGenerator) Generate(ctx context.Context, input AuditInput) (RoastResult, error) {
	ctx, span := roastTracer.Start(ctx, "audit.roast.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("loveauditor.model", g.cfg.Model),
		attribute.Bool("loveauditor.has_screenshot", input.HasScreenshot()),
	)

	start := time.Now()
	defer func() {
		g.metrics.ObserveLatency("roast", time.Since(start).Seconds())
	}()

	// Vision runs once, outside the retry loop.
	transcript := ""
	if input.HasScreenshot() && g.vision != nil {
		transcript = g.vision.Transcribe(ctx, input.Screenshot)
	}
	evidence := AggregateEvidence(input.ChatText, transcript)

	req := inference.LLMRequest{
		Model:  g.cfg.Model,
		System: []string{roastSystemPrompt(input, evidence)},
		Messages: []inference.ChatMessage{
			{Role: inference.ChatRoleUser, Content: roastUserPrompt},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			g.logger.Warn("roast abandoned", "attempt", attempt, "error", err)
			break
		}

		result, err := g.attempt(ctx, req)
		if err == nil {
			g.metrics.ObserveAttempt("roast", "success")
			span.SetAttributes(
				attribute.Int("loveauditor.attempts", attempt),
				attribute.Int("loveauditor.toxicity_score", result.ToxicityScore),
			)
			return result, nil
		}

		if errors.Is(err, inference.ErrNoCredentials) {
			g.metrics.ObserveFallback("roast", "misconfigured")
			span.RecordError(err)
			g.logger.Error("roast generator has no inference credentials", "error", err)
			return FallbackRoast(), ErrMisconfigured
		}

		outcome := "transport_error"
		if errors.Is(err, ErrMalformedOutput) {
			outcome = "invalid_output"
		}
		g.metrics.ObserveAttempt("roast", outcome)
		g.logger.Warn("roast attempt failed",
			"attempt", attempt,
			"max_attempts", g.cfg.MaxAttempts,
			"outcome", outcome,
			"error", err,
		)
	}

	g.metrics.ObserveFallback("roast", "exhausted")
	span.SetAttributes(attribute.Bool("loveauditor.fallback", true))
	g.logger.Error("roast attempts exhausted, serving fallback", "max_attempts", g.cfg.MaxAttempts)
	return FallbackRoast(), nil
}

func (g *RoastGenerator) attempt(ctx context.Context, req inference.LLMRequest) (RoastResult, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return RoastResult{}, err
	}
	return ParseRoastResult(resp.Text)
}
