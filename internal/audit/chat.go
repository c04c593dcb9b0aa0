package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/love-auditor/internal/inference"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

var chatTracer = otel.Tracer("loveauditor.internal.audit.chat")

const defaultChatAttempts = 2

// ChatConfig configures a ChatClient. A zero or negative Temperature leaves
// it to the provider default.
type ChatConfig struct {
	Model          string
	MaxAttempts    int
	Temperature    float32
	MaxTokens      int32
	AttemptTimeout time.Duration
}

// ChatClient answers follow-up questions about a roast. It keeps no state:
// the caller supplies the full history on every call.
type ChatClient struct {
	llm     inference.LLMClient
	vision  Transcriber
	cfg     ChatConfig
	logger  *logging.Logger
	metrics *metrics.InferenceMetrics
}

func NewChatClient(llm inference.LLMClient, vision Transcriber, cfg ChatConfig, logger *logging.Logger, m *metrics.InferenceMetrics) *ChatClient {
	if llm == nil {
		panic("audit: chat llm client cannot be nil")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultChatAttempts
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatClient{llm: llm, vision: vision, cfg: cfg, logger: logger, metrics: m}
}

// Reply returns the auditor's answer to message. Exhausted attempts resolve
// to ChatApology with a nil error; a missing credential resolves to
// ChatApology with ErrMisconfigured.
func (c *ChatClient) Reply(ctx context.Context, history []ChatTurn, message string, roast RoastResult, input AuditInput) (string, error) {
	ctx, span := chatTracer.Start(ctx, "audit.chat.reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("loveauditor.model", c.cfg.Model),
		attribute.Int("loveauditor.history_len", len(history)),
	)

	start := time.Now()
	defer func() {
		c.metrics.ObserveLatency("chat", time.Since(start).Seconds())
	}()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("chat abandoned", "attempt", attempt, "error", err)
			break
		}

		reply, err := c.attempt(ctx, history, message, roast, input)
		if err == nil {
			c.metrics.ObserveAttempt("chat", "success")
			span.SetAttributes(attribute.Int("loveauditor.attempts", attempt))
			return reply, nil
		}

		if errors.Is(err, inference.ErrNoCredentials) {
			c.metrics.ObserveFallback("chat", "misconfigured")
			span.RecordError(err)
			c.logger.Error("chat client has no inference credentials", "error", err)
			return ChatApology, ErrMisconfigured
		}

		outcome := "transport_error"
		if errors.Is(err, ErrMalformedOutput) {
			outcome = "invalid_output"
		}
		c.metrics.ObserveAttempt("chat", outcome)
		c.logger.Warn("chat attempt failed",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"outcome", outcome,
			"error", err,
		)
	}

	c.metrics.ObserveFallback("chat", "exhausted")
	span.SetAttributes(attribute.Bool("loveauditor.fallback", true))
	return ChatApology, nil
}

// attempt rebuilds the full context, including the screenshot transcript,
// and issues one completion call.
func (c *ChatClient) attempt(ctx context.Context, history []ChatTurn, message string, roast RoastResult, input AuditInput) (string, error) {
	transcript := ""
	if input.HasScreenshot() && c.vision != nil {
		transcript = c.vision.Transcribe(ctx, input.Screenshot)
	}
	evidence := AggregateEvidence(input.ChatText, transcript)

	messages := make([]inference.ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		role := inference.ChatRoleUser
		if turn.Role == ChatRoleAuditor {
			role = inference.ChatRoleAssistant
		}
		messages = append(messages, inference.ChatMessage{Role: role, Content: text})
	}
	messages = append(messages, inference.ChatMessage{Role: inference.ChatRoleUser, Content: message})

	temperature := c.cfg.Temperature
	if temperature == 0 {
		temperature = -1
	}

	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := c.llm.Complete(ctx, inference.LLMRequest{
		Model:       c.cfg.Model,
		System:      []string{chatSystemPrompt(roast, evidence)},
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	reply := StripReasoning(resp.Text)
	if reply == "" {
		return "", fmt.Errorf("%w: empty chat reply", ErrMalformedOutput)
	}
	return reply, nil
}
