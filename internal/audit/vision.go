package audit

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/love-auditor/internal/inference"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

var visionTracer = otel.Tracer("loveauditor.internal.audit.vision")

const (
	// VisionFailedSentinel replaces the transcript when the vision call fails.
	VisionFailedSentinel = "(Vision processing failed)"
	// VisionEmptySentinel replaces the transcript when the model returned nothing.
	VisionEmptySentinel = "(No text found)"

	visionTemperature = 0.1
)

// Transcriber turns a chat screenshot into a speaker-attributed transcript.
// Implementations never fail: problems degrade to a sentinel string.
type Transcriber interface {
	Transcribe(ctx context.Context, image string) string
}

// IsSentinel reports whether a transcript is one of the degraded placeholders.
func IsSentinel(transcript string) bool {
	switch strings.TrimSpace(transcript) {
	case VisionFailedSentinel, VisionEmptySentinel:
		return true
	}
	return false
}

// VisionClient transcribes screenshots with a vision-capable model.
type VisionClient struct {
	llm     inference.LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.InferenceMetrics
}

// VisionConfig configures a VisionClient. Timeout bounds a single call.
type VisionConfig struct {
	Model   string
	Timeout time.Duration
}

func NewVisionClient(llm inference.LLMClient, cfg VisionConfig, logger *logging.Logger, m *metrics.InferenceMetrics) *VisionClient {
	if llm == nil {
		panic("audit: vision llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &VisionClient{
		llm:     llm,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: m,
	}
}

// Transcribe returns the transcript or a sentinel. It never returns an error.
func (v *VisionClient) Transcribe(ctx context.Context, image string) string {
	ctx, span := visionTracer.Start(ctx, "audit.vision.transcribe")
	defer span.End()
	span.SetAttributes(
		attribute.String("loveauditor.model", v.model),
		attribute.Int("loveauditor.image_len", len(image)),
	)

	start := time.Now()
	defer func() {
		v.metrics.ObserveLatency("vision", time.Since(start).Seconds())
	}()

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.llm.Complete(callCtx, inference.LLMRequest{
		Model:  v.model,
		System: []string{visionSystemPrompt},
		Messages: []inference.ChatMessage{{
			Role:     inference.ChatRoleUser,
			Content:  visionUserPrompt,
			ImageURL: imageDataURL(image),
		}},
		Temperature: visionTemperature,
	})
	if err != nil {
		v.metrics.ObserveAttempt("vision", "transport_error")
		span.RecordError(err)
		v.logger.Warn("vision transcription failed", "model", v.model, "error", err)
		return VisionFailedSentinel
	}

	transcript := strings.TrimSpace(resp.Text)
	if transcript == "" {
		v.metrics.ObserveAttempt("vision", "invalid_output")
		v.logger.Warn("vision transcription returned no text", "model", v.model)
		return VisionEmptySentinel
	}

	v.metrics.ObserveAttempt("vision", "success")
	span.SetAttributes(attribute.Int("loveauditor.transcript_len", len(transcript)))
	return transcript
}

// imageDataURL wraps bare base64 in a data URL so providers accept it.
func imageDataURL(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "https://") || strings.HasPrefix(image, "http://") {
		return image
	}
	return "data:image/png;base64," + image
}
