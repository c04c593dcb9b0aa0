package inference

import (
	"context"
	"errors"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ErrNoCredentials means the provider has no credential to authenticate with.
// Callers treat it as a configuration problem, not a transient failure.
var ErrNoCredentials = errors.New("inference: no credentials configured")

// ChatMessage is a provider-neutral message. ImageURL is an optional data: or
// https URL attached to the message for vision-capable models.
type ChatMessage struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest describes one completion call. A negative Temperature omits it.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient issues a single completion call. Implementations do not retry.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
