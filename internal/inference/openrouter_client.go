package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultInferenceTimeout  = 45 * time.Second
)

// OpenRouterConfig describes how to reach an OpenAI-compatible completion API.
type OpenRouterConfig struct {
	BaseURL string
	// Referer and Title are sent as HTTP-Referer and X-Title attribution headers.
	Referer string
	Title   string
	Timeout time.Duration
}

// OpenRouterClient implements LLMClient against OpenRouter's chat completions
// endpoint. Every Complete call authenticates with a freshly drawn credential.
type OpenRouterClient struct {
	pool    *CredentialPool
	clients map[string]*openai.Client
}

// NewOpenRouterClient builds one go-openai client per pooled credential. All
// clients share an HTTP client with an explicit timeout.
func NewOpenRouterClient(pool *CredentialPool, cfg OpenRouterConfig) *OpenRouterClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &attributionTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	clients := make(map[string]*openai.Client, pool.Len())
	for _, key := range pool.Keys() {
		clientCfg := openai.DefaultConfig(key)
		clientCfg.BaseURL = baseURL
		clientCfg.HTTPClient = httpClient
		clients[key] = openai.NewClientWithConfig(clientCfg)
	}
	return &OpenRouterClient{pool: pool, clients: clients}
}

// Complete sends one chat completion request.
func (c *OpenRouterClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("inference: openrouter model is required")
	}
	key, ok := c.pool.Select()
	if !ok {
		return LLMResponse{}, ErrNoCredentials
	}
	client := c.clients[key]

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req),
	}
	if req.Temperature >= 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("inference: openrouter completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("inference: openrouter returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return LLMResponse{}, errors.New("inference: openrouter returned empty content")
	}
	return LLMResponse{
		Text:       text,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

func toOpenAIMessages(req LLMRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: block,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		if msg.ImageURL == "" {
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, 2)
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: msg.Content,
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: msg.ImageURL},
		})
		messages = append(messages, openai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	return messages
}

// attributionTransport adds the app attribution headers OpenRouter uses for
// rankings and abuse reports.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	if t.referer != "" {
		clone.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		clone.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(clone)
}
