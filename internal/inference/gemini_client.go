package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements LLMClient using Google's Gemini API. Each call draws
// an API key from the pool and opens a short-lived SDK client with it.
type GeminiClient struct {
	pool *CredentialPool
	dial func(ctx context.Context, apiKey string) (*genai.Client, error)
}

// NewGeminiClient creates a Gemini client over the given key pool.
func NewGeminiClient(pool *CredentialPool) *GeminiClient {
	return &GeminiClient{
		pool: pool,
		dial: func(ctx context.Context, apiKey string) (*genai.Client, error) {
			return genai.NewClient(ctx, option.WithAPIKey(apiKey))
		},
	}
}

// Complete sends a completion request to Gemini and returns the response.
func (c *GeminiClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return LLMResponse{}, errors.New("inference: gemini model is required")
	}
	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("inference: gemini requires at least one message")
	}
	key, ok := c.pool.Select()
	if !ok {
		return LLMResponse{}, ErrNoCredentials
	}

	client, err := c.dial(ctx, key)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("inference: failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	system := geminiSystemText(req)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := model.StartChat()
	history, last := geminiSplitHistory(req.Messages)
	for _, msg := range history {
		parts, err := geminiParts(msg)
		if err != nil {
			return LLMResponse{}, err
		}
		if len(parts) == 0 {
			continue
		}
		cs.History = append(cs.History, &genai.Content{Role: geminiRole(msg.Role), Parts: parts})
	}

	lastParts, err := geminiParts(last)
	if err != nil {
		return LLMResponse{}, err
	}
	resp, err := cs.SendMessage(ctx, lastParts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("inference: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("inference: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("inference: gemini returned empty content")
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(responseText.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if result.Text == "" {
		return LLMResponse{}, errors.New("inference: gemini returned empty content")
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

func geminiSystemText(req LLMRequest) string {
	blocks := make([]string, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	for _, msg := range req.Messages {
		if msg.Role == ChatRoleSystem && strings.TrimSpace(msg.Content) != "" {
			blocks = append(blocks, msg.Content)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// geminiSplitHistory drops system messages and separates the final turn.
func geminiSplitHistory(messages []ChatMessage) ([]ChatMessage, ChatMessage) {
	turns := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != ChatRoleSystem {
			turns = append(turns, msg)
		}
	}
	if len(turns) == 0 {
		return nil, ChatMessage{Role: ChatRoleUser}
	}
	return turns[:len(turns)-1], turns[len(turns)-1]
}

func geminiRole(role string) string {
	if role == ChatRoleAssistant {
		return "model"
	}
	return "user"
}

func geminiParts(msg ChatMessage) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, 2)
	if content := strings.TrimSpace(msg.Content); content != "" {
		parts = append(parts, genai.Text(content))
	}
	if msg.ImageURL != "" {
		mime, data, err := ParseDataURL(msg.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("inference: gemini image: %w", err)
		}
		parts = append(parts, genai.ImageData(ImageFormat(mime), data))
	}
	return parts, nil
}
