package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/inference"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderBedrock    = "bedrock"
	ProviderGemini     = "gemini"
)

// LLMClients holds the completion clients for the two model roles.
type LLMClients struct {
	Vision inference.LLMClient
	Text   inference.LLMClient
}

// NeedsAWS reports whether the configured providers use the AWS SDK.
func NeedsAWS(cfg *appconfig.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.InferenceProvider == ProviderBedrock ||
		cfg.InferenceFallbackProvider == ProviderBedrock ||
		cfg.EmailProvider == "ses"
}

// ProviderCount reports how many providers one call may try.
func ProviderCount(cfg *appconfig.Config) int {
	if cfg == nil {
		return 1
	}
	fallback := strings.TrimSpace(cfg.InferenceFallbackProvider)
	if fallback == "" || fallback == cfg.InferenceProvider {
		return 1
	}
	return 2
}

// AttemptBudget is the deadline of one vision, roast or chat attempt: every
// provider in the chain gets a full INFERENCE_TIMEOUT.
func AttemptBudget(cfg *appconfig.Config) time.Duration {
	if cfg == nil || cfg.InferenceTimeout <= 0 {
		return 0
	}
	return time.Duration(ProviderCount(cfg)) * cfg.InferenceTimeout
}

// BuildLLMClients wires the primary provider and the optional fallback. Each
// provider is pinned to its own model IDs so a fallback can cross providers.
// awsCfg is only read when a Bedrock provider is configured.
func BuildLLMClients(cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.InferenceMetrics, logger *logging.Logger) (LLMClients, error) {
	if cfg == nil {
		return LLMClients{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, err := buildProvider(cfg.InferenceProvider, cfg, awsCfg)
	if err != nil {
		return LLMClients{}, err
	}
	logger.Info("inference provider configured", "provider", cfg.InferenceProvider)

	fallbackName := strings.TrimSpace(cfg.InferenceFallbackProvider)
	if ProviderCount(cfg) == 1 {
		return LLMClients{Vision: primary.vision, Text: primary.text}, nil
	}
	fallback, err := buildProvider(fallbackName, cfg, awsCfg)
	if err != nil {
		return LLMClients{}, fmt.Errorf("bootstrap: fallback provider: %w", err)
	}
	logger.Info("inference fallback configured", "provider", fallbackName)

	chain := inference.FallbackConfig{
		PrimaryName:     cfg.InferenceProvider,
		FallbackName:    fallbackName,
		ProviderTimeout: cfg.InferenceTimeout,
	}
	return LLMClients{
		Vision: inference.NewFallbackClient(primary.vision, fallback.vision, chain, m, logger),
		Text:   inference.NewFallbackClient(primary.text, fallback.text, chain, m, logger),
	}, nil
}

type providerClients struct {
	vision inference.LLMClient
	text   inference.LLMClient
}

func buildProvider(name string, cfg *appconfig.Config, awsCfg *aws.Config) (providerClients, error) {
	switch name {
	case ProviderOpenRouter, "":
		client := inference.NewOpenRouterClient(inference.NewCredentialPool(cfg.OpenRouterAPIKeys), inference.OpenRouterConfig{
			BaseURL: cfg.OpenRouterBaseURL,
			Referer: cfg.AppPublicURL,
			Title:   cfg.AppTitle,
			Timeout: cfg.InferenceTimeout,
		})
		return providerClients{
			vision: inference.PinModel(client, cfg.VisionModel),
			text:   inference.PinModel(client, cfg.TextModel),
		}, nil
	case ProviderBedrock:
		if awsCfg == nil {
			return providerClients{}, fmt.Errorf("bootstrap: bedrock provider requires aws config")
		}
		client := inference.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg))
		return providerClients{
			vision: inference.PinModel(client, cfg.BedrockVisionModelID),
			text:   inference.PinModel(client, cfg.BedrockTextModelID),
		}, nil
	case ProviderGemini:
		client := inference.NewGeminiClient(inference.NewCredentialPool(cfg.GeminiAPIKeys))
		return providerClients{
			vision: inference.PinModel(client, cfg.GeminiVisionModel),
			text:   inference.PinModel(client, cfg.GeminiTextModel),
		}, nil
	default:
		return providerClients{}, fmt.Errorf("bootstrap: unknown inference provider %q", name)
	}
}
