package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Inference
	InferenceProvider         string
	InferenceFallbackProvider string
	OpenRouterAPIKeys         []string
	OpenRouterBaseURL         string
	GeminiAPIKeys             []string
	GeminiVisionModel         string
	GeminiTextModel           string
	VisionModel               string
	TextModel                 string
	BedrockVisionModelID      string
	BedrockTextModelID        string
	InferenceTimeout          time.Duration
	RoastMaxAttempts          int
	ChatMaxAttempts           int
	AppPublicURL              string
	AppTitle                  string

	// Payments and entitlements
	LemonSqueezyWebhookSecret string
	PremiumPlan               string
	CheckoutURL               string
	IdentityProvider          string
	ClerkSecretKey            string
	ClerkAPIURL               string
	DatabaseURL               string

	// Session state
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	SessionTTL         time.Duration
	TranscriptCacheTTL time.Duration
	SessionJWTSecret   string

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Email
	EmailProvider       string
	SendGridAPIKey      string
	EmailFromAddress    string
	EmailFromName       string
	SESConfigurationSet string

	// AWS (Bedrock, SES)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		InferenceProvider:         strings.ToLower(strings.TrimSpace(getEnv("INFERENCE_PROVIDER", "openrouter"))),
		InferenceFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("INFERENCE_FALLBACK_PROVIDER", ""))),
		OpenRouterAPIKeys:         getEnvAsList("OPENROUTER_API_KEYS"),
		OpenRouterBaseURL:         getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		GeminiAPIKeys:             getEnvAsList("GEMINI_API_KEYS"),
		GeminiVisionModel:         getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
		GeminiTextModel:           getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		VisionModel:               getEnv("VISION_MODEL", "amazon/nova-2-lite-v1:free"),
		TextModel:                 getEnv("TEXT_MODEL", "tngtech/deepseek-r1t2-chimera:free"),
		BedrockVisionModelID:      getEnv("BEDROCK_VISION_MODEL_ID", "amazon.nova-lite-v1:0"),
		BedrockTextModelID:        getEnv("BEDROCK_TEXT_MODEL_ID", "us.deepseek.r1-v1:0"),
		InferenceTimeout:          getEnvAsDuration("INFERENCE_TIMEOUT", 45*time.Second),
		RoastMaxAttempts:          getEnvAsInt("ROAST_MAX_ATTEMPTS", 3),
		ChatMaxAttempts:           getEnvAsInt("CHAT_MAX_ATTEMPTS", 2),
		AppPublicURL:              getEnv("APP_PUBLIC_URL", "https://love-auditor.online"),
		AppTitle:                  getEnv("APP_TITLE", "The Love Auditor"),

		LemonSqueezyWebhookSecret: getEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""),
		PremiumPlan:               getEnv("PREMIUM_PLAN", "lifetime_299"),
		CheckoutURL:               getEnv("CHECKOUT_URL", ""),
		IdentityProvider:          strings.ToLower(strings.TrimSpace(getEnv("IDENTITY_PROVIDER", "clerk"))),
		ClerkSecretKey:            getEnv("CLERK_SECRET_KEY", ""),
		ClerkAPIURL:               getEnv("CLERK_API_URL", "https://api.clerk.com/v1"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		TranscriptCacheTTL: getEnvAsDuration("TRANSCRIPT_CACHE_TTL", 0),
		SessionJWTSecret:   getEnv("SESSION_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "The Love Auditor"),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// TranscriptCacheEnabled reports whether screenshot transcripts should be cached.
func (c *Config) TranscriptCacheEnabled() bool {
	return c != nil && c.TranscriptCacheTTL > 0 && strings.TrimSpace(c.RedisAddr) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma or newline separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
