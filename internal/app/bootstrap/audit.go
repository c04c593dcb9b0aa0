package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/love-auditor/internal/audit"
	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/observability/metrics"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// AuditServices bundles the roast pipeline.
type AuditServices struct {
	Transcriber audit.Transcriber
	Roast       *audit.RoastGenerator
	Chat        *audit.ChatClient
}

// BuildAuditServices wires vision, roast and chat over the LLM clients. The
// transcript cache is used only when enabled and Redis is reachable.
func BuildAuditServices(cfg *appconfig.Config, llms LLMClients, redisClient *redis.Client, m *metrics.InferenceMetrics, logger *logging.Logger) AuditServices {
	if logger == nil {
		logger = logging.Default()
	}
	budget := AttemptBudget(cfg)

	var transcriber audit.Transcriber = audit.NewVisionClient(llms.Vision, audit.VisionConfig{
		Model:   cfg.VisionModel,
		Timeout: budget,
	}, logger, m)
	if cfg.TranscriptCacheEnabled() && redisClient != nil {
		logger.Info("transcript cache enabled", "ttl", cfg.TranscriptCacheTTL.String())
		transcriber = audit.NewCachingTranscriber(transcriber, audit.NewRedisTranscriptCache(redisClient, cfg.TranscriptCacheTTL), logger)
	}

	roast := audit.NewRoastGenerator(llms.Text, transcriber, audit.RoastConfig{
		Model:          cfg.TextModel,
		MaxAttempts:    cfg.RoastMaxAttempts,
		AttemptTimeout: budget,
	}, logger, m)
	chat := audit.NewChatClient(llms.Text, transcriber, audit.ChatConfig{
		Model:          cfg.TextModel,
		MaxAttempts:    cfg.ChatMaxAttempts,
		AttemptTimeout: budget,
	}, logger, m)

	return AuditServices{Transcriber: transcriber, Roast: roast, Chat: chat}
}
