package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/love-auditor/internal/config"
	"github.com/wolfman30/love-auditor/internal/session"
	"github.com/wolfman30/love-auditor/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore prefers Redis and falls back to process memory.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) session.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		var ttl time.Duration
		if cfg != nil {
			ttl = cfg.SessionTTL
		}
		lockTTL := ChatLockTTL(cfg)
		logger.Info("session store: redis", "ttl", ttl.String(), "chat_lock_ttl", lockTTL.String())
		return session.NewRedisStore(redisClient, ttl).WithChatLockTTL(lockTTL)
	}
	if cfg != nil && cfg.Env == "production" {
		logger.Warn("session store: in-memory in production; sessions will not survive restarts")
	} else {
		logger.Info("session store: in-memory")
	}
	return session.NewMemoryStore().WithChatLockTTL(ChatLockTTL(cfg))
}

// ChatLockTTL keeps a chat lock alive for the slowest possible chat call.
func ChatLockTTL(cfg *appconfig.Config) time.Duration {
	if cfg == nil {
		return session.DefaultChatLockTTL
	}
	return session.ChatLockTTL(cfg.ChatMaxAttempts, AttemptBudget(cfg))
}

// WriteTimeout bounds one HTTP response: the slower of a roast (one vision
// call plus every roast attempt) and a chat (vision plus reply per attempt).
func WriteTimeout(cfg *appconfig.Config) time.Duration {
	const slack = 15 * time.Second
	budget := AttemptBudget(cfg)
	if budget <= 0 {
		return 0
	}
	roast := budget * time.Duration(1+max(cfg.RoastMaxAttempts, 1))
	chat := budget * time.Duration(2*max(cfg.ChatMaxAttempts, 1))
	return max(roast, chat) + slack
}
