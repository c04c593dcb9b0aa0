package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/love-auditor/pkg/logging"
)

const transcriptKeyPrefix = "la:transcript:"

// TranscriptCache stores transcripts by image digest.
type TranscriptCache interface {
	Get(ctx context.Context, digest string) (string, bool, error)
	Set(ctx context.Context, digest, transcript string) error
}

// CachingTranscriber re-derives a transcript only when the image changes.
// Sentinel transcripts are never cached, so a failed call is retried next time.
type CachingTranscriber struct {
	next   Transcriber
	cache  TranscriptCache
	logger *logging.Logger
}

func NewCachingTranscriber(next Transcriber, cache TranscriptCache, logger *logging.Logger) *CachingTranscriber {
	if next == nil {
		panic("audit: caching transcriber requires an inner transcriber")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachingTranscriber{next: next, cache: cache, logger: logger}
}

func (c *CachingTranscriber) Transcribe(ctx context.Context, image string) string {
	if c.cache == nil {
		return c.next.Transcribe(ctx, image)
	}

	digest := ImageDigest(image)
	cached, ok, err := c.cache.Get(ctx, digest)
	if err != nil {
		c.logger.Warn("transcript cache read failed", "error", err)
	} else if ok {
		return cached
	}

	transcript := c.next.Transcribe(ctx, image)
	if IsSentinel(transcript) {
		return transcript
	}
	if err := c.cache.Set(ctx, digest, transcript); err != nil {
		c.logger.Warn("transcript cache write failed", "error", err)
	}
	return transcript
}

// ImageDigest is the hex SHA-256 of the trimmed image payload.
func ImageDigest(image string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(image)))
	return hex.EncodeToString(sum[:])
}

// RedisTranscriptCache keeps transcripts in Redis with an optional TTL.
type RedisTranscriptCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisTranscriptCache(client *redis.Client, ttl time.Duration) *RedisTranscriptCache {
	if client == nil {
		return nil
	}
	return &RedisTranscriptCache{redis: client, ttl: ttl}
}

func (c *RedisTranscriptCache) Get(ctx context.Context, digest string) (string, bool, error) {
	val, err := c.redis.Get(ctx, transcriptKeyPrefix+digest).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("audit: get cached transcript: %w", err)
	}
	return val, true, nil
}

func (c *RedisTranscriptCache) Set(ctx context.Context, digest, transcript string) error {
	if err := c.redis.Set(ctx, transcriptKeyPrefix+digest, transcript, c.ttl).Err(); err != nil {
		return fmt.Errorf("audit: cache transcript: %w", err)
	}
	return nil
}
