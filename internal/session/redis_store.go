package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/love-auditor/internal/audit"
)

const (
	sessionKeyPrefix  = "la:session:"
	referralKeyPrefix = "la:referral:"
	maxHistoryTurns   = 200
)

// RedisStore keeps sessions in Redis. Values are JSON, history is a list and
// the chat guard is a SETNX lock.
type RedisStore struct {
	redis   *redis.Client
	tracer  trace.Tracer
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStore returns a store whose session keys expire after ttl of
// inactivity. A zero ttl keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{
		redis:   client,
		tracer:  otel.Tracer("loveauditor.internal.session.redis"),
		ttl:     ttl,
		lockTTL: DefaultChatLockTTL,
	}
}

var _ Store = (*RedisStore)(nil)

// WithChatLockTTL overrides how long an unreleased chat lock survives.
func (s *RedisStore) WithChatLockTTL(ttl time.Duration) *RedisStore {
	if s != nil && ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func inputKey(id string) string   { return sessionKeyPrefix + id + ":input" }
func resultKey(id string) string  { return sessionKeyPrefix + id + ":result" }
func historyKey(id string) string { return sessionKeyPrefix + id + ":history" }
func ownerKey(id string) string   { return sessionKeyPrefix + id + ":owner" }
func lockKey(id string) string    { return sessionKeyPrefix + id + ":chat_lock" }

// releaseLockScript deletes the lock only while it still carries our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session: id required")
	}
	return nil
}

func (s *RedisStore) LoadInput(ctx context.Context, sessionID string) (audit.AuditInput, error) {
	var input audit.AuditInput
	if err := validateID(sessionID); err != nil {
		return input, err
	}
	err := s.loadJSON(ctx, inputKey(sessionID), &input)
	return input, err
}

func (s *RedisStore) SaveInput(ctx context.Context, sessionID string, input audit.AuditInput) (bool, error) {
	if err := validateID(sessionID); err != nil {
		return false, err
	}
	return s.saveIfChanged(ctx, inputKey(sessionID), input)
}

func (s *RedisStore) LoadResult(ctx context.Context, sessionID string) (audit.RoastResult, error) {
	var result audit.RoastResult
	if err := validateID(sessionID); err != nil {
		return result, err
	}
	err := s.loadJSON(ctx, resultKey(sessionID), &result)
	return result, err
}

func (s *RedisStore) SaveResult(ctx context.Context, sessionID string, result audit.RoastResult) (bool, error) {
	if err := validateID(sessionID); err != nil {
		return false, err
	}
	return s.saveIfChanged(ctx, resultKey(sessionID), result)
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]audit.ChatTurn, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "session.redis.history")
	defer span.End()

	raw, err := s.redis.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return nil, fmt.Errorf("session: list history: %w", err)
	}
	turns := make([]audit.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn audit.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...audit.ChatTurn) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("session: marshal chat turn: %w", err)
		}
		values = append(values, data)
	}

	ctx, span := s.tracer.Start(ctx, "session.redis.append_turns")
	defer span.End()

	key := historyKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -maxHistoryTurns, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: append chat turns: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, inputKey(sessionID), resultKey(sessionID), historyKey(sessionID), ownerKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveOwner(ctx context.Context, sessionID, owner string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("session: owner required")
	}
	if err := s.redis.Set(ctx, ownerKey(sessionID), owner, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save owner: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadOwner(ctx context.Context, sessionID string) (string, error) {
	if err := validateID(sessionID); err != nil {
		return "", err
	}
	owner, err := s.redis.Get(ctx, ownerKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: load owner: %w", err)
	}
	return owner, nil
}

func (s *RedisStore) AcquireChat(ctx context.Context, sessionID string) (string, error) {
	if err := validateID(sessionID); err != nil {
		return "", err
	}
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, lockKey(sessionID), token, s.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("session: acquire chat lock: %w", err)
	}
	if !ok {
		return "", ErrChatBusy
	}
	return token, nil
}

func (s *RedisStore) ReleaseChat(ctx context.Context, sessionID, token string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if token == "" {
		return errors.New("session: lock token required")
	}
	if err := releaseLockScript.Run(ctx, s.redis, []string{lockKey(sessionID)}, token).Err(); err != nil {
		return fmt.Errorf("session: release chat lock: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveReferral(ctx context.Context, visitorID, code string) error {
	if err := validateID(visitorID); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, referralKeyPrefix+visitorID, strings.TrimSpace(code), 0).Err(); err != nil {
		return fmt.Errorf("session: save referral: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadReferral(ctx context.Context, visitorID string) (string, error) {
	if err := validateID(visitorID); err != nil {
		return "", err
	}
	code, err := s.redis.Get(ctx, referralKeyPrefix+visitorID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: load referral: %w", err)
	}
	return code, nil
}

func (s *RedisStore) loadJSON(ctx context.Context, key string, out any) error {
	raw, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session: load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("session: decode %s: %w", key, err)
	}
	return nil
}

// saveIfChanged reads the stored bytes and writes only when they differ.
// An unchanged value still has its TTL refreshed.
func (s *RedisStore) saveIfChanged(ctx context.Context, key string, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("session: encode %s: %w", key, err)
	}

	ctx, span := s.tracer.Start(ctx, "session.redis.save")
	defer span.End()

	current, err := s.redis.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return false, fmt.Errorf("session: read %s: %w", key, err)
	}
	if err == nil && bytes.Equal(current, data) {
		if s.ttl > 0 {
			s.redis.Expire(ctx, key, s.ttl)
		}
		return false, nil
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: write %s: %w", key, err)
	}
	return true, nil
}
