package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/love-auditor/internal/audit"
)

// MemoryStore is an in-process Store for development without Redis.
type MemoryStore struct {
	mu        sync.Mutex
	inputs    map[string][]byte
	results   map[string][]byte
	histories map[string][]audit.ChatTurn
	owners    map[string]string
	locks     map[string]chatLock
	referrals map[string]string
	lockTTL   time.Duration
	now       func() time.Time
}

type chatLock struct {
	token   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inputs:    make(map[string][]byte),
		results:   make(map[string][]byte),
		histories: make(map[string][]audit.ChatTurn),
		owners:    make(map[string]string),
		locks:     make(map[string]chatLock),
		referrals: make(map[string]string),
		lockTTL:   DefaultChatLockTTL,
		now:       time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// WithChatLockTTL overrides how long an unreleased chat lock survives.
func (m *MemoryStore) WithChatLockTTL(ttl time.Duration) *MemoryStore {
	if m != nil && ttl > 0 {
		m.lockTTL = ttl
	}
	return m
}

func (m *MemoryStore) LoadInput(_ context.Context, sessionID string) (audit.AuditInput, error) {
	var input audit.AuditInput
	err := m.load(m.inputs, sessionID, &input)
	return input, err
}

func (m *MemoryStore) SaveInput(_ context.Context, sessionID string, input audit.AuditInput) (bool, error) {
	return m.save(m.inputs, sessionID, input)
}

func (m *MemoryStore) LoadResult(_ context.Context, sessionID string) (audit.RoastResult, error) {
	var result audit.RoastResult
	err := m.load(m.results, sessionID, &result)
	return result, err
}

func (m *MemoryStore) SaveResult(_ context.Context, sessionID string, result audit.RoastResult) (bool, error) {
	return m.save(m.results, sessionID, result)
}

func (m *MemoryStore) History(_ context.Context, sessionID string) ([]audit.ChatTurn, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.ChatTurn{}, m.histories[sessionID]...), nil
}

func (m *MemoryStore) AppendTurns(_ context.Context, sessionID string, turns ...audit.ChatTurn) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.histories[sessionID], turns...)
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	m.histories[sessionID] = history
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, sessionID string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inputs, sessionID)
	delete(m.results, sessionID)
	delete(m.histories, sessionID)
	delete(m.owners, sessionID)
	return nil
}

func (m *MemoryStore) SaveOwner(_ context.Context, sessionID, owner string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("session: owner required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[sessionID] = owner
	return nil
}

func (m *MemoryStore) LoadOwner(_ context.Context, sessionID string) (string, error) {
	if err := validateID(sessionID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

func (m *MemoryStore) AcquireChat(_ context.Context, sessionID string) (string, error) {
	if err := validateID(sessionID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if held, busy := m.locks[sessionID]; busy && now.Before(held.expires) {
		return "", ErrChatBusy
	}
	token := uuid.NewString()
	m.locks[sessionID] = chatLock{token: token, expires: now.Add(m.lockTTL)}
	return token, nil
}

func (m *MemoryStore) ReleaseChat(_ context.Context, sessionID, token string) error {
	if err := validateID(sessionID); err != nil {
		return err
	}
	if token == "" {
		return errors.New("session: lock token required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[sessionID]; ok && held.token == token {
		delete(m.locks, sessionID)
	}
	return nil
}

func (m *MemoryStore) SaveReferral(_ context.Context, visitorID, code string) error {
	if err := validateID(visitorID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals[visitorID] = strings.TrimSpace(code)
	return nil
}

func (m *MemoryStore) LoadReferral(_ context.Context, visitorID string) (string, error) {
	if err := validateID(visitorID); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.referrals[visitorID]
	if !ok {
		return "", ErrNotFound
	}
	return code, nil
}

func (m *MemoryStore) load(values map[string][]byte, id string, out any) error {
	if err := validateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	raw, ok := values[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("session: decode %s: %w", id, err)
	}
	return nil
}

func (m *MemoryStore) save(values map[string][]byte, id string, value any) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("session: encode %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes.Equal(values[id], data) {
		return false, nil
	}
	values[id] = data
	return true, nil
}
