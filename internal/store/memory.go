package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local KV and Locker for dev/testing.
type Memory struct {
	mu    sync.Mutex
	data  map[string][]byte
	locks map[string]claim
	now   func() time.Time
}

type claim struct {
	token   string
	expires time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:  make(map[string][]byte),
		locks: make(map[string]claim),
		now:   time.Now,
	}
}

// Load returns a copy of the stored value.
func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of value.
func (m *Memory) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Acquire claims key until ttl elapses or Release is called.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if c, ok := m.locks[key]; ok && now.Before(c.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.locks[key] = claim{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Release drops the claim if token still holds it.
func (m *Memory) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.locks[key]; ok && c.token == token {
		delete(m.locks, key)
	}
	return nil
}

// Healthy always reports true.
func (m *Memory) Healthy(context.Context) bool { return true }
