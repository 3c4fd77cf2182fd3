package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache. Used in tests and when REDIS_URL is empty.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	e, ok := m.items[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	var raw json.RawMessage
	if err := m.Get(ctx, key, &raw); err != nil {
		if err == ErrMiss {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
