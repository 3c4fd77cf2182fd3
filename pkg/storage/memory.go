package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and local runs without MinIO.
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{Objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, prefix, filename, contentType string, r io.Reader, size int64) (*Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	key := ObjectKey(prefix, filename)
	m.mu.Lock()
	m.Objects[key] = data
	m.mu.Unlock()
	return &Object{Key: key, URL: "memory://" + key, FileName: filename, ContentType: contentType, Size: size}, nil
}

func (m *Memory) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Objects[key]; !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	return fmt.Sprintf("memory://%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.Objects, key)
	m.mu.Unlock()
	return nil
}
