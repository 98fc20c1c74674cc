package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
}

// MemoryStorage is an in-process ArtifactStore for tests and local runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]object)}
}

func (m *MemoryStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = object{data: b, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	o, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (m *MemoryStorage) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + key, nil
}

// ContentType reports the stored media type of key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}
