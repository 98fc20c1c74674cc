package sessions

import (
	"context"
	"sync"
	"time"
)

// Store persists refresh grants. Get returns (nil, nil) for unknown tokens.
type Store interface {
	Put(ctx context.Context, g *Grant) error
	Get(ctx context.Context, token string) (*Grant, error)
	Revoke(ctx context.Context, token string) error
}

// MemoryStore keeps grants in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	grants map[string]*Grant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: map[string]*Grant{}}
}

func (m *MemoryStore) Put(ctx context.Context, g *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grants[g.Token] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[token]
	if !ok {
		return nil, nil
	}
	if g.expired(time.Now().UTC()) {
		delete(m.grants, token)
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *MemoryStore) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, token)
	return nil
}
