package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dflow-platform/dflow-api/internal/dmodel"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("model not found")
)

// Repository persists model documents.
type Repository interface {
	Create(ctx context.Context, m *dmodel.Model) (string, error)
	Get(ctx context.Context, id string) (*dmodel.Model, error)
	Delete(ctx context.Context, id string) error
	// LastForUser returns the user's most recently updated model.
	LastForUser(ctx context.Context, username string) (*dmodel.Model, error)
	// ListForUser returns the user's models, newest first.
	ListForUser(ctx context.Context, username string) ([]*dmodel.Model, error)
}

type memEntry struct {
	seq   uint64
	model dmodel.Model
}

// MemoryRepo is an in-memory repository used when MongoDB is not configured
// and by unit tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	seq   uint64
	store map[string]*memEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*memEntry)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *dmodel.Model) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	m.seq++
	m.store[doc.ID] = &memEntry{seq: m.seq, model: *doc}
	return doc.ID, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*dmodel.Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.store[id]; ok {
		cp := e.model
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) LastForUser(ctx context.Context, username string) (*dmodel.Model, error) {
	list, err := m.ListForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (m *MemoryRepo) ListForUser(ctx context.Context, username string) ([]*dmodel.Model, error) {
	m.mu.RLock()
	entries := make([]*memEntry, 0)
	for _, e := range m.store {
		if e.model.Username == username {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	// timestamps can collide; insertion order breaks ties
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.model.UpdatedAt.Equal(b.model.UpdatedAt) {
			return a.model.UpdatedAt.After(b.model.UpdatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*dmodel.Model, 0, len(entries))
	for _, e := range entries {
		cp := e.model
		out = append(out, &cp)
	}
	return out, nil
}
