package users

import (
	"context"
	"sync"
	"time"

	"github.com/dflow-platform/dflow-api/internal/models"
)

// MemoryUserRepository keeps users in process memory. Used when MongoDB is
// not configured and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[string]*models.User)}
}

func (m *MemoryUserRepository) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrUserExists
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.byID[u.ID] = &cp
	m.order = append(m.order, u.ID)
	return nil
}

func (m *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryUserRepository) List(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.User, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}
