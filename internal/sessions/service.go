package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service issues and validates refresh grants.
type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{store: store, ttl: ttl}
}

// Issue stores a new grant for username and returns its token.
func (s *Service) Issue(ctx context.Context, username string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	g := &Grant{
		Token:     hex.EncodeToString(b),
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, g); err != nil {
		return "", err
	}
	return g.Token, nil
}

// Validate returns the grant when the token is known and unexpired, else nil.
func (s *Service) Validate(ctx context.Context, token string) (*Grant, error) {
	g, err := s.store.Get(ctx, token)
	if err != nil || g == nil {
		return nil, err
	}
	if g.expired(time.Now().UTC()) {
		_ = s.store.Revoke(ctx, token)
		return nil, nil
	}
	return g, nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.store.Revoke(ctx, token)
}
