package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records access tokens revoked before their expiry (logout).
// Without a Redis client entries are kept in process memory.
type Denylist struct {
	client *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]time.Time
	now func() time.Time
}

func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{
		client: client,
		prefix: "denylist:access:",
		mem:    map[string]time.Time{},
		now:    time.Now,
	}
}

// Shared reports whether revocations are visible to other instances.
func (d *Denylist) Shared() bool {
	return d != nil && d.client != nil
}

// Deny stores the token until ttl elapses.
func (d *Denylist) Deny(ctx context.Context, token string, ttl time.Duration) error {
	if d == nil || ttl <= 0 {
		return nil
	}
	if d.client != nil {
		return d.client.Set(ctx, d.prefix+token, "1", ttl).Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for t, exp := range d.mem {
		if !now.Before(exp) {
			delete(d.mem, t)
		}
	}
	d.mem[token] = now.Add(ttl)
	return nil
}

// IsDenied reports whether the token was revoked.
func (d *Denylist) IsDenied(ctx context.Context, token string) (bool, error) {
	if d == nil {
		return false, nil
	}
	if d.client != nil {
		n, err := d.client.Exists(ctx, d.prefix+token).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.mem[token]
	if !ok {
		return false, nil
	}
	if !d.now().Before(exp) {
		delete(d.mem, token)
		return false, nil
	}
	return true, nil
}
