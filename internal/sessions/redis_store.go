package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps grants as JSON under "<prefix><token>" with TTL = ExpiresAt - now.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed grant store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "refresh:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

func (r *RedisStore) Put(ctx context.Context, g *Grant) error {
	b, err := json.Marshal(g)
	if err != nil {
		return err
	}
	ttl := time.Until(g.ExpiresAt)
	if ttl <= 0 {
		// redis rejects non-positive expirations
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(g.Token), b, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Grant, error) {
	b, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var g Grant
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, err
	}
	if g.expired(time.Now().UTC()) {
		_ = r.client.Del(ctx, r.key(token)).Err()
		return nil, nil
	}
	return &g, nil
}

func (r *RedisStore) Revoke(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}
