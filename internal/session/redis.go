package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/instafeed/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session under a single Redis key, so several
// terminals on one machine share a login.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store. profile namespaces the key; ttl 0 means no expiry.
func NewRedisStore(client *redis.Client, profile string, ttl time.Duration) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		client: client,
		key:    "instafeed:session:" + profile,
		ttl:    ttl,
	}
}

func (r *RedisStore) Load(ctx context.Context) (*model.Session, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decode(data)
}

func (r *RedisStore) Save(ctx context.Context, s model.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

// Close releases the underlying client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
