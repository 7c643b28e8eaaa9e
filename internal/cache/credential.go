package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "marketpulse:credential:"

// RedisClient is the subset of go-redis used for credentials.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CredentialStore persists a session token in Redis under one key. It
// satisfies auth.Store.
type CredentialStore struct {
	client RedisClient
	key    string
}

func NewCredentialStore(client RedisClient, key string) *CredentialStore {
	if key == "" {
		key = "token"
	}
	return &CredentialStore{client: client, key: DefaultKeyPrefix + key}
}

func (s *CredentialStore) Key() string { return s.key }

func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Save stores the token without expiry; the backend decides when it stops
// being accepted.
func (s *CredentialStore) Save(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
