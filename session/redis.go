package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultSessionTTL bounds how long credentials without an explicit expiry
// stay in Redis.
const defaultSessionTTL = 24 * time.Hour

// RedisStore persists credentials in Redis so sessions survive restarts
// and are shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOptions configures a RedisStore instance.
type RedisOptions struct {
	// TTL overrides the fallback session lifetime.
	TTL time.Duration
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		TTL: defaultSessionTTL,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisStore{client: client, ttl: opts.TTL}
}

func sessionKey(userID string) string {
	return "cartpilot:session:" + userID
}

func (s *RedisStore) Save(ctx context.Context, userID string, creds Credentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	ttl := s.ttl
	if !creds.ExpiresAt.IsZero() {
		if remaining := time.Until(creds.ExpiresAt); remaining > 0 {
			ttl = remaining
		}
	}

	return s.client.Set(ctx, sessionKey(userID), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Credentials, error) {
	payload, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionKey(userID)).Err()
}
