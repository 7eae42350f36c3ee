package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rcms/internal/utils"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "session:"

// RedisStore keeps sessions server side. The client only holds an opaque
// random id; the key stored in Redis is a hash of it.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	lifetime  time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, keyPrefix: defaultKeyPrefix, lifetime: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, identity Identity) (string, time.Time, error) {
	token, err := utils.GenerateRandomToken(32)
	if err != nil {
		return "", time.Time{}, err
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := s.TTL()
	if err := s.client.Set(ctx, s.key(token), data, ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return token, time.Now().Add(ttl), nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, ErrInvalidSession
	}
	if !identity.Role.Valid() {
		return nil, ErrInvalidSession
	}
	return &identity, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *RedisStore) TTL() time.Duration {
	return ttlOrDefault(s.lifetime)
}

func (s *RedisStore) key(token string) string {
	return s.keyPrefix + utils.HashToken(token)
}
