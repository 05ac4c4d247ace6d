package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces dialog keys in Redis.
const KeyPrefix = "pukbot:dialog:"

// RedisStore keeps dialog state in Redis under KeyPrefix<user_id> with a TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Dial parses url, connects and verifies connectivity with PING.
func Dial(ctx context.Context, url string, ttl time.Duration) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(c, ttl), c, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	v, err := s.client.Get(ctx, userKey(KeyPrefix, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Idle, nil
	}
	if err != nil {
		return Idle, err
	}
	st := State(v)
	if !st.Valid() {
		return Idle, nil
	}
	return st, nil
}

// Set implements Store. Setting Idle deletes the key.
func (s *RedisStore) Set(ctx context.Context, userID int64, st State) error {
	if st == Idle {
		return s.Clear(ctx, userID)
	}
	return s.client.Set(ctx, userKey(KeyPrefix, userID), string(st), s.ttl).Err()
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, userKey(KeyPrefix, userID)).Err()
}
