package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*RedisStore)(nil)

// RedisConfig holds the connection settings of the Redis backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps continuations and update marks in Redis with native TTLs.
// TakePending uses GETDEL and MarkUpdate uses SETNX, so both are atomic
// across concurrent requests.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return newRedisStore(client, cfg.Prefix, ttl), nil
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if prefix == "" {
		prefix = "shopbot"
	}
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) pendingKey(userID int64) string {
	return s.prefix + ":pending:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) updateKey(updateID int) string {
	return s.prefix + ":update:" + strconv.Itoa(updateID)
}

func (s *RedisStore) SetPending(ctx context.Context, userID int64, token string) error {
	return s.client.Set(ctx, s.pendingKey(userID), token, s.ttl).Err()
}

func (s *RedisStore) TakePending(ctx context.Context, userID int64) (string, bool, error) {
	token, err := s.client.GetDel(ctx, s.pendingKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *RedisStore) ClearPending(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.pendingKey(userID)).Err()
}

func (s *RedisStore) MarkUpdate(ctx context.Context, updateID int, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.updateKey(updateID), 1, ttl).Result()
}

func (s *RedisStore) ReleaseUpdate(ctx context.Context, updateID int) error {
	return s.client.Del(ctx, s.updateKey(updateID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
