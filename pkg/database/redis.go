package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// RedisStore keeps session values under prefixed keys, optionally expiring
// them after ttl. It lets several web hosts share session state.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ session.Backend = (*RedisStore)(nil)

// NewRedisStore connects to addr and pings it. A ttl of 0 keeps values
// until they are deleted.
func NewRedisStore(
	addr string,
	password string,
	db int,
	prefix string,
	ttl time.Duration,
) (
	*RedisStore,
	error,
) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return NewRedisStoreWithClient(rdb, prefix, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(
	client redis.UniversalClient,
	prefix string,
	ttl time.Duration,
) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Put(name string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key(name), value, s.ttl).Err()
}

func (s *RedisStore) Get(name string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return s.client.Del(ctx, s.key(name)).Err()
}
