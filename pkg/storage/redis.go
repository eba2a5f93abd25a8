package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// RedisStore keeps keys in Redis under "<namespace>:<key>".
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreFromClient(rdb, opts.Namespace)
}

// NewRedisStoreFromClient wraps an existing client, single node or cluster.
func NewRedisStoreFromClient(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "walletfolio"
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	return s.namespace + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %s", key)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return errors.Wrapf(s.client.Set(ctx, s.key(key), value, 0).Err(), "redis set %s", key)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(s.client.Del(ctx, s.key(key)).Err(), "redis del %s", key)
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx).Err(), "redis ping")
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
