package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("store")

// KVStore is the persistence the wallet layer needs across restarts.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var _ KVStore = (*MemStore)(nil)

type MemStore struct {
	lk   sync.RWMutex
	data map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (m *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	m.lk.RLock()
	defer m.lk.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemStore) Set(_ context.Context, key, value string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore) Close() error { return nil }

var _ KVStore = (*RedisStore)(nil)

// RedisStore keeps keys under a prefix so several gateways can share one redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	log.Infof("session store connected to redis %s", opts.Addr)
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(k string) string {
	if r.prefix == "" || strings.HasSuffix(r.prefix, ":") {
		return r.prefix + k
	}
	return r.prefix + ":" + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Open picks redis when an url is configured and falls back to memory.
func Open(ctx context.Context, redisURL, prefix string) (KVStore, error) {
	if redisURL == "" {
		log.Info("no redis configured, session state lives in memory")
		return NewMemStore(), nil
	}
	return NewRedisStore(ctx, redisURL, prefix)
}
