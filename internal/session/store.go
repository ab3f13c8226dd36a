// Package session provides the per-customer session store: an opaque
// byte-value store keyed by session token and field, backed by Redis in
// production and by memory in tests. The cart contents and the pending
// order identifier after checkout both live here.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session field has no value.
var ErrNotFound = errors.New("session value not found")

// Store persists opaque session values keyed by token and field.
type Store interface {
	Get(ctx context.Context, token, field string) ([]byte, error)
	Set(ctx context.Context, token, field string, value []byte) error
	Delete(ctx context.Context, token, field string) error
}

const keyPrefix = "session:"

// RedisStore implements Store on a Redis hash per session token. Every
// write refreshes the session TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore with the given session lifetime.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, token, field string) ([]byte, error) {
	val, err := s.client.HGet(ctx, keyPrefix+token, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "session get")
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, token, field string, value []byte) error {
	key := keyPrefix + token
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field, value)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "session set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token, field string) error {
	if err := s.client.HDel(ctx, keyPrefix+token, field).Err(); err != nil {
		return errors.Wrap(err, "session delete")
	}
	return nil
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, token, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[token][field]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, token, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[token] == nil {
		s.data[token] = make(map[string][]byte)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[token][field] = stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[token], field)
	return nil
}
