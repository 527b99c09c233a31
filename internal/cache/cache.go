// Package cache provides a TTL-bound key/value store shared across
// adapters, the manager, and the REST surface. Cache errors degrade to a
// miss; callers never block the hot path on a cache failure.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store is the shared cache contract. Get reports ok=false on miss or
// error; Set best-efforts the write and never returns an error to the
// caller since a failed cache write must not fail the request it backs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// NewAuto picks a Redis-backed store when REDIS_URL is set, otherwise an
// in-process memory store.
func NewAuto() Store {
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			log.Warn().Err(err).Msg("cache: invalid REDIS_URL, falling back to memory store")
			return NewMemory()
		}
		return &redisStore{client: redis.NewClient(opts)}
	}
	return NewMemory()
}

type entry struct {
	data []byte
	exp  time.Time
}

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewMemory returns an in-process TTL cache.
func NewMemory() Store {
	return &memoryStore{data: make(map[string]entry)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

func (m *memoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	e := entry{data: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
}

type redisStore struct {
	client *redis.Client
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache: redis set failed, degrading to miss")
	}
}

// Key derives a cache key from ordered request parameters: the MD5 hex
// digest of "provider:arg1:arg2:…", prefixed with "provider:".
func Key(provider string, parts ...string) string {
	joined := strings.Join(append([]string{provider}, parts...), ":")
	sum := md5.Sum([]byte(joined))
	return provider + ":" + hex.EncodeToString(sum[:])
}

// TTL by row family, per spec.md §4.2 ("typical" defaults).
const (
	TTLIntradayBars = 300 * time.Second
	TTLEarnings     = 3600 * time.Second
	TTLFundamentals = 86400 * time.Second
)
