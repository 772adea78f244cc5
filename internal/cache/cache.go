// Package cache memoizes expensive pipeline calls in a redis-style store.
// The cache is a pure performance optimization and never authoritative: any
// connectivity failure disables it for the remainder of that call path and
// the wrapped function executes directly.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ragstack/ragd/config"
)

// ErrCache is declared for completeness but never returned: cache failures
// are always recovered locally by disabling the cache for that call.
var ErrCache = errors.New("cache operation failed")

// Manager holds a connection to the external key-value store. It owns no
// long-lived state beyond the client handle; callers open and close it
// around each operation sequence.
type Manager struct {
	cfg     config.CacheConfig
	logger  *log.Logger
	client  *redis.Client
	enabled bool
}

// NewManager creates a manager. Connect must be called before use.
func NewManager(cfg config.CacheConfig, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{cfg: cfg, logger: logger, enabled: cfg.Enabled}
}

// Connect dials the store and pings it. On failure the manager disables
// itself rather than surfacing an error.
func (m *Manager) Connect(ctx context.Context) {
	if !m.enabled {
		return
	}
	m.client = redis.NewClient(&redis.Options{
		Addr:     m.cfg.Addr,
		Password: m.cfg.Password,
		DB:       m.cfg.DB,
	})
	if err := m.client.Ping(ctx).Err(); err != nil {
		m.logger.Printf("redis connection failed: %v", err)
		m.enabled = false
	}
}

// Disconnect releases the client handle.
func (m *Manager) Disconnect() {
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
}

// Get loads a cached value into out. It returns false on miss or on any
// store error; errors are logged and swallowed.
func (m *Manager) Get(ctx context.Context, key string, out interface{}) bool {
	if !m.enabled || m.client == nil {
		return false
	}
	raw, err := m.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Printf("cache get error: %v", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		m.logger.Printf("cache decode error: %v", err)
		return false
	}
	return true
}

// Set stores a JSON-serialized value with the given TTL (manager default
// when ttl <= 0). Failures are logged and swallowed.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if !m.enabled || m.client == nil {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Printf("cache encode error: %v", err)
		return false
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	if err := m.client.SetEx(ctx, key, raw, ttl).Err(); err != nil {
		m.logger.Printf("cache set error: %v", err)
		return false
	}
	return true
}

// Delete removes a key. Failures are logged and swallowed.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	if !m.enabled || m.client == nil {
		return false
	}
	if err := m.client.Del(ctx, key).Err(); err != nil {
		m.logger.Printf("cache delete error: %v", err)
		return false
	}
	return true
}

// Key derives a deterministic cache key from the prefix, positional
// arguments and keyword arguments. Keyword arguments are sorted by key so
// logically-equal calls yield the same key regardless of declaration order.
// md5 is used for even distribution only; collision resistance is not a
// security requirement here.
func Key(prefix string, args []interface{}, kwargs map[string]interface{}) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := prefix + ":"
	for _, a := range args {
		data += fmt.Sprintf("%v,", a)
	}
	data += ":"
	for _, k := range keys {
		data += fmt.Sprintf("%s=%v,", k, kwargs[k])
	}

	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Func is a memoizable pipeline stage: its result depends only on the
// keyword arguments it receives.
type Func[T any] func(ctx context.Context, kwargs map[string]interface{}) (T, error)

// WithCache wraps fn so results are memoized under (prefix, kwargs). Each
// call opens a connection, derives the key, checks for a hit, executes and
// stores on miss, and releases the connection on every path including
// failures.
func WithCache[T any](cfg config.CacheConfig, logger *log.Logger, prefix string, ttl time.Duration, fn Func[T]) Func[T] {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return func(ctx context.Context, kwargs map[string]interface{}) (T, error) {
		m := NewManager(cfg, logger)
		m.Connect(ctx)
		defer m.Disconnect()

		key := Key(prefix, nil, kwargs)

		var cached T
		if m.Get(ctx, key, &cached) {
			logger.Printf("cache hit: %s", key)
			return cached, nil
		}

		result, err := fn(ctx, kwargs)
		if err != nil {
			return result, err
		}
		m.Set(ctx, key, result, ttl)
		return result, nil
	}
}
