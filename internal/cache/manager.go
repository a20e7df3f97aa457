package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"go.uber.org/zap"
)

// DefaultTTL is the lifetime of every cached response.
const DefaultTTL = 5 * time.Minute

// Manager caches JSON-encoded responses on top of a Store. Cache errors are
// logged and treated as misses; a broken cache never fails a request.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager creates a Manager. A zero ttl means DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// Store exposes the underlying store for counters.
func (m *Manager) Store() Store {
	return m.store
}

// GetJSON decodes the entry at key into dst. cacheName labels the metrics.
func (m *Manager) GetJSON(ctx context.Context, cacheName, key string, dst interface{}) bool {
	if m == nil || m.store == nil {
		return false
	}
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.WarnWithFields("Cache read failed", err, zap.String("key", key))
		}
		metrics.RecordCacheMiss(cacheName)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		logger.WarnWithFields("Cache entry undecodable", err, zap.String("key", key))
		metrics.RecordCacheMiss(cacheName)
		return false
	}
	metrics.RecordCacheHit(cacheName)
	return true
}

// SetJSON stores v under key, tagged for later invalidation.
func (m *Manager) SetJSON(ctx context.Context, key string, v interface{}, tags ...string) {
	if m == nil || m.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.WarnWithFields("Cache encode failed", err, zap.String("key", key))
		return
	}
	if err := m.store.Set(ctx, key, string(raw), m.ttl, tags...); err != nil {
		logger.WarnWithFields("Cache write failed", err, zap.String("key", key))
	}
}

// Invalidate evicts every entry registered under tags.
func (m *Manager) Invalidate(ctx context.Context, tags ...string) {
	if m == nil || m.store == nil || len(tags) == 0 {
		return
	}
	n, err := m.store.InvalidateTags(ctx, tags...)
	if err != nil {
		logger.WarnWithFields("Cache invalidation failed", err, zap.Strings("tags", tags))
		return
	}
	metrics.RecordCacheInvalidation(tagKind(tags[0]), n)
	logger.Log.Debug("Cache invalidated", zap.Strings("tags", tags), zap.Int64("keys", n))
}

// tagKind strips ids so metric labels stay low-cardinality.
func tagKind(tag string) string {
	if i := strings.Index(tag, ":"); i >= 0 {
		return tag[:i]
	}
	return tag
}
