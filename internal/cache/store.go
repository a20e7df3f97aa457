package cache

import (
	"context"
	"errors"
	"path"
	"strconv"
	"sync"
	"time"
)

// ErrMiss is returned by Store.Get when the key does not exist.
var ErrMiss = errors.New("cache: miss")

// Store is the key-value store behind response caching, tag invalidation and
// the impression counters.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key and registers key under every tag.
	Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error
	// InvalidateTags deletes every key registered under the tags, then the
	// tags themselves. Returns the number of keys deleted.
	InvalidateTags(ctx context.Context, tags ...string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	// IncrWithExpiry increments key and sets ttl when the key is new.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TakeInt atomically reads and deletes an integer counter; a missing key
	// reads as 0.
	TakeInt(ctx context.Context, key string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}

type memoryEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// MemoryStore is an in-process Store used when Redis is not configured and in
// tests. Expired entries are dropped lazily on access together with their tag
// memberships; Keys visits every entry, so each flush sweeps the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
	keyTags map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.now()) {
		m.drop(key)
		return memoryEntry{}, false
	}
	return e, true
}

// drop deletes key and unregisters it from its tags.
func (m *MemoryStore) drop(key string) {
	delete(m.entries, key)
	for tag := range m.keyTags[key] {
		members := m.tags[tag]
		delete(members, key)
		if len(members) == 0 {
			delete(m.tags, tag)
		}
	}
	delete(m.keyTags, key)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	for _, tag := range tags {
		members, ok := m.tags[tag]
		if !ok {
			members = make(map[string]struct{})
			m.tags[tag] = members
		}
		members[key] = struct{}{}

		owned, ok := m.keyTags[key]
		if !ok {
			owned = make(map[string]struct{})
			m.keyTags[key] = owned
		}
		owned[tag] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) InvalidateTags(_ context.Context, tags ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tag := range tags {
		for key := range m.tags[tag] {
			if _, ok := m.entries[key]; ok {
				n++
			}
			m.drop(key)
		}
		delete(m.tags, tag)
	}
	return n, nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.drop(key)
	}
	return nil
}

func (m *MemoryStore) incr(key string, n int64, ttl time.Duration) (int64, error) {
	e, ok := m.lookup(key)
	var cur int64
	if ok {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, errors.New("cache: value is not an integer")
		}
		cur = v
	} else if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	cur += n
	e.value = strconv.FormatInt(cur, 10)
	m.entries[key] = e
	return cur, nil
}

func (m *MemoryStore) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incr(key, n, 0)
}

func (m *MemoryStore) IncrWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incr(key, 1, ttl)
}

func (m *MemoryStore) TakeInt(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return 0, nil
	}
	m.drop(key)
	return strconv.ParseInt(e.value, 10, 64)
}

// Keys matches with path.Match, which agrees with Redis glob patterns for
// the simple "prefix:*" shapes used here.
func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.entries {
		if _, ok := m.lookup(key); !ok {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
