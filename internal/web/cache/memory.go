package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with TTL support
type MemoryCache struct {
	mu     sync.RWMutex
	data   map[string]cacheItem
	config Config
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates an in-memory cache with custom configuration
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	return &MemoryCache{
		data:   make(map[string]cacheItem),
		config: config,
	}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := m.config.Prefix + key

	m.mu.RLock()
	item, ok := m.data[fullKey]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.mu.Lock()
		delete(m.data, fullKey)
		m.mu.Unlock()
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.data[m.config.Prefix+key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

// DeletePrefix removes all values whose keys start with the prefix
func (m *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	fullPrefix := m.config.Prefix + prefix

	m.mu.Lock()
	for key := range m.data {
		if strings.HasPrefix(key, fullPrefix) {
			delete(m.data, key)
		}
	}
	m.mu.Unlock()
	return nil
}
