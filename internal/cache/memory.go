package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCache is an in-process Cache for tests and local development.
// TTLs are honored lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string, ttl time.Duration) error {
	return c.Set(ctx, ItemStatusKey(itemID), []byte(status), ttl)
}

func (c *MemoryCache) GetItemStatus(ctx context.Context, itemID uuid.UUID) (string, bool, error) {
	val, found, err := c.Get(ctx, ItemStatusKey(itemID))
	if err != nil || !found {
		return "", false, err
	}
	return string(val), true, nil
}

func (c *MemoryCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	entry, ok := c.entries[key]
	if ok && (entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)) {
		n, _ = strconv.ParseInt(string(entry.value), 10, 64)
	}
	n++
	c.entries[key] = memoryEntry{
		value:     []byte(strconv.FormatInt(n, 10)),
		expiresAt: time.Now().Add(expiry),
	}
	return n, nil
}
