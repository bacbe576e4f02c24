package cache

import (
	"sync"
	"time"
)

// TTL 带过期时间的内存缓存。过期项在访问或 Set 时惰性清理，不启动后台 goroutine。
type TTL[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]item[V]
	defaultTTL time.Duration
	maxSize    int
	now        func() time.Time
}

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL maxSize <= 0 表示不限制条目数
func NewTTL[K comparable, V any](defaultTTL time.Duration, maxSize int) *TTL[K, V] {
	return &TTL[K, V]{
		items:      make(map[K]item[V]),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// SetClock 测试用
func (c *TTL[K, V]) SetClock(now func() time.Time) {
	if now != nil {
		c.mu.Lock()
		c.now = now
		c.mu.Unlock()
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(it.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set ttl <= 0 使用默认 TTL
func (c *TTL[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictLocked(now)
	}
	c.items[key] = item[V]{value: value, expiresAt: now.Add(ttl)}
}

// evictLocked 先清理过期项；仍然满时淘汰最早过期的一项
func (c *TTL[K, V]) evictLocked(now time.Time) {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
			continue
		}
		if !found || it.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, it.expiresAt, true
		}
	}
	if found && len(c.items) >= c.maxSize {
		delete(c.items, oldestKey)
	}
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
