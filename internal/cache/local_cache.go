package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache 本地内存缓存（L1 缓存）
//
// 特点：
// - 支持 TTL 过期
// - 后台定期清理过期条目，随 ctx 结束
// - 容量满时淘汰最早过期的条目
type LocalCache struct {
	mu      sync.RWMutex
	data    map[string]cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - ctx: 控制后台清理协程的生命周期
//   - maxSize: 最大缓存条目数
//   - ttl: 默认过期时间
func NewLocalCache(ctx context.Context, maxSize int, ttl time.Duration) *LocalCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	c := &LocalCache{
		data:    make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}

	go c.cleanupLoop(ctx, time.Minute)

	return c
}

// Get 获取缓存值
func (c *LocalCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len 返回当前条目数（包含尚未清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// GetStrings 实现 StringsCache
func (c *LocalCache) GetStrings(_ context.Context, key string) ([]string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	values, ok := v.([]string)
	if !ok {
		return nil, false
	}
	return append([]string(nil), values...), true
}

// SetStrings 实现 StringsCache
func (c *LocalCache) SetStrings(_ context.Context, key string, values []string, ttl time.Duration) error {
	c.Set(key, append([]string(nil), values...), ttl)
	return nil
}

// evictOldestLocked 淘汰最早过期的条目，调用方需持有写锁
func (c *LocalCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, entry := range c.data {
		if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired(time.Now())
		}
	}
}

func (c *LocalCache) removeExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}
