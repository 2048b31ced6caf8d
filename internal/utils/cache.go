package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// Cache is a size-bounded LRU whose entries also expire after a TTL.
type Cache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	ttl      time.Duration
	now      func() time.Time
}

// NewCache 创建容量为 size、有效期为 ttl 的缓存
func NewCache[V any](size int, ttl time.Duration) (*Cache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lruCache: l, ttl: ttl, now: time.Now}, nil
}

// Set 设置缓存
func (c *Cache[V]) Set(key string, data V) {
	c.lruCache.Add(key, cacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	})
}

// Get returns the cached value, or false when absent or expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}

	return val.Data, true
}

// Delete 删除指定缓存
func (c *Cache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// Len counts entries, expired ones included until they are touched.
func (c *Cache[V]) Len() int {
	return c.lruCache.Len()
}
