// Package cache 提供缓存功能
package cache

import (
	"sync"
	"time"
)

// 缓存键常量
const (
	KeySystemdServices = "systemd_services"
	KeySystemMetrics   = "system_metrics"
)

// DefaultTTL 默认缓存过期时间
const DefaultTTL = 2 * time.Second

type item[V any] struct {
	value     V
	timestamp time.Time
	ttl       time.Duration
}

// TTLCache 带过期时间的键值缓存
type TTLCache[V any] struct {
	items map[string]item[V]
	mu    sync.RWMutex
}

// NewTTLCache 创建缓存
func NewTTLCache[V any]() *TTLCache[V] {
	return &TTLCache[V]{
		items: make(map[string]item[V]),
	}
}

// Set 设置缓存项
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, timestamp: time.Now(), ttl: ttl}
}

// Get 获取缓存项，过期视为不存在
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if time.Since(it.timestamp) > it.ttl {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return zero, false
	}
	return it.value, true
}

// GetOrLoad 命中则直接返回，否则调用 load 并缓存成功结果
func (c *TTLCache[V]) GetOrLoad(key string, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Delete 删除缓存项
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Cleanup 清理过期缓存
func (c *TTLCache[V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if now.Sub(it.timestamp) > it.ttl {
			delete(c.items, key)
		}
	}
}

// Size 获取缓存大小
func (c *TTLCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
