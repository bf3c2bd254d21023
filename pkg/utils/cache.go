// Package utils 缓存工具
package utils

import (
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL 默认缓存有效期
const DefaultCacheTTL = 5 * time.Minute

// Cache 带有效期的请求缓存
//
// 新鲜度以写入时间判断：now - storedAt < ttl。过期条目在 Get 时视为不存在，
// 由下一次 Put 覆盖，go-cache 的清理协程负责回收内存。
type Cache struct {
	items *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// NewCache 创建缓存，ttl 为 0 时使用默认 5 分钟
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 2 * ttl
	}
	return &Cache{
		// 底层条目多保留一个周期，过期判断以 storedAt 为准
		items: cache.New(2*ttl, cleanupInterval),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetClock 替换时钟（测试使用）
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// TTL 缓存有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get 获取缓存，仅返回未过期的值
func (c *Cache) Get(key string) (interface{}, bool) {
	raw, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	entry, ok := raw.(cacheEntry)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return entry.value, true
}

// Put 写入缓存，无条件覆盖旧值
func (c *Cache) Put(key string, value interface{}) {
	c.items.SetDefault(key, cacheEntry{value: value, storedAt: c.now()})
}

// Len 当前条目数（含已过期未回收的条目）
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// Flush 清空缓存
func (c *Cache) Flush() {
	c.items.Flush()
}

// CacheKey 由接口名与参数生成缓存键
//
// 参数按键名排序编码，调用方传入 map 的顺序不影响结果。
func CacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return endpoint + "?" + values.Encode()
}
