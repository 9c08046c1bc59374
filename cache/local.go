package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultLocalSize = 10000
	DefaultLocalTTL  = 5 * time.Minute
)

// LocalCache is the in-process tier. One instance is created when the process
// starts and shared by every namespace.
type LocalCache struct {
	lru *expirable.LRU[string, []byte]
	ttl time.Duration
}

func NewLocalCache(size int, ttl time.Duration) *LocalCache {
	if size <= 0 {
		size = DefaultLocalSize
	}
	if ttl <= 0 {
		ttl = DefaultLocalTTL
	}

	return &LocalCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
		ttl: ttl,
	}
}

func (c *LocalCache) TTL() time.Duration {
	return c.ttl
}

func (c *LocalCache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *LocalCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
}

// RemovePrefix drops every key starting with prefix and returns how many were removed.
func (c *LocalCache) RemovePrefix(prefix string) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

func (c *LocalCache) Purge() {
	c.lru.Purge()
}

func (c *LocalCache) Len() int {
	return c.lru.Len()
}
