package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultSize = 1024

// Cache is a bounded in-memory store whose entries expire after a fixed TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Remove(key K)
	Purge()
	Len() int
}

type ttlCache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// NewTTLCache returns an LRU cache holding at most size entries for ttl each.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) Cache[K, V] {
	if size <= 0 {
		size = defaultSize
	}
	return &ttlCache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *ttlCache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *ttlCache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

func (c *ttlCache[K, V]) Purge() {
	c.lru.Purge()
}

func (c *ttlCache[K, V]) Len() int {
	return c.lru.Len()
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
