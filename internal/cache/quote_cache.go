package cache

import "time"

const (
	defaultQuoteTTL  = 10 * time.Minute
	defaultQuoteSize = 4096
)

// QuoteCache memoizes resolved quotes per rate book version, so a reload of
// the book never serves amounts computed from the previous tables.
type QuoteCache[V any] struct {
	entries Cache[string, V]
}

func NewQuoteCache[V any](ttl time.Duration) *QuoteCache[V] {
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &QuoteCache[V]{entries: NewTTLCache[string, V](defaultQuoteSize, ttl)}
}

func (c *QuoteCache[V]) Get(version, product, key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.entries.Get(cacheKey(version, product, key))
}

func (c *QuoteCache[V]) Set(version, product, key string, value V) {
	if c == nil {
		return
	}
	c.entries.Set(cacheKey(version, product, key), value)
}
