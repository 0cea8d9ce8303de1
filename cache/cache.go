// Package cache memoizes paginated read responses until the next mutation.
package cache

import (
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTTL  = 2 * time.Minute
	DefaultSize = 1024
)

type ResponseCache struct {
	entries *expirable.LRU[string, any]
}

func New(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		entries: expirable.NewLRU[string, any](size, nil, ttl),
	}
}

// Key builds a canonical cache key: url.Values.Encode sorts by parameter name,
// so the same parameters in a different order map to the same entry.
func Key(endpoint string, params url.Values) string {
	return endpoint + "?" + params.Encode()
}

func (c *ResponseCache) Get(key string) (any, bool) {
	return c.entries.Get(key)
}

func (c *ResponseCache) Put(key string, value any) {
	c.entries.Add(key, value)
}

// InvalidateAll drops every entry. Called after any committed mutation.
func (c *ResponseCache) InvalidateAll() {
	c.entries.Purge()
}

func (c *ResponseCache) Len() int {
	return c.entries.Len()
}
