package cache_test

import (
	"net/url"
	"testing"
	"time"

	"bitslow/cache"

	"github.com/stretchr/testify/require"
)

func TestKey_Canonical(t *testing.T) {
	a := url.Values{"page": {"2"}, "limit": {"10"}, "available": {"true"}}
	b := url.Values{"available": {"true"}, "limit": {"10"}, "page": {"2"}}
	require.Equal(t, cache.Key("coins", a), cache.Key("coins", b))
	require.NotEqual(t, cache.Key("coins", a), cache.Key("transactions", a))
}

func TestResponseCache_PutGet(t *testing.T) {
	c := cache.New(16, time.Minute)
	_, ok := c.Get("coins?page=1")
	require.False(t, ok)

	c.Put("coins?page=1", []int{1, 2, 3})
	got, ok := c.Get("coins?page=1")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestResponseCache_InvalidateAll(t *testing.T) {
	c := cache.New(16, time.Minute)
	c.Put("coins?page=1", 1)
	c.Put("transactions?page=1", 2)
	require.Equal(t, 2, c.Len())

	c.InvalidateAll()
	require.Equal(t, 0, c.Len())
	_, ok := c.Get("coins?page=1")
	require.False(t, ok)
}

func TestResponseCache_Expires(t *testing.T) {
	c := cache.New(16, 50*time.Millisecond)
	c.Put("coins?page=1", 1)
	require.Eventually(t, func() bool {
		_, ok := c.Get("coins?page=1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
