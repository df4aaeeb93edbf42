package webfetch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCacheGetSet(t *testing.T) {
	c := NewPageCache(10, time.Minute)

	_, ok := c.Get("https://example.com")
	assert.False(t, ok, "empty cache misses")

	c.Set("https://example.com", &Page{Title: "Example", Content: "body"})
	page, ok := c.Get("https://example.com")
	require.True(t, ok)
	assert.Equal(t, "Example", page.Title)

	_, ok = c.Get("https://other.example.com")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestPageCacheExpiry(t *testing.T) {
	c := NewPageCache(10, 50*time.Millisecond)
	c.Set("a", &Page{Content: "a"})

	_, ok := c.Get("a")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPageCacheIsBounded(t *testing.T) {
	c := NewPageCache(100, time.Hour)
	for i := range 10000 {
		c.Set(fmt.Sprintf("https://example.com/%d", i), &Page{Content: "x"})
	}
	assert.Equal(t, 100, c.Len())

	_, ok := c.Get("https://example.com/0")
	assert.False(t, ok, "oldest entries are evicted")
	_, ok = c.Get("https://example.com/9999")
	assert.True(t, ok)
}

func TestPageCacheKeepsRecentlyUsed(t *testing.T) {
	c := NewPageCache(2, time.Hour)
	c.Set("a", &Page{Content: "a"})
	c.Set("b", &Page{Content: "b"})
	c.Get("a")
	c.Set("c", &Page{Content: "c"})

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestPageCacheDefaultSize(t *testing.T) {
	c := NewPageCache(0, time.Hour)
	for i := range DefaultCacheSize + 10 {
		c.Set(fmt.Sprint(i), &Page{})
	}
	assert.Equal(t, DefaultCacheSize, c.Len())
}

func TestPageCacheCopies(t *testing.T) {
	c := NewPageCache(10, time.Minute)
	original := &Page{Content: "original"}
	c.Set("a", original)

	original.Content = "modified after set"
	got, _ := c.Get("a")
	assert.Equal(t, "original", got.Content)

	got.Content = "modified after get"
	again, _ := c.Get("a")
	assert.Equal(t, "original", again.Content)
}

func TestPageCacheIgnoresNil(t *testing.T) {
	c := NewPageCache(10, time.Minute)
	c.Set("nil", nil)
	assert.Equal(t, 0, c.Len())
}

func TestPageCacheConcurrentAccess(t *testing.T) {
	c := NewPageCache(10, time.Minute)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("key", &Page{Content: string(rune('a' + i%26))})
		}()
		go func() {
			defer wg.Done()
			c.Get("key")
		}()
	}
	wg.Wait()
	_, ok := c.Get("key")
	assert.True(t, ok)
}
