package webfetch

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheSize is the number of pages kept by default.
const DefaultCacheSize = 256

// PageCache is a thread-safe per-URL cache of fetched pages, bounded in size
// and expiring entries after a TTL.
type PageCache struct {
	pages *expirable.LRU[string, Page]
}

// NewPageCache creates a cache holding at most size pages, each for ttl.
// A non-positive size uses DefaultCacheSize.
func NewPageCache(size int, ttl time.Duration) *PageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &PageCache{pages: expirable.NewLRU[string, Page](size, nil, ttl)}
}

// Get returns a copy of the cached page for url if it has not expired.
func (c *PageCache) Get(url string) (*Page, bool) {
	page, ok := c.pages.Get(url)
	if !ok {
		return nil, false
	}
	return &page, true
}

// Set stores a copy of page under url, evicting the least recently used
// page when the cache is full.
func (c *PageCache) Set(url string, page *Page) {
	if page == nil {
		return
	}
	c.pages.Add(url, *page)
}

// Len returns the number of live entries.
func (c *PageCache) Len() int {
	return c.pages.Len()
}
