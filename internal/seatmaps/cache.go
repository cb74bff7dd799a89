package seatmaps

import (
	"sync"
	"time"
)

// imageCache is a TTL cache with LRU eviction for seat-map image bytes.
// Negative lookups are cached too, with a short TTL, so a venue without a
// map does not trigger a fetch every cycle.
type imageCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
}

type cacheEntry struct {
	image    []byte
	found    bool
	expires  time.Time
	accessed time.Time
}

func newImageCache(maxEntries int) *imageCache {
	return &imageCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *imageCache) get(key string) ([]byte, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false, false
	}
	entry.accessed = time.Now()
	return entry.image, entry.found, true
}

func (c *imageCache) set(key string, image []byte, found bool, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{
		image:    image,
		found:    found,
		expires:  time.Now().Add(ttl),
		accessed: time.Now(),
	}
}

// evictLRU drops the least recently accessed entry. Called with the lock
// held.
func (c *imageCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldest) {
			oldestKey = key
			oldest = entry.accessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *imageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
