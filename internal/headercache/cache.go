// Package headercache keeps recently parsed JPEG headers, keyed by the
// content of the bitstream they came from.
package headercache

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tinyjpeg/tinyjpeg/internal/jpeg"
	"github.com/tinyjpeg/tinyjpeg/internal/stats"
)

// Key identifies a bitstream by its xxhash64 digest and length.
type Key struct {
	Sum uint64
	Len int
}

// KeyOf returns the Key of data.
func KeyOf(data []byte) Key {
	return Key{Sum: xxhash.Sum64(data), Len: len(data)}
}

// Stats holds cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Cache is an LRU cache of parsed headers. It is safe for concurrent use.
type Cache struct {
	entries   *lru.Cache[Key, *jpeg.Header]
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding up to capacity headers. The collector is
// optional; if nil, a no-op collector is used.
func New(capacity int, collector stats.Collector) (*Cache, error) {
	entries, err := lru.New[Key, *jpeg.Header](capacity)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Cache{entries: entries, collector: collector}, nil
}

// Get returns the header cached under k.
func (c *Cache) Get(k Key) (*jpeg.Header, bool) {
	h, ok := c.entries.Get(k)
	if ok {
		c.hits.Add(1)
		c.collector.IncCounter(stats.MetricHeaderCacheHits, 1)
		return h, true
	}
	c.misses.Add(1)
	c.collector.IncCounter(stats.MetricHeaderCacheMisses, 1)
	return nil, false
}

// Add caches h under k, evicting the least recently used header if full.
func (c *Cache) Add(k Key, h *jpeg.Header) {
	c.entries.Add(k, h)
	c.collector.SetGauge(stats.MetricHeaderCacheSize, int64(c.entries.Len()))
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.entries.Len(),
	}
}

// Len returns the number of cached headers.
func (c *Cache) Len() int {
	return c.entries.Len()
}
