// Package imgcache holds decoded images keyed by source path.
package imgcache

import (
	"context"

	"github.com/jellydator/ttlcache/v3"
	"github.com/samber/lo"

	"github.com/ghyeongl/imgview/img"
	"github.com/ghyeongl/imgview/logging"
	"github.com/ghyeongl/imgview/metrics"
)

// Cache maps paths to decoded images. Entries never expire on their own;
// with a capacity set, the least recently used entry is evicted on overflow.
// Safe for concurrent use.
type Cache struct {
	items *ttlcache.Cache[string, *img.Image]
}

// New returns an empty cache. A zero capacity means unbounded.
func New(capacity uint64) *Cache {
	opts := []ttlcache.Option[string, *img.Image]{
		ttlcache.WithTTL[string, *img.Image](ttlcache.NoTTL),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *img.Image](capacity))
	}
	c := &Cache{items: ttlcache.New(opts...)}

	c.items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *img.Image]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			logging.Sub("cache").Debug("evicted", "path", item.Key())
		}
	})
	return c
}

// Insert stores im under im.Path and reports whether an entry was replaced.
func (c *Cache) Insert(im *img.Image) bool {
	replaced := c.items.Has(im.Path)
	c.items.Set(im.Path, im, ttlcache.NoTTL)
	metrics.SetCacheEntries(c.items.Len())
	return replaced
}

func (c *Cache) Get(path string) (*img.Image, bool) {
	item := c.items.Get(path)
	metrics.RecordCacheLookup(item != nil)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Remove reports whether path was present.
func (c *Cache) Remove(path string) bool {
	if !c.items.Has(path) {
		return false
	}
	c.items.Delete(path)
	metrics.SetCacheEntries(c.items.Len())
	return true
}

func (c *Cache) Contains(path string) bool {
	return c.items.Has(path)
}

// TrimTo drops every entry whose path is not in keep.
func (c *Cache) TrimTo(keep []string) {
	for _, path := range lo.Without(c.items.Keys(), keep...) {
		c.items.Delete(path)
	}
	metrics.SetCacheEntries(c.items.Len())
}

func (c *Cache) Clear() {
	c.items.DeleteAll()
	metrics.SetCacheEntries(0)
}

func (c *Cache) Len() int {
	return c.items.Len()
}

// Paths lists the cached paths in no particular order.
func (c *Cache) Paths() []string {
	return c.items.Keys()
}
