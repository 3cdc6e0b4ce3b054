// Package cache keeps recently scraped documents keyed by URL.
package cache

import (
	"context"
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
)

type entry struct {
	doc      *scrape.Document
	storedAt time.Time
}

// Cache is a TTL cache of documents. It is safe for concurrent use.
type Cache struct {
	items cmap.ConcurrentMap[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		items: cmap.New[entry](),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key derives the cache key for a URL. The full URL is the key, so distinct
// URLs never share an entry.
func Key(rawURL string) string {
	return strings.TrimSpace(rawURL)
}

// Get returns the cached document for rawURL if it is still fresh.
// Expired entries are dropped on access.
func (c *Cache) Get(rawURL string) (*scrape.Document, bool) {
	key := Key(rawURL)
	e, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.items.RemoveCb(key, func(_ string, cur entry, exists bool) bool {
			return exists && c.expired(cur)
		})
		return nil, false
	}
	return e.doc, true
}

func (c *Cache) Set(rawURL string, doc *scrape.Document) {
	c.items.Set(Key(rawURL), entry{doc: doc, storedAt: c.now()})
}

func (c *Cache) Len() int {
	return c.items.Count()
}

// Purge removes every expired entry and reports how many were removed.
func (c *Cache) Purge() int {
	removed := 0
	for item := range c.items.IterBuffered() {
		if !c.expired(item.Val) {
			continue
		}
		if c.items.RemoveCb(item.Key, func(_ string, cur entry, exists bool) bool {
			return exists && c.expired(cur)
		}) {
			removed++
		}
	}
	return removed
}

// Run purges expired entries every interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				logger.Debug().Int("removed", n).Int("remaining", c.Len()).Msg("Purged expired cache entries")
			}
		}
	}
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}
