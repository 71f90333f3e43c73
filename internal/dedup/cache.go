// Package dedup suppresses identical (address, payload) submissions within a
// rolling block interval.
package dedup

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultBlockInterval covers one full slot cycle of a DAPNET transmitter.
const DefaultBlockInterval = 103 * time.Second

// Cache records the last accepted send per (address, payload).
type Cache struct {
	// mu makes Accept's lookup-and-refresh atomic; the store itself is already safe.
	mu    sync.Mutex
	store *gocache.Cache
	block time.Duration
	now   func() time.Time
}

// New returns a cache with the given block interval. Expiry is evaluated
// against entry timestamps, never by go-cache's janitor.
func New(block time.Duration) *Cache {
	return NewWithClock(block, time.Now)
}

func NewWithClock(block time.Duration, now func() time.Time) *Cache {
	if block <= 0 {
		block = DefaultBlockInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		store: gocache.New(gocache.NoExpiration, 0),
		block: block,
		now:   now,
	}
}

func key(address uint32, payload string) string {
	return fmt.Sprintf("%07d:%s", address, payload)
}

// Accept reports whether payload may be sent to address now. An accepted
// send refreshes the entry timestamp; a suppressed one does not.
func (c *Cache) Accept(address uint32, payload string) bool {
	now := c.now()
	k := key(address, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.store.Get(k); ok {
		if ts, ok := v.(time.Time); ok && now.Before(ts.Add(c.block)) {
			return false
		}
	}
	c.store.Set(k, now, gocache.NoExpiration)
	return true
}

// Sweep removes every entry whose timestamp plus block interval is at or
// before now and returns the number removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, item := range c.store.Items() {
		ts, ok := item.Object.(time.Time)
		if !ok || !now.Before(ts.Add(c.block)) {
			c.store.Delete(k)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	return c.store.ItemCount()
}

func (c *Cache) BlockInterval() time.Duration {
	return c.block
}
