package adsb

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Maximum number of cached addresses. When full, the least recently used
// entry is evicted; entries older than the TTL are removed by Known and Prune.
const icaoCacheSize = 16384

// IcaoCache remembers addresses confirmed through CRC-clean DF11/17/18
// frames. Address/parity recovery on short surveillance frames is only
// trusted when the recovered address is present here: CRC residuals of
// noise frames otherwise masquerade as real aircraft.
type IcaoCache struct {
	ttl     time.Duration
	entries *lru.Cache[IcaoAddress, time.Time]
}

// NewIcaoCache creates a cache whose entries expire ttl after the last
// confirming frame.
func NewIcaoCache(ttl time.Duration) *IcaoCache {
	entries, _ := lru.New[IcaoAddress, time.Time](icaoCacheSize)
	return &IcaoCache{ttl: ttl, entries: entries}
}

// Register records a validated address at the given capture time.
func (c *IcaoCache) Register(addr IcaoAddress, ts time.Time) {
	c.entries.Add(addr, ts)
}

// Known reports whether addr was confirmed within the TTL window before ts.
// Expired entries are dropped on lookup.
func (c *IcaoCache) Known(addr IcaoAddress, ts time.Time) bool {
	last, ok := c.entries.Get(addr)
	if !ok {
		return false
	}
	if ts.Sub(last) > c.ttl {
		c.entries.Remove(addr)
		return false
	}
	return true
}

// Prune drops every entry older than the TTL relative to now.
func (c *IcaoCache) Prune(now time.Time) int {
	removed := 0
	for _, addr := range c.entries.Keys() {
		if last, ok := c.entries.Peek(addr); ok && now.Sub(last) > c.ttl {
			c.entries.Remove(addr)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached addresses.
func (c *IcaoCache) Len() int {
	return c.entries.Len()
}
