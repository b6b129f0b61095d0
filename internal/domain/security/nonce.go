package security

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// nonceWindow is how long a consumed nonce remains in the cache before a
// sweep may evict it.
const nonceWindow = 10 * time.Minute

// NonceCache tracks consumed nonces so a replayed signed payload is
// rejected even if its signature and timestamp are otherwise valid. Keys
// are the xxhash of the nonce string rather than the string itself -- a
// fast, fixed-size map key for a cache that sees one entry per inbound
// approval response, not a cryptographic use of xxhash (the security
// boundary is the HMAC/AES layer above, not this cache key).
type NonceCache struct {
	mu       sync.Mutex
	consumed map[uint64]time.Time
}

// NewNonceCache builds an empty NonceCache.
func NewNonceCache() *NonceCache {
	return &NonceCache{consumed: make(map[uint64]time.Time)}
}

func nonceKey(nonce string) uint64 {
	return xxhash.Sum64String(nonce)
}

// CheckAndRecord reports whether nonce was already present; if not, it
// records it with arrivedAt and returns false (not a duplicate). Call
// sites treat a true return as ErrDuplicateNonce.
func (c *NonceCache) CheckAndRecord(nonce string, arrivedAt time.Time) (duplicate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := nonceKey(nonce)
	if _, ok := c.consumed[key]; ok {
		return true
	}
	c.consumed[key] = arrivedAt
	return false
}

// Sweep removes entries older than nonceWindow relative to now, returning
// the number of entries removed.
func (c *NonceCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, t := range c.consumed {
		if now.Sub(t) > nonceWindow {
			delete(c.consumed, k)
			removed++
		}
	}
	return removed
}

// Size returns the current entry count, for metrics.
func (c *NonceCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.consumed)
}
