// Copyright Observek, Inc.
// SPDX-License-Identifier: Apache-2.0

package decisioncache // import "github.com/observek/opentelemetry-collector-components/processor/urlfilterprocessor/internal/decisioncache"

import (
	"encoding/binary"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/collector/pdata/pcommon"
)

// lruDecisionCache implements Cache as an LRU of decision timestamps.
// Entries expire lazily on read, so no background sweeper is needed. The
// mutex keeps the expired check-then-remove in Get atomic against a
// concurrent Put refreshing the same id.
type lruDecisionCache struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, time.Time]
	ttl   time.Duration
	now   func() time.Time
}

var _ Cache = (*lruDecisionCache)(nil)

// NewLRUDecisionCache creates a Cache bounded to size entries, each expiring
// ttl after insertion. A ttl of zero means entries never expire.
func NewLRUDecisionCache(size int, ttl time.Duration) Cache {
	// Error only possible for a non-positive size.
	cache, _ := lru.New[uint64, time.Time](size)
	return &lruDecisionCache{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *lruDecisionCache) Get(id pcommon.SpanID) bool {
	key := spanIDKey(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.cache.Get(key)
	if !ok {
		return false
	}
	if c.ttl > 0 && c.now().Sub(at) >= c.ttl {
		c.cache.Remove(key)
		return false
	}
	return true
}

func (c *lruDecisionCache) Put(id pcommon.SpanID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.cache.Add(spanIDKey(id), c.now())
}

func (c *lruDecisionCache) Delete(id pcommon.SpanID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.cache.Remove(spanIDKey(id))
}

func spanIDKey(id pcommon.SpanID) uint64 {
	return binary.LittleEndian.Uint64(id[:])
}
