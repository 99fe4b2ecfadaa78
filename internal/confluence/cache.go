package confluence

import (
	"sync"
	"time"
)

// ttlCache is a minimal expiring key/value store. Evaluation cycles for
// the same symbol can be triggered by overlapping scheduler tasks; the
// cache collapses them into one fetch-and-compute per TTL window.
type ttlCache[V any] struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]cacheEntry[V]
	now  func() time.Time
}

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

func newTTLCache[V any](ttl time.Duration, now func() time.Time) *ttlCache[V] {
	if now == nil {
		now = time.Now
	}
	return &ttlCache[V]{
		ttl:  ttl,
		data: make(map[string]cacheEntry[V]),
		now:  now,
	}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || c.now().After(e.expires) {
		delete(c.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *ttlCache[V]) set(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry[V]{value: value, expires: c.now().Add(c.ttl)}
}
