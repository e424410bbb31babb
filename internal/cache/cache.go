// Package cache provides the short-lived read cache of the portal façade.
// Entries are keyed by entity type plus query parameters and indexed by
// entity so a write can drop every cached query shape it affects.
package cache

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached query result stays fresh.
const DefaultTTL = 30 * time.Second

// Key identifies one cached query shape, e.g. projects for user X as client.
type Key struct {
	Entity string
	Params map[string]string
}

// NewKey builds a key from alternating name/value pairs.
func NewKey(entity string, kv ...string) Key {
	k := Key{Entity: entity}
	if len(kv) > 0 {
		k.Params = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			k.Params[kv[i]] = kv[i+1]
		}
	}
	return k
}

// String returns the canonical form of the key. Parameter order does not
// matter; names and values are query-escaped so no value can forge a separator.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Entity
	}
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Entity)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(k.Params[name]))
	}
	return b.String()
}

// matches reports whether every pair in subset is present in the key params.
func (k Key) matches(subset map[string]string) bool {
	for name, value := range subset {
		if k.Params[name] != value {
			return false
		}
	}
	return true
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	key        Key
	value      interface{}
	expiration time.Time
}

// Options configures a TTLCache.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration // zero disables the background sweep
	Now             func() time.Time
	Metrics         *Metrics
}

// TTLCache is an in-memory cache with per-entity tag index invalidation.
type TTLCache struct {
	data    map[string]*cacheEntry
	byTag   map[string]map[string]struct{}
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics
	mu      sync.RWMutex

	hits   int64
	misses int64

	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once
}

// New creates a cache. It starts a cleanup goroutine when
// opts.CleanupInterval is positive; call Stop to release it.
func New(opts Options) *TTLCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &TTLCache{
		data:    make(map[string]*cacheEntry),
		byTag:   make(map[string]map[string]struct{}),
		ttl:     opts.TTL,
		now:     opts.Now,
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.cleanup = time.NewTicker(opts.CleanupInterval)
		go c.cleanupLoop()
	}
	return c
}

// Get retrieves a live value. Expired entries are treated as absent.
func (c *TTLCache) Get(key Key) (interface{}, bool) {
	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[id]
	if ok && c.now().After(entry.expiration) {
		c.removeLocked(id)
		ok = false
	}
	if !ok {
		c.misses++
		c.metrics.miss(key.Entity)
		return nil, false
	}

	c.hits++
	c.metrics.hit(key.Entity)
	return entry.value, true
}

// Set stores a value stamped with the current time.
func (c *TTLCache) Set(key Key, value interface{}) {
	id := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[id] = &cacheEntry{
		key:        key,
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
	tagged, ok := c.byTag[key.Entity]
	if !ok {
		tagged = make(map[string]struct{})
		c.byTag[key.Entity] = tagged
	}
	tagged[id] = struct{}{}
}

// Invalidate removes every entry of the entity whose parameters contain all
// pairs of subset. A nil or empty subset drops the whole entity family.
// It returns the number of entries removed.
func (c *TTLCache) Invalidate(entity string, subset map[string]string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id := range c.byTag[entity] {
		entry, ok := c.data[id]
		if !ok || !entry.key.matches(subset) {
			continue
		}
		c.removeLocked(id)
		removed++
	}
	c.metrics.invalidated(entity, removed)
	return removed
}

// Size returns the number of stored entries, including expired ones not yet swept.
func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// Stats returns cache statistics
type Stats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// GetStats returns cache statistics
func (c *TTLCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:    len(c.data),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// Stop stops the cleanup goroutine
func (c *TTLCache) Stop() {
	c.stop.Do(func() {
		if c.cleanup != nil {
			c.cleanup.Stop()
		}
		close(c.done)
	})
}

// cleanupLoop periodically removes expired entries
func (c *TTLCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.data {
		if now.After(entry.expiration) {
			c.removeLocked(id)
		}
	}
}

func (c *TTLCache) removeLocked(id string) {
	entry, ok := c.data[id]
	if !ok {
		return
	}
	delete(c.data, id)
	if tagged := c.byTag[entry.key.Entity]; tagged != nil {
		delete(tagged, id)
		if len(tagged) == 0 {
			delete(c.byTag, entry.key.Entity)
		}
	}
}
