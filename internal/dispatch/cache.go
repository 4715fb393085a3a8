package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"searchrelay/pkg/catalog"
)

// Cache reuses built handler sets across requests so repeated calls for the
// same endpoint skip factory work and keep provider-internal token caches
// warm. Entries are keyed by endpoint and guarded by a credential
// fingerprint: any change to the bound sources produces a different
// fingerprint and forces a rebuild, so stale credentials never route.
type Cache struct {
	mu         sync.Mutex
	byEndpoint map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
}

type cacheEntry struct {
	providers   []Provider
	fingerprint string
	loadedAt    time.Time
}

func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{byEndpoint: map[string]cacheEntry{}, ttl: ttl, maxEntries: maxEntries}
}

// Get returns the cached handler set when it is fresh and the fingerprint
// still matches.
func (c *Cache) Get(endpoint, fingerprint string) ([]Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byEndpoint[endpoint]
	if !ok || e.fingerprint != fingerprint || time.Since(e.loadedAt) > c.ttl {
		return nil, false
	}
	return e.providers, true
}

func (c *Cache) Put(endpoint, fingerprint string, providers []Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byEndpoint) >= c.maxEntries {
		c.evictLocked()
	}
	c.byEndpoint[endpoint] = cacheEntry{providers: providers, fingerprint: fingerprint, loadedAt: time.Now()}
}

// Invalidate drops the entry for an endpoint, e.g. after an admin update.
func (c *Cache) Invalidate(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byEndpoint, endpoint)
}

// evictLocked removes expired entries, falling back to the oldest one when
// everything is still fresh. Caller holds the lock.
func (c *Cache) evictLocked() {
	oldest, oldestAt := "", time.Now()
	for k, e := range c.byEndpoint {
		if time.Since(e.loadedAt) > c.ttl {
			delete(c.byEndpoint, k)
			continue
		}
		if e.loadedAt.Before(oldestAt) {
			oldest, oldestAt = k, e.loadedAt
		}
	}
	if len(c.byEndpoint) >= c.maxEntries && oldest != "" {
		delete(c.byEndpoint, oldest)
	}
}

// Fingerprint hashes the identity and credential bundle of every source so
// credential rotation or rebinding invalidates cached handlers.
func Fingerprint(sources []catalog.Source) string {
	h := sha256.New()
	for _, src := range sources {
		h.Write([]byte(src.ID))
		h.Write([]byte{0})
		h.Write([]byte(src.Kind))
		h.Write([]byte{0})
		keys := make([]string, 0, len(src.Metadata))
		for k := range src.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			h.Write([]byte(src.Metadata[k]))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
