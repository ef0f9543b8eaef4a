package data

import (
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/lms-session/internal/domain/auth"
)

// SessionCacheKeyPrefix prefixes every session cache key.
const SessionCacheKeyPrefix = "user_session_"

// DefaultSessionCacheTTL bounds how long a projected session view is served from memory.
const DefaultSessionCacheTTL = 5 * time.Minute

// SessionCacheKey returns the cache key for a session view derived from accessToken.
// A rotated access token yields a new key, so stale views age out instead of being served.
func SessionCacheKey(accessToken string) string {
	return SessionCacheKeyPrefix + accessToken
}

// SessionCacheOptions configures a SessionCache.
type SessionCacheOptions struct {
	TTL          time.Duration
	MaxEntries   int // 0 means unbounded
	TimeProvider TimeProvider
}

// SessionCacheStats is a snapshot of cache counters.
type SessionCacheStats struct {
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Size      int
	TTL       time.Duration
}

type sessionCacheEntry struct {
	view     domainauth.SessionView
	cachedAt time.Time
}

// SessionCache is an in-process TTL cache of projected session views.
// Expired entries are treated as absent on read and removed by Sweep.
type SessionCache struct {
	mu         sync.RWMutex
	entries    map[string]sessionCacheEntry
	ttl        time.Duration
	maxEntries int
	clock      TimeProvider

	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	evictions atomic.Int64
}

// NewSessionCache creates an empty cache.
func NewSessionCache(opts SessionCacheOptions) *SessionCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionCacheTTL
	}
	maxEntries := opts.MaxEntries
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &SessionCache{
		entries:    make(map[string]sessionCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      DefaultTimeProvider(opts.TimeProvider),
	}
}

// Get returns the view cached under key if it is younger than the TTL.
func (c *SessionCache) Get(key string) (domainauth.SessionView, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.fresh(entry, now) {
		c.misses.Add(1)
		return domainauth.SessionView{}, false
	}
	c.hits.Add(1)
	return entry.view.Clone(), true
}

// Put stores view under key, replacing any previous entry.
func (c *SessionCache) Put(key string, view domainauth.SessionView) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = sessionCacheEntry{view: view.Clone(), cachedAt: now}
	c.puts.Add(1)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *SessionCache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !c.fresh(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Reset drops every entry and zeroes the counters.
func (c *SessionCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]sessionCacheEntry)
	c.mu.Unlock()

	c.hits.Store(0)
	c.misses.Store(0)
	c.puts.Store(0)
	c.evictions.Store(0)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *SessionCache) TTL() time.Duration { return c.ttl }

// Stats returns a snapshot of the cache counters.
func (c *SessionCache) Stats() SessionCacheStats {
	return SessionCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}

func (c *SessionCache) fresh(e sessionCacheEntry, now time.Time) bool {
	return now.Sub(e.cachedAt) < c.ttl
}

func (c *SessionCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.cachedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}
