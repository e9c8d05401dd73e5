package crmclient

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the current value for one cache key.
type FetchFunc func(ctx context.Context) (any, error)

type cacheEntry struct {
	value      any
	fetchedAt  time.Time
	generation uint64
}

// Cache keeps one value per key with stale-while-revalidate semantics.
//
// A present value is always returned without blocking: an entry past its TTL
// is served as-is while a background refresh replaces it. Every key carries
// a generation counter. Invalidate bumps the generation, which makes the
// cached value and any in-flight fetch stale at once: a response resolved
// against an old generation is discarded, never stored. Concurrent readers
// of the same key and generation share a single fetch.
type Cache struct {
	ttl time.Duration

	mu          sync.Mutex
	entries     map[string]*cacheEntry
	generations map[string]uint64
	fetchers    map[string]FetchFunc
	observers   map[string][]chan struct{}
	refreshing  map[string]bool

	group singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:         ttl,
		entries:     make(map[string]*cacheEntry),
		generations: make(map[string]uint64),
		fetchers:    make(map[string]FetchFunc),
		observers:   make(map[string][]chan struct{}),
		refreshing:  make(map[string]bool),
	}
}

// Get returns the cached value for key, fetching it only when absent. An
// entry older than the TTL is still returned immediately; a background
// refresh brings it up to date. The fetch function is remembered so
// Invalidate can refetch later. If the key is invalidated while a fetch is
// in flight, that response is discarded and Get fetches again at the new
// generation.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	c.fetchers[key] = fetch
	c.mu.Unlock()

	for {
		c.mu.Lock()
		generation := c.generations[key]
		if entry, ok := c.entries[key]; ok && entry.generation == generation {
			value := entry.value
			expired := time.Since(entry.fetchedAt) >= c.ttl
			c.mu.Unlock()
			if expired {
				c.revalidate(key, generation, fetch)
			}
			return value, nil
		}
		c.mu.Unlock()

		value, err, _ := c.group.Do(flightKey(key, generation), func() (any, error) {
			return fetch(ctx)
		})
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generations[key] != generation {
			// Invalidated mid-flight. The response describes a world that
			// no longer exists; go around again.
			c.mu.Unlock()
			continue
		}
		c.entries[key] = &cacheEntry{value: value, fetchedAt: time.Now(), generation: generation}
		c.mu.Unlock()
		return value, nil
	}
}

// revalidate refreshes an expired entry off the request path. At most one
// refresh per key runs at a time; a response resolved after the key was
// invalidated is discarded. Observers are notified either way so they can
// re-read.
func (c *Cache) revalidate(key string, generation uint64, fetch FetchFunc) {
	c.mu.Lock()
	if c.refreshing[key] {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		value, err, _ := c.group.Do(flightKey(key, generation), func() (any, error) {
			return fetch(ctx)
		})
		if err != nil {
			log.Printf("crmclient: background refresh of %s failed: %v", key, err)
			c.notify(key)
			return
		}

		c.mu.Lock()
		if c.generations[key] == generation {
			c.entries[key] = &cacheEntry{value: value, fetchedAt: time.Now(), generation: generation}
		}
		c.mu.Unlock()
		c.notify(key)
	}()
}

// Peek returns the cached value without fetching or freshness checks.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || entry.generation != c.generations[key] {
		return nil, false
	}
	return entry.value, true
}

// Invalidate marks a key stale and refetches it in the background when a
// fetcher is known. Observers are notified once the refetch resolves, not
// when the invalidation happens, so they always read the new value. A
// failed refetch is logged and still notifies, so observers re-read and
// see the failure themselves instead of waiting forever.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	c.generations[key]++
	fetch := c.fetchers[key]
	c.mu.Unlock()

	if fetch == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.Get(ctx, key, fetch); err != nil {
			log.Printf("crmclient: refetch of %s after invalidation failed: %v", key, err)
		}
		c.notify(key)
	}()
}

// Subscribe registers an observer for refetch completions on key. The
// returned function removes the subscription.
func (c *Cache) Subscribe(key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.observers[key] = append(c.observers[key], ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.observers[key]
		for i, sub := range subs {
			if sub == ch {
				c.observers[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (c *Cache) notify(key string) {
	c.mu.Lock()
	subs := append([]chan struct{}(nil), c.observers[key]...)
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func flightKey(key string, generation uint64) string {
	return key + "@" + strconv.FormatUint(generation, 10)
}
