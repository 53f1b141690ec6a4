// Package cache is a keyed, time-stamped store of fetched lists that
// supports optimistic mutation with rollback.
package cache

import (
	"slices"
	"sync"
	"time"
)

// Option configures a Cache
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type entry[T any] struct {
	data      []T
	fetchedAt time.Time // zero when invalidated
	version   uint64
	epoch     uint64 // bumped by Reset

	pending   int       // optimistic mutations not yet committed or rolled back
	mutatedAt time.Time // start of the most recent optimistic mutation
}

// Cache holds one list per key. All methods are safe for concurrent use
// and hand out copies, never the stored slice.
type Cache[T any] struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*entry[T]
}

// New creates an empty cache
func New[T any](opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{now: o.now, entries: make(map[string]*entry[T])}
}

// Now returns the cache clock's current time. Fetchers stamp their start with it.
func (c *Cache[T]) Now() time.Time {
	return c.now()
}

// Read returns the cached list and its age. ok is false when nothing is cached.
func (c *Cache[T]) Read(key string) (data []T, age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return nil, 0, false
	}
	if e.fetchedAt.IsZero() {
		age = -1
	} else {
		age = c.now().Sub(e.fetchedAt)
	}
	return slices.Clone(e.data), age, true
}

// Fresh reports whether key holds data fetched less than ttl ago
func (c *Cache[T]) Fresh(key string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.fetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(e.fetchedAt) < ttl
}

// Write replaces the entry and stamps it as fetched now
func (c *Cache[T]) Write(key string, data []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.data = slices.Clone(data)
	e.fetchedAt = c.now()
	e.version++
}

// WriteFetched stores data fetched at fetchStart unless an optimistic
// mutation is pending on key or was applied after fetchStart. It reports
// whether the write happened.
func (c *Cache[T]) WriteFetched(key string, data []T, fetchStart time.Time) bool {
	return c.UpdateFetched(key, fetchStart, func([]T) []T { return data })
}

// UpdateFetched is WriteFetched with the new list computed from the current one
func (c *Cache[T]) UpdateFetched(key string, fetchStart time.Time, fn func([]T) []T) bool {
	return c.guarded(key, fetchStart, fn, true)
}

// UpdateSince applies fn under the same guard as UpdateFetched but keeps
// the entry's fetch time, for fetches that cover only part of the list.
func (c *Cache[T]) UpdateSince(key string, fetchStart time.Time, fn func([]T) []T) bool {
	return c.guarded(key, fetchStart, fn, false)
}

func (c *Cache[T]) guarded(key string, fetchStart time.Time, fn func([]T) []T, stamp bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	if e.pending > 0 || e.mutatedAt.After(fetchStart) {
		return false
	}
	e.data = slices.Clone(fn(slices.Clone(e.data)))
	if stamp {
		e.fetchedAt = c.now()
	}
	e.version++
	return true
}

// Update applies fn to the current list without touching its fetch time
func (c *Cache[T]) Update(key string, fn func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.data = slices.Clone(fn(slices.Clone(e.data)))
	e.version++
}

// Invalidate marks key stale. The data is dropped unless a mutation is
// still pending on it.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return
	}
	if e.pending > 0 {
		e.fetchedAt = time.Time{}
		return
	}
	delete(c.entries, key)
}

// Reset empties key's list even while a mutation is pending. The pending
// count survives; rolling back an earlier mutation leaves the new list alone.
func (c *Cache[T]) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return
	}
	if e.pending == 0 {
		delete(c.entries, key)
		return
	}
	e.data = nil
	e.fetchedAt = time.Time{}
	e.version++
	e.epoch++
}

// InvalidateAll drops every entry, used on logout
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.pending > 0 {
			e.fetchedAt = time.Time{}
			continue
		}
		delete(c.entries, key)
	}
}

// Pending reports the number of unresolved optimistic mutations on key
func (c *Cache[T]) Pending(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.pending
	}
	return 0
}

// caller holds c.mu
func (c *Cache[T]) entry(key string) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	return e
}
