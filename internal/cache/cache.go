// Package cache is a TTL cache with explicit invalidation. A key being written
// through BeginWrite reads as a miss until the write commits, which makes the
// cache the serialisation point for per-key mutations.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now          func() time.Time
	fetchTimeout time.Duration
}

// DefaultFetchTimeout bounds a shared GetOrFetch call.
const DefaultFetchTimeout = 30 * time.Second

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFetchTimeout bounds the fetch shared by concurrent GetOrFetch callers.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// Cache maps string keys to values of type V for at most ttl.
type Cache[V any] struct {
	ttl          time.Duration
	now          func() time.Time
	fetchTimeout time.Duration

	mu      sync.Mutex
	entries map[string]entry[V]
	writing map[string]chan struct{}
	epoch   uint64

	// versions and fetching only hold keys with a fetch in flight.
	versions map[string]uint64
	fetching map[string]int

	group singleflight.Group
}

// New creates a cache whose entries expire ttl after they were put. A
// non-positive ttl disables caching: every Get misses.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now, fetchTimeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[V]{
		ttl:          ttl,
		now:          o.now,
		fetchTimeout: o.fetchTimeout,
		entries:      make(map[string]entry[V]),
		writing:      make(map[string]chan struct{}),
		versions:     make(map[string]uint64),
		fetching:     make(map[string]int),
	}
}

// TTL returns the configured time to live.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key when it is younger than the TTL, was not
// invalidated, and no write for key is pending.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	var zero V
	if _, pending := c.writing[key]; pending {
		return zero, false
	}

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.ttl <= 0 || c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}

	return e.value, true
}

// Put stores value under key. A Put racing a pending write is dropped; the
// writer's Commit is authoritative.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, pending := c.writing[key]; pending {
		return
	}
	c.putLocked(key, value)
}

func (c *Cache[V]) putLocked(key string, value V) {
	c.bumpLocked(key)
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// bumpLocked marks key as changed for the fetches in flight.
func (c *Cache[V]) bumpLocked(key string) {
	if c.fetching[key] > 0 {
		c.versions[key]++
	}
}

// Invalidate drops key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bumpLocked(key)
	delete(c.entries, key)
}

// InvalidateAll drops every entry. Pending writes keep their slots.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.entries = make(map[string]entry[V])
}

// GetOrFetch returns the cached value or calls fetch once for all concurrent
// callers of the same key and caches its result. A result fetched while the
// key was invalidated or written is returned but not cached.
//
// The shared fetch is detached from the cancellation of the caller that
// started it and bounded by the fetch timeout instead. A cancelled caller
// returns its context error without waiting; the others keep waiting.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	var zero V

	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.fetching[key]++
	version, epoch := c.versions[key], c.epoch
	c.mu.Unlock()

	flightKey := fmt.Sprintf("%s\x00%d\x00%d", key, version, epoch)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return v, err
		}

		c.mu.Lock()
		_, pending := c.writing[key]
		if !pending && c.versions[key] == version && c.epoch == epoch {
			c.putLocked(key, v)
		}
		c.mu.Unlock()

		return v, nil
	})

	select {
	case <-ctx.Done():
		// The version must outlive the flight, not this caller.
		go func() {
			<-ch
			c.doneFetching(key)
		}()
		return zero, ctx.Err()
	case res := <-ch:
		c.doneFetching(key)
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// doneFetching forgets the version of key once no caller waits for a fetch of it.
func (c *Cache[V]) doneFetching(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetching[key]--; c.fetching[key] <= 0 {
		delete(c.fetching, key)
		delete(c.versions, key)
	}
}

// Write is an exclusive, pending mutation of one key.
type Write[V any] struct {
	cache *Cache[V]
	key   string
	done  chan struct{}
	once  sync.Once
}

// BeginWrite waits for any other write on key, then invalidates key and marks
// it pending. Reads miss until Commit or Abort. Exactly one of them must be
// called.
func (c *Cache[V]) BeginWrite(ctx context.Context, key string) (*Write[V], error) {
	for {
		c.mu.Lock()
		busy, pending := c.writing[key]
		if !pending {
			done := make(chan struct{})
			c.writing[key] = done
			c.bumpLocked(key)
			delete(c.entries, key)
			c.mu.Unlock()

			return &Write[V]{cache: c, key: key, done: done}, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-busy:
		}
	}
}

// Commit stores value and releases the key in one step.
func (w *Write[V]) Commit(value V) {
	w.release(func(c *Cache[V]) { c.putLocked(w.key, value) })
}

// Abort releases the key leaving it invalidated.
func (w *Write[V]) Abort() {
	w.release(func(c *Cache[V]) { c.bumpLocked(w.key) })
}

func (w *Write[V]) release(apply func(*Cache[V])) {
	w.once.Do(func() {
		c := w.cache
		c.mu.Lock()
		apply(c)
		delete(c.writing, w.key)
		close(w.done)
		c.mu.Unlock()
	})
}
