// Package query provides a keyed request cache with freshness windows,
// polling watches, prefix invalidation, and mutations with callbacks. It sits
// between the sync layer and the evaluation service client.
package query

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query as a tuple of string parts, for example
// ["evaluations", "report", "<task-id>"].
type Key []string

// String joins the key parts with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether the leading parts of k equal prefix, element
// by element. ["a","b1"] does not have prefix ["a","b"].
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Fetcher loads the data for one key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	invalidated bool
}

type watcher struct {
	key  Key
	wake chan struct{}
}

// Cache stores query results by key. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	watchers map[int]*watcher
	nextID   int
	group    singleflight.Group
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]*entry),
		watchers: make(map[int]*watcher),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the cached data for key when it is younger than staleTime
// and has not been invalidated. Otherwise it runs fn, sharing one in-flight
// call among concurrent callers for the same key.
func (c *Cache) Fetch(ctx context.Context, key Key, staleTime time.Duration, fn Fetcher) (any, error) {
	if data, ok := c.fresh(key, staleTime); ok {
		return data, nil
	}
	return c.load(ctx, key, fn)
}

// FetchAs is Fetch with a typed fetcher.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, staleTime time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, staleTime, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// Refetch runs fn regardless of freshness.
func (c *Cache) Refetch(ctx context.Context, key Key, fn Fetcher) (any, error) {
	return c.load(ctx, key, fn)
}

func (c *Cache) fresh(key Key, staleTime time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData || e.invalidated || e.err != nil {
		return nil, false
	}
	if c.now().Sub(e.updatedAt) >= staleTime {
		return nil, false
	}
	return e.data, true
}

// load runs fn once for all concurrent callers of key. The shared call is
// detached from the starting caller's cancellation, so a caller that joins
// it is not failed by someone else giving up; each caller stops waiting when
// its own ctx ends.
func (c *Cache) load(ctx context.Context, key Key, fn Fetcher) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		data, err := fn(shared)
		c.store(key, data, err)
		return data, err
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) store(key Key, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[k] = e
	}
	e.err = err
	if err != nil {
		return
	}
	e.data = data
	e.hasData = true
	e.updatedAt = c.now()
	e.invalidated = false
}

// Get returns the last successful result for key, fresh or not.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Set stores data for key as if it had just been fetched.
func (c *Cache) Set(key Key, data any) {
	c.store(key, data, nil)
}

// IsStale reports whether key has no data, has been invalidated, or is
// older than staleTime.
func (c *Cache) IsStale(key Key, staleTime time.Duration) bool {
	_, ok := c.fresh(key, staleTime)
	return !ok
}

// Invalidate marks every entry whose key has the given prefix as stale and
// wakes every watch on a matching key. It returns the touched keys in
// lexical order.
func (c *Cache) Invalidate(prefix Key) []Key {
	c.mu.Lock()
	touched := make(map[string]Key)
	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.invalidated = true
			touched[k] = e.key
		}
	}
	var wake []chan struct{}
	for _, w := range c.watchers {
		if w.key.HasPrefix(prefix) {
			touched[w.key.String()] = w.key
			wake = append(wake, w.wake)
		}
	}
	c.mu.Unlock()

	for _, ch := range wake {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	names := make([]string, 0, len(touched))
	for k := range touched {
		names = append(names, k)
	}
	sort.Strings(names)
	keys := make([]Key, len(names))
	for i, n := range names {
		keys[i] = touched[n]
	}
	return keys
}

// WatchOptions configures a polling watch.
type WatchOptions struct {
	// StaleTime is the freshness window for the first load.
	StaleTime time.Duration
	// RefetchInterval is the polling period. Zero disables polling; the
	// watch then reloads only on invalidation.
	RefetchInterval time.Duration
}

// Watch loads key immediately, then again every RefetchInterval and
// whenever the key is invalidated, handing each result to onResult. It
// blocks until ctx is done. A result that arrives after ctx is done is
// dropped.
func (c *Cache) Watch(ctx context.Context, key Key, opts WatchOptions, fn Fetcher, onResult func(data any, err error)) {
	wake := c.addWatcher(key)
	defer c.removeWatcher(wake)

	var tick <-chan time.Time
	if opts.RefetchInterval > 0 {
		ticker := time.NewTicker(opts.RefetchInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	data, err := c.Fetch(ctx, key, opts.StaleTime, fn)
	for {
		if ctx.Err() != nil {
			return
		}
		onResult(data, err)

		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-wake.wake:
		}
		data, err = c.Refetch(ctx, key, fn)
	}
}

func (c *Cache) addWatcher(key Key) *watcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &watcher{key: append(Key(nil), key...), wake: make(chan struct{}, 1)}
	c.watchers[c.nextID] = w
	c.nextID++
	return w
}

func (c *Cache) removeWatcher(w *watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cur := range c.watchers {
		if cur == w {
			delete(c.watchers, id)
			return
		}
	}
}

// Mutation is a write operation with result callbacks.
type Mutation[T any] struct {
	Fn        func(ctx context.Context) (T, error)
	OnSuccess func(result T)
	OnError   func(err error)
}

// Mutate runs m.Fn and then the matching callback. The result and error are
// also returned to the caller.
func Mutate[T any](ctx context.Context, m Mutation[T]) (T, error) {
	res, err := m.Fn(ctx)
	if err != nil {
		if m.OnError != nil {
			m.OnError(err)
		}
		return res, err
	}
	if m.OnSuccess != nil {
		m.OnSuccess(res)
	}
	return res, nil
}
