// Package cache holds normalized series in memory for a bounded time.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketfeed/internal/market"
)

// DefaultTTL matches the freshness most callers expect from intraday data.
const DefaultTTL = 300 * time.Second

// DefaultLoadTimeout bounds a shared load once it is detached from the
// caller that started it.
const DefaultLoadTimeout = 2 * time.Minute

// Key identifies one cached series.
type Key struct {
	Symbol   string
	Interval market.Interval
	Source   market.Source
}

// KeyOf derives the cache key of a request. Limit is not part of the key.
func KeyOf(req market.Request) Key {
	return Key{Symbol: strings.TrimSpace(req.Symbol), Interval: req.Interval, Source: req.Source}
}

func (k Key) String() string { return fmt.Sprintf("%s|%s|%s", k.Symbol, k.Interval, k.Source) }

type entry struct {
	series    market.Series
	fetchedAt time.Time
	ttl       time.Duration
}

func (e entry) valid(now time.Time) bool { return now.Sub(e.fetchedAt) < e.ttl }

// Cache maps keys to series with a per-entry TTL. Expired entries are
// never returned and are dropped on access or by Sweep.
type Cache struct {
	ttl         time.Duration
	loadTimeout time.Duration
	maxItems    int
	now         func() time.Time

	mu    sync.RWMutex
	items map[Key]entry

	flight   singleflight.Group
	flightMu sync.Mutex
	loads    map[string]*sharedLoad
}

// sharedLoad is the context of one in-flight load and the number of
// callers still waiting for it.
type sharedLoad struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Option func(*Cache)

// WithTTL sets the TTL used when Put is called with ttl <= 0.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLoadTimeout bounds every shared load started by GetOrLoad.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithMaxItems caps the number of entries. Zero means unbounded.
func WithMaxItems(n int) Option {
	return func(c *Cache) { c.maxItems = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:         DefaultTTL,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		items:       make(map[Key]entry),
		loads:       make(map[string]*sharedLoad),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the series stored under key if it has not expired.
func (c *Cache) Get(key Key) (market.Series, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return market.Series{}, false
	}
	if e.valid(now) {
		return e.series, true
	}

	c.mu.Lock()
	if cur, ok := c.items[key]; ok && cur.fetchedAt.Equal(e.fetchedAt) {
		delete(c.items, key)
	}
	c.mu.Unlock()
	return market.Series{}, false
}

// Put replaces the entry for key as one unit. ttl <= 0 selects the default.
func (c *Cache) Put(key Key, s market.Series, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	c.mu.Lock()
	c.items[key] = entry{series: s, fetchedAt: now, ttl: ttl}
	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictLocked(now)
	}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.items = make(map[Key]entry)
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if !e.valid(now) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Len counts stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictLocked drops expired entries first, then the oldest until the cap holds.
func (c *Cache) evictLocked(now time.Time) {
	for k, e := range c.items {
		if !e.valid(now) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.maxItems {
		var oldest Key
		var oldestAt time.Time
		first := true
		for k, e := range c.items {
			if first || e.fetchedAt.Before(oldestAt) {
				oldest, oldestAt, first = k, e.fetchedAt, false
			}
		}
		delete(c.items, oldest)
	}
}

// GetOrLoad returns the cached series for key or runs load once for all
// concurrent callers missing the same key. The load keeps the values of the
// caller that started it but not its cancellation: it is cancelled only
// when every waiting caller has left, or after the load timeout. hit
// reports whether the value came from the cache.
func (c *Cache) GetOrLoad(ctx context.Context, key Key, ttl time.Duration, load func(context.Context) (market.Series, error)) (s market.Series, hit bool, err error) {
	if s, ok := c.Get(key); ok {
		return s, true, nil
	}

	name := key.String()
	sl := c.join(ctx, name)
	defer c.leave(name, sl)

	ch := c.flight.DoChan(name, func() (any, error) {
		defer c.finish(name, sl)
		if s, ok := c.Get(key); ok {
			return s, nil
		}
		s, err := load(sl.ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, s, ttl)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return market.Series{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return market.Series{}, false, res.Err
		}
		return res.Val.(market.Series), false, nil
	}
}

func (c *Cache) join(ctx context.Context, name string) *sharedLoad {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	sl, ok := c.loads[name]
	if !ok {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		sl = &sharedLoad{ctx: lctx, cancel: cancel}
		c.loads[name] = sl
	}
	sl.waiters++
	return sl
}

// leave drops one waiter. The last one out cancels the load and makes
// later callers start a fresh one instead of joining a cancelled call.
func (c *Cache) leave(name string, sl *sharedLoad) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	sl.waiters--
	if sl.waiters > 0 {
		return
	}
	sl.cancel()
	if c.loads[name] == sl {
		delete(c.loads, name)
		c.flight.Forget(name)
	}
}

func (c *Cache) finish(name string, sl *sharedLoad) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if c.loads[name] == sl {
		delete(c.loads, name)
	}
	sl.cancel()
}
