package memcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twotier/kvcache/internal/lru"
	"github.com/twotier/kvcache/internal/singleflight"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in
// Options.
var ErrNoLoader = errNoLoader{}

type errNoLoader struct{}

func (errNoLoader) Error() string { return "memcache: no Loader configured" }

// Cache is a thread-safe, in-process LRU cache over typed keys and values
// with count, cost, and age limits. All methods are safe for concurrent use
// by multiple goroutines. The zero value is not usable — construct with
// New.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	list *lru.List[K, V]

	opt   Options[K, V]
	clock Clock

	closed atomic.Bool
	cancel context.CancelFunc

	release *releaseQueue[K, V]
	sf      singleflight.Group[K, V]
}

// New constructs a Cache with the provided Options. Zero-value Options
// yields an unbounded cache with default limits, a 5s auto-trim interval,
// background release, and NoopMetrics.
func New[K comparable, V any](opt Options[K, V]) *Cache[K, V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.AutoTrimInterval <= 0 {
		opt.AutoTrimInterval = 5 * time.Second
	}
	if opt.Name == "" {
		opt.Name = "memcache"
	}
	clk := opt.Clock
	if clk == nil {
		clk = realClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache[K, V]{
		list:    lru.New[K, V](),
		opt:     opt,
		clock:   clk,
		cancel:  cancel,
		release: newReleaseQueue[K, V](opt),
	}
	c.scheduleAutoTrim(ctx)
	return c
}

// Name returns the cache's diagnostic name.
func (c *Cache[K, V]) Name() string { return c.opt.Name }

// Contains reports whether key is present, without affecting its LRU
// position.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.list.Get(key)
	return ok
}

// Get returns the value for key and a presence flag. On a hit, the entry's
// time is refreshed and it is promoted to the head of the LRU list.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	n, ok := c.list.Get(key)
	if !ok {
		c.mu.Unlock()
		c.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	n.Time = c.clock.Now().UnixNano()
	c.list.BringToHead(n)
	v := n.Value
	c.mu.Unlock()
	c.opt.Metrics.Hit()
	return v, true
}

// Set inserts or updates key->value with the given cost. If the key
// already exists, its cost, time, and value are updated and totalCost is
// adjusted by the delta between the new and old cost — never by simply
// adding the new cost to the running sum, which would violate the
// invariant totalCost == sum(entry.cost). The entry is promoted to the
// head of the LRU list either way.
//
// After insertion, if totalCost exceeds CostLimit an asynchronous cost
// trim is scheduled; if totalCount exceeds CountLimit a single tail node
// is evicted synchronously and handed to the release queue.
func (c *Cache[K, V]) Set(key K, value V, cost int64) {
	if c.closed.Load() {
		return
	}
	now := c.clock.Now().UnixNano()

	c.mu.Lock()
	if n, ok := c.list.Get(key); ok {
		n.Value = value
		n.Time = now
		c.list.SetCost(n, cost)
		c.list.BringToHead(n)
	} else {
		c.list.InsertAtHead(&lru.Node[K, V]{Key: key, Value: value, Cost: cost, Time: now})
	}

	var evicted *lru.Node[K, V]
	if c.opt.CountLimit > 0 && c.list.Len() > c.opt.CountLimit {
		evicted = c.list.RemoveTail()
	}
	needCostTrim := c.opt.CostLimit > 0 && c.list.TotalCost() > c.opt.CostLimit
	entries, totalCost := c.list.Len(), c.list.TotalCost()
	c.mu.Unlock()

	c.opt.Metrics.Size(entries, totalCost)
	if evicted != nil {
		c.opt.Metrics.Evict(EvictCount)
		c.release.enqueue(evicted.Key, evicted.Value, EvictCount)
	}
	if needCostTrim {
		go c.TrimToCost(c.opt.CostLimit)
	}
}

// Remove deletes key if present and returns whether it was present. The
// removed entry is handed to the release queue; explicit removals are not
// counted as evictions in Metrics.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	n, ok := c.list.Get(key)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.list.Remove(n)
	entries, totalCost := c.list.Len(), c.list.TotalCost()
	c.mu.Unlock()

	c.opt.Metrics.Size(entries, totalCost)
	c.release.enqueue(n.Key, n.Value, EvictManual)
	return true
}

// RemoveAll clears the cache. The old entries are handed to the release
// queue so their destruction never happens under the lock.
func (c *Cache[K, V]) RemoveAll() {
	c.mu.Lock()
	old := c.list.RemoveAll()
	c.mu.Unlock()

	c.opt.Metrics.Size(0, 0)
	for _, n := range old {
		c.release.enqueue(n.Key, n.Value, EvictClear)
	}
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// TotalCost returns the sum of resident entry costs.
func (c *Cache[K, V]) TotalCost() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.TotalCost()
}

// Close stops the background trim timer and the release queue worker.
// Future operations on a closed cache are no-ops. Close is idempotent.
func (c *Cache[K, V]) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		c.release.stop()
	}
	return nil
}

// GetOrLoad returns the value for key; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key with a singleflight group.
// If no Loader is configured, returns ErrNoLoader.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}
	return c.sf.Do(ctx, key, func() (V, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err == nil {
			c.Set(key, v, 0)
		}
		return v, err
	})
}
