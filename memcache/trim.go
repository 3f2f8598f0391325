package memcache

import (
	"context"
	"time"

	"github.com/twotier/kvcache/internal/lru"
)

// trimBackoff is the sleep between failed try-lock attempts in the trim
// loops below. It is intentionally short: trims yield to readers rather
// than blocking them, but still make steady progress.
const trimBackoff = 10 * time.Millisecond

// TrimToCount evicts tail entries until at most n remain. n == 0 clears the
// cache outright. The mutex is never held across the whole eviction loop —
// destroying many values under the lock could stall readers — so this
// repeatedly attempts a non-blocking write-lock, evicts one tail node per
// successful attempt, and sleeps briefly on contention.
func (c *Cache[K, V]) TrimToCount(n int) {
	if n <= 0 {
		c.RemoveAll()
		return
	}

	c.mu.RLock()
	within := c.list.Len() <= n
	c.mu.RUnlock()
	if within {
		return
	}

	var holder []*lru.Node[K, V]
	for {
		if !c.mu.TryLock() {
			time.Sleep(trimBackoff)
			continue
		}
		if c.list.Len() <= n {
			c.mu.Unlock()
			break
		}
		evicted := c.list.RemoveTail()
		c.mu.Unlock()
		if evicted == nil {
			break
		}
		holder = append(holder, evicted)
	}
	c.releaseEvicted(holder, EvictCount)
}

// TrimToCost evicts tail entries until totalCost is at most limit. limit ==
// 0 clears the cache outright. Same try-lock/sleep discipline as
// TrimToCount.
func (c *Cache[K, V]) TrimToCost(limit int64) {
	if limit <= 0 {
		c.RemoveAll()
		return
	}

	c.mu.RLock()
	within := c.list.TotalCost() <= limit
	c.mu.RUnlock()
	if within {
		return
	}

	var holder []*lru.Node[K, V]
	for {
		if !c.mu.TryLock() {
			time.Sleep(trimBackoff)
			continue
		}
		if c.list.TotalCost() <= limit {
			c.mu.Unlock()
			break
		}
		evicted := c.list.RemoveTail()
		c.mu.Unlock()
		if evicted == nil {
			break
		}
		holder = append(holder, evicted)
	}
	c.releaseEvicted(holder, EvictCost)
}

// TrimToAge evicts tail entries older than limit. limit == 0 clears the
// cache outright. Tail entries are examined oldest-possible-first since the
// tail is always the LRU (and therefore the oldest-touched) entry; the loop
// stops as soon as the tail is within limit or the cache empties.
func (c *Cache[K, V]) TrimToAge(limit time.Duration) {
	if limit <= 0 {
		c.RemoveAll()
		return
	}

	var holder []*lru.Node[K, V]
	for {
		if !c.mu.TryLock() {
			// Check under the read lock so we don't spin on an
			// already-satisfied condition.
			c.mu.RLock()
			tail := c.list.Back()
			expired := tail != nil && c.clock.Now().UnixNano()-tail.Time > int64(limit)
			c.mu.RUnlock()
			if !expired {
				break
			}
			time.Sleep(trimBackoff)
			continue
		}
		tail := c.list.Back()
		// tail == nil: nothing left to trim. Otherwise trim while the LRU
		// entry's age exceeds the limit.
		if tail == nil || c.clock.Now().UnixNano()-tail.Time <= int64(limit) {
			c.mu.Unlock()
			break
		}
		evicted := c.list.RemoveTail()
		c.mu.Unlock()
		holder = append(holder, evicted)
	}
	c.releaseEvicted(holder, EvictAge)
}

// releaseEvicted reports the post-trim size, emits one Evict metric per
// node, and hands the whole holder to the release queue, which drops each
// entry according to Options.ReleasePolicy.
func (c *Cache[K, V]) releaseEvicted(holder []*lru.Node[K, V], reason EvictReason) {
	if len(holder) == 0 {
		return
	}
	c.mu.RLock()
	entries, totalCost := c.list.Len(), c.list.TotalCost()
	c.mu.RUnlock()
	c.opt.Metrics.Size(entries, totalCost)

	for _, n := range holder {
		c.opt.Metrics.Evict(reason)
		c.release.enqueue(n.Key, n.Value, reason)
	}
}

// scheduleAutoTrim arms a self-re-arming timer that runs cost, count, and
// age trims (in that order) every AutoTrimInterval, until ctx is cancelled
// by Close.
func (c *Cache[K, V]) scheduleAutoTrim(ctx context.Context) {
	var arm func()
	arm = func() {
		time.AfterFunc(c.opt.AutoTrimInterval, func() {
			if ctx.Err() != nil {
				return
			}
			c.runAutoTrim()
			if ctx.Err() == nil {
				arm()
			}
		})
	}
	arm()
}

func (c *Cache[K, V]) runAutoTrim() {
	if c.opt.CostLimit > 0 {
		c.TrimToCost(c.opt.CostLimit)
	}
	if c.opt.CountLimit > 0 {
		c.TrimToCount(c.opt.CountLimit)
	}
	if c.opt.AgeLimit > 0 {
		c.TrimToAge(c.opt.AgeLimit)
	}
}
