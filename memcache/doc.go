// Package memcache implements an in-process, thread-safe LRU cache over
// typed keys and values with count, cost, and age limits.
//
// Design
//
//   - Storage: a single internal/lru.List keeps a map[K]*lru.Node for
//     lookups and an intrusive MRU<->LRU doubly linked list for ordering.
//     The list is not thread-safe by itself — Cache owns and guards it
//     behind one sync.RWMutex.
//
//   - Limits: Options.CountLimit and Options.CostLimit are enforced after
//     every Set; Options.AgeLimit is enforced by a background timer.
//     Excess entries are always evicted from the tail (the LRU entry).
//
//   - Deferred release: trims never destroy values under the lock. Each
//     trim collects evicted nodes into a local holder, releases the lock,
//     and only then hands the holder to a release queue (a buffered
//     channel plus one worker goroutine) so user code in Options.OnEvict
//     never runs on a critical path. Options.ReleasePolicy chooses the
//     destination.
//
//   - Host lifecycle: NotifyMemoryPressure and NotifyBackground let host
//     code (a signal handler, a mobile bridge, a server shutdown hook)
//     tell the cache about external lifecycle events. There is no
//     OS-portable equivalent of a "low memory" notification in Go, so the
//     cache exposes the subscription edge instead of polling for one.
//
// Basic usage
//
//	c := memcache.New[string, []byte](memcache.Options[string, []byte]{
//	    CountLimit: 10_000,
//	})
//	defer c.Close()
//	c.Set("a", []byte("1"), 0)
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
package memcache
