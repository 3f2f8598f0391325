package memcache

// NotifyMemoryPressure tells the cache that the host observed a low-memory
// condition. Options.OnMemoryPressure (if set) runs first, then — unless
// Options.RemoveAllOnMemoryPressure was explicitly set to false — the
// cache is cleared via RemoveAll.
//
// Go has no OS-portable low-memory signal the way UIKit does. Host code is
// expected to call this method directly from whatever it uses locally
// (a cgroup memory-pressure watcher, a container orchestrator hook, etc.);
// a cache that is never told about such events simply never clears this
// way, which matches spec's "no-op on platforms without such signals."
func (c *Cache[K, V]) NotifyMemoryPressure() {
	if c.opt.OnMemoryPressure != nil {
		c.opt.OnMemoryPressure()
	}
	if boolOr(c.opt.RemoveAllOnMemoryPressure, true) {
		c.RemoveAll()
	}
}

// NotifyBackground tells the cache that the host transitioned to a
// background/suspended state. Options.OnEnterBackground (if set) runs
// first, then — unless Options.RemoveAllOnBackground was explicitly set to
// false — the cache is cleared via RemoveAll.
func (c *Cache[K, V]) NotifyBackground() {
	if c.opt.OnEnterBackground != nil {
		c.opt.OnEnterBackground()
	}
	if boolOr(c.opt.RemoveAllOnBackground, true) {
		c.RemoveAll()
	}
}
