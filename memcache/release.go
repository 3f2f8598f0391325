package memcache

// releaseQueue drops evicted entries according to Options.ReleasePolicy.
// ReleaseBackground is backed by a buffered channel drained by a single
// worker goroutine — the closest Go analog of a serial dispatch queue —
// so that a user-supplied OnEvict callback never runs under the cache's
// lock or blocks the goroutine that triggered the eviction.
type releaseQueue[K comparable, V any] struct {
	onEvict func(k K, v V, reason EvictReason)
	policy  ReleasePolicy
	exec    func(func())

	jobs chan releaseJob[K, V]
	done chan struct{}
}

type releaseJob[K comparable, V any] struct {
	key    K
	value  V
	reason EvictReason
}

const releaseQueueCapacity = 1024

func newReleaseQueue[K comparable, V any](opt Options[K, V]) *releaseQueue[K, V] {
	rq := &releaseQueue[K, V]{
		onEvict: opt.OnEvict,
		policy:  opt.ReleasePolicy,
		exec:    opt.MainThreadExecutor,
		jobs:    make(chan releaseJob[K, V], releaseQueueCapacity),
		done:    make(chan struct{}),
	}
	if rq.onEvict != nil {
		go rq.run()
	} else {
		// No destructor configured: nothing to defer. Close the done
		// channel immediately so stop() doesn't block on a worker that
		// was never started.
		close(rq.done)
	}
	return rq
}

func (rq *releaseQueue[K, V]) run() {
	for job := range rq.jobs {
		rq.onEvict(job.key, job.value, job.reason)
	}
	close(rq.done)
}

// enqueue drops one evicted entry per the configured ReleasePolicy:
//
//   - ReleaseMainThread runs the callback through MainThreadExecutor, if
//     one was provided; otherwise it falls back to ReleaseBackground,
//     since a bare Go process has no canonical main dispatch queue to
//     fall back to.
//   - ReleaseInline runs the callback synchronously, in the caller's
//     goroutine.
//   - ReleaseBackground (the default) enqueues the callback on the
//     release worker.
func (rq *releaseQueue[K, V]) enqueue(key K, value V, reason EvictReason) {
	if rq.onEvict == nil {
		return
	}
	switch rq.policy {
	case ReleaseMainThread:
		if rq.exec != nil {
			rq.exec(func() { rq.onEvict(key, value, reason) })
			return
		}
		fallthrough
	case ReleaseBackground:
		rq.jobs <- releaseJob[K, V]{key: key, value: value, reason: reason}
	case ReleaseInline:
		rq.onEvict(key, value, reason)
	default:
		rq.jobs <- releaseJob[K, V]{key: key, value: value, reason: reason}
	}
}

// stop drains and closes the queue, waiting for the worker to finish any
// job already in flight.
func (rq *releaseQueue[K, V]) stop() {
	if rq.onEvict == nil {
		return
	}
	close(rq.jobs)
	<-rq.done
}
