package lru

// Node is a single entry in a List. Callers outside this package receive
// *Node pointers as opaque handles — BringToHead and Remove accept them back
// without a further key lookup.
type Node[K comparable, V any] struct {
	Key   K
	Value V
	Cost  int64
	Time  int64 // monotonic timestamp of last insert/access

	prev, next *Node[K, V]
}
