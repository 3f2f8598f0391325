// Package lru implements an intrusive doubly linked LRU list paired with a
// key->node map.
//
// The list is not safe for concurrent use and performs no validation of its
// own: it is owned and guarded entirely by its enclosing cache. Every
// operation runs in O(1) and never allocates beyond the key map, so it can
// be called from inside a hot lock without risking an unbounded pause.
package lru
