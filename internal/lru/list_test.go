package lru

import "testing"

// Basic insert/promote/remove semantics and the count/cost invariant.
func TestList_BasicOrdering(t *testing.T) {
	t.Parallel()

	l := New[string, int]()

	a := &Node[string, int]{Key: "a", Value: 1, Cost: 10}
	b := &Node[string, int]{Key: "b", Value: 2, Cost: 20}
	c := &Node[string, int]{Key: "c", Value: 3, Cost: 30}

	l.InsertAtHead(a)
	l.InsertAtHead(b)
	l.InsertAtHead(c)

	if got := l.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if got := l.TotalCost(); got != 60 {
		t.Fatalf("TotalCost() = %d, want 60", got)
	}
	if l.Front() != c {
		t.Fatal("Front() should be the most recently inserted node")
	}
	if l.Back() != a {
		t.Fatal("Back() should be the least recently inserted node")
	}

	l.BringToHead(a)
	if l.Front() != a {
		t.Fatal("BringToHead(a) should make a the MRU node")
	}
	if l.Back() != b {
		t.Fatal("Back() should now be b")
	}
	if got := l.TotalCost(); got != 60 {
		t.Fatalf("TotalCost() changed after BringToHead: %d", got)
	}

	l.Remove(b)
	if got := l.Len(); got != 2 {
		t.Fatalf("Len() after Remove = %d, want 2", got)
	}
	if got := l.TotalCost(); got != 40 {
		t.Fatalf("TotalCost() after Remove = %d, want 40", got)
	}
	if _, ok := l.Get("b"); ok {
		t.Fatal("b should no longer be present in the key map")
	}
}

// RemoveTail evicts the LRU node and repairs both endpoints.
func TestList_RemoveTail(t *testing.T) {
	t.Parallel()

	l := New[int, string]()
	if n := l.RemoveTail(); n != nil {
		t.Fatal("RemoveTail on empty list should return nil")
	}

	for i := 0; i < 3; i++ {
		l.InsertAtHead(&Node[int, string]{Key: i, Value: "v", Cost: 1})
	}
	// Order is MRU..LRU: 2,1,0
	n := l.RemoveTail()
	if n == nil || n.Key != 0 {
		t.Fatalf("RemoveTail() = %+v, want key 0", n)
	}
	n = l.RemoveTail()
	if n == nil || n.Key != 1 {
		t.Fatalf("RemoveTail() = %+v, want key 1", n)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	n = l.RemoveTail()
	if n == nil || n.Key != 2 {
		t.Fatalf("RemoveTail() = %+v, want key 2", n)
	}
	if l.Front() != nil || l.Back() != nil {
		t.Fatal("list should be empty: Front and Back must both be nil")
	}
}

// RemoveAll clears the list in O(1) and hands back the old key map.
func TestList_RemoveAll(t *testing.T) {
	t.Parallel()

	l := New[string, int]()
	for _, k := range []string{"a", "b", "c"} {
		l.InsertAtHead(&Node[string, int]{Key: k, Value: 1, Cost: 5})
	}

	old := l.RemoveAll()
	if len(old) != 3 {
		t.Fatalf("RemoveAll() returned %d entries, want 3", len(old))
	}
	if l.Len() != 0 || l.TotalCost() != 0 {
		t.Fatalf("list not empty after RemoveAll: len=%d cost=%d", l.Len(), l.TotalCost())
	}
	if l.Front() != nil || l.Back() != nil {
		t.Fatal("Front/Back must be nil after RemoveAll")
	}
}

// Single-element invariants: head == tail, and removing it empties the list.
func TestList_SingleElement(t *testing.T) {
	t.Parallel()

	l := New[string, int]()
	n := &Node[string, int]{Key: "only", Value: 42, Cost: 1}
	l.InsertAtHead(n)

	if l.Front() != n || l.Back() != n {
		t.Fatal("a single-element list must have Front == Back == that node")
	}
	l.Remove(n)
	if l.Front() != nil || l.Back() != nil || l.Len() != 0 {
		t.Fatal("list must be fully empty after removing its only node")
	}
}
