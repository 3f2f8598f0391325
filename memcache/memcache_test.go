package memcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) Now() time.Time       { return time.Unix(0, f.t) }
func (f *fakeClock) add(d time.Duration)  { f.t += int64(d) }

// S1: count eviction. Setting beyond CountLimit evicts the LRU tail.
func TestCache_CountEviction(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{CountLimit: 2})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	c.Set("c", 3, 1)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be evicted, it was the LRU tail")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b must survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("c must survive")
	}
	if n := c.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
}

// S2: a Get touch protects an entry from the next count eviction.
func TestCache_TouchProtectsFromEviction(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{CountLimit: 2})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	if _, ok := c.Get("a"); !ok { // promote a -> MRU, b becomes LRU
		t.Fatal("expect hit for a")
	}
	c.Set("c", 3, 1) // overflow -> evict LRU (b)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a must survive (promoted)")
	}
}

// S3: cost eviction. Exceeding CostLimit asynchronously trims the tail.
func TestCache_CostEviction(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{CostLimit: 5})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 3)
	c.Set("b", 2, 3) // totalCost 6 > 5, triggers an async TrimToCost

	deadline := time.Now().Add(2 * time.Second)
	for c.TotalCost() > 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.TotalCost(); got > 5 {
		t.Fatalf("TotalCost() = %d, want <= 5", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must have been trimmed, it was the LRU tail")
	}
}

// Invariant: Set on an existing key adjusts totalCost by the delta between
// the new and old cost, not by adding the new cost on top of the old.
func TestCache_SetCostDelta(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 10)
	c.Set("a", 2, 4)
	if got := c.TotalCost(); got != 4 {
		t.Fatalf("TotalCost() = %d, want 4 (replaced, not summed)", got)
	}
}

// Invariant: Remove and RemoveAll hand evicted values to OnEvict exactly
// once, with the expected reason.
func TestCache_OnEvictReasons(t *testing.T) {
	t.Parallel()

	var reasons []EvictReason
	done := make(chan struct{}, 8)
	c := New[string, int](Options[string, int]{
		OnEvict: func(_ string, _ int, reason EvictReason) {
			reasons = append(reasons, reason)
			done <- struct{}{}
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	c.Remove("a")
	<-done

	c.Set("b", 2, 1)
	c.RemoveAll()
	<-done

	if len(reasons) != 2 || reasons[0] != EvictManual || reasons[1] != EvictClear {
		t.Fatalf("reasons = %v, want [manual clear]", reasons)
	}
}

// Basic Get/Set/Contains/Remove semantics.
func TestCache_BasicSetGetRemove(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	if !c.Contains("a") {
		t.Fatal("Contains a must be true")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get a want 1, got %v ok=%v", v, ok)
	}
	if !c.Remove("a") {
		t.Fatal("Remove a must be true")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Remove")
	}
}

// TrimToAge evicts entries older than limit using a fake clock, to avoid
// timing flakiness.
func TestCache_TrimToAge(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, int](Options[string, int]{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("old", 1, 1)
	clk.add(100 * time.Millisecond)
	c.Set("new", 2, 1)

	c.TrimToAge(50 * time.Millisecond)

	if _, ok := c.Get("old"); ok {
		t.Fatal("old must be trimmed")
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatal("new must survive")
	}
}

// Singleflight test: concurrent GetOrLoad calls for the same key trigger
// the Loader at most once; subsequent calls are cache hits.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const n = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}
}

func TestCache_GetOrLoad_NoLoaderConfigured(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{})
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.GetOrLoad(context.Background(), "missing"); err != ErrNoLoader {
		t.Fatalf("err = %v, want ErrNoLoader", err)
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{})
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCache_NotifyMemoryPressureClears(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	c.NotifyMemoryPressure()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after NotifyMemoryPressure", c.Len())
	}
}

func TestCache_NotifyMemoryPressureCanBeDisabled(t *testing.T) {
	t.Parallel()

	no := false
	c := New[string, int](Options[string, int]{RemoveAllOnMemoryPressure: &no})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, 1)
	c.NotifyMemoryPressure()
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (clear disabled)", c.Len())
	}
}
