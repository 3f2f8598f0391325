package memcache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// A mixed workload of concurrent Set/Get/Remove/TrimToCount on random keys.
// Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	c := New[string, []byte](Options[string, []byte]{
		CountLimit: 8_192,
		CostLimit:  1 << 20,
	})
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5% — Remove
					c.Remove(k)
				case 5, 6, 7: // ~3% — TrimToCount
					c.TrimToCount(4096)
				case 8, 9, 10, 11, 12, 13, 14, 15, 16, 17: // ~10% — Set
					c.Set(k, []byte("x"), 16)
				default: // ~82% — Get
					c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()
}

// One hundred goroutines call GetOrLoad on the same key concurrently. The
// Loader should run at most once (singleflight coalescing).
func TestRace_GetOrLoad(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(2 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := c.GetOrLoad(context.Background(), key)
			if err != nil {
				t.Errorf("GetOrLoad error: %v", err)
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("loader should run at most once, got %d", got)
	}
}

// Concurrent RemoveAll/NotifyMemoryPressure/NotifyBackground calls racing
// against Set/Get, to exercise the release queue under contention.
func TestRace_LifecycleNotifications(t *testing.T) {
	c := New[string, int](Options[string, int]{
		CountLimit: 1024,
		OnEvict:    func(string, int, EvictReason) {},
	})
	t.Cleanup(func() { _ = c.Close() })

	deadline := time.Now().Add(1 * time.Second)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			c.NotifyMemoryPressure()
		}
	}()
	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			c.NotifyBackground()
		}
	}()
	go func() {
		defer wg.Done()
		r := rand.New(rand.NewSource(1))
		for time.Now().Before(deadline) {
			k := strconv.Itoa(r.Intn(100))
			c.Set(k, r.Int(), 1)
			c.Get(k)
		}
	}()
	wg.Wait()
}
