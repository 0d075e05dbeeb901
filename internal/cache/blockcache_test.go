package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyValueLimiterCachesAcrossGets(t *testing.T) {
	l := NewKeyValueLimiter(1<<20, time.Hour)
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return []byte("payload"), nil
	}

	key := BlockKey{SegmentID: 1, Offset: 10}
	for i := 0; i < 5; i++ {
		v, err := l.Get(key, fn)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(v) != "payload" {
			t.Fatalf("got %q", v)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 decompression, got %d", calls.Load())
	}
}

func TestKeyValueLimiterSingleFlightsConcurrentMisses(t *testing.T) {
	l := NewKeyValueLimiter(1<<20, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func() ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	key := BlockKey{SegmentID: 2, Offset: 0}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Get(key, fn)
		}()
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 decompression across concurrent misses, got %d", calls.Load())
	}
}

func TestKeyValueLimiterNegativeCachesFailures(t *testing.T) {
	l := NewKeyValueLimiter(1<<20, time.Hour)
	l.negativeTTL = time.Hour
	wantErr := errors.New("boom")
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return nil, wantErr
	}

	key := BlockKey{SegmentID: 3, Offset: 0}
	if _, err := l.Get(key, fn); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := l.Get(key, fn); err == nil {
		t.Fatalf("expected negative-cached error on second call")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected decompressor invoked once, got %d", calls.Load())
	}
}

func TestKeyValueLimiterInvalidateForcesRedecompression(t *testing.T) {
	l := NewKeyValueLimiter(1<<20, time.Hour)
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	}
	key := BlockKey{SegmentID: 4, Offset: 0}
	_, _ = l.Get(key, fn)
	l.Invalidate(key)
	_, _ = l.Get(key, fn)
	if calls.Load() != 2 {
		t.Fatalf("expected 2 decompressions after invalidate, got %d", calls.Load())
	}
}

func TestKeyValueLimiterDegradesWhenBlockExceedsBudget(t *testing.T) {
	l := NewKeyValueLimiter(8, time.Hour)
	oversized := make([]byte, 64)
	for i := range oversized {
		oversized[i] = byte(i)
	}
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return oversized, nil
	}

	key := BlockKey{SegmentID: 5, Offset: 0}
	v, err := l.Get(key, fn)
	if !errors.Is(err, ErrBlockExceedsBudget) {
		t.Fatalf("expected ErrBlockExceedsBudget, got %v", err)
	}
	if string(v) != string(oversized) {
		t.Fatalf("expected the decompressed payload despite the admission failure")
	}

	// The block was never admitted, so a second Get decompresses again
	// rather than hitting a cache entry that doesn't exist.
	if _, err := l.Get(key, fn); !errors.Is(err, ErrBlockExceedsBudget) {
		t.Fatalf("expected ErrBlockExceedsBudget again, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 decompressions (never cached), got %d", calls.Load())
	}
	if l.Usage() != 0 {
		t.Fatalf("expected 0 cache usage, got %d", l.Usage())
	}
}

func TestLRUCachePurgeExpired(t *testing.T) {
	c := NewLRUCache(1 << 20)
	h := c.Insert(CacheKey{FileNumber: 1}, []byte("x"), 1)
	c.Release(h)
	c.PurgeExpired(0)
	if c.GetOccupancyCount() != 0 {
		t.Fatalf("expected purge to evict aged entry")
	}
}
