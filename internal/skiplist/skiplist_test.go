package skiplist

import (
	"fmt"
	"sync"
	"testing"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func put1(sl *SkipList, key string, value string, t uint64) {
	b := &Batch{}
	b.Add(slice.Of([]byte(key)), entry.Put(slice.Of([]byte(key)), slice.Of([]byte(value)), entry.FromUint64(t), entry.NoDeadline))
	sl.Put(b, merge.Options{})
}

func TestSkipListPutThenGetSameThread(t *testing.T) {
	sl := New(nil, Config{})
	put1(sl, "k", "v", 1)
	got, ok := sl.Get(slice.Of([]byte("k")))
	if !ok || string(got.Value.Bytes()) != "v" {
		t.Fatalf("expected v, got %+v ok=%v", got, ok)
	}
}

func TestSkipListBatchPutStoresEveryEntry(t *testing.T) {
	sl := New(nil, Config{Atomic: true})
	b := &Batch{}
	for i := 0; i < 10; i++ {
		k := fmt.Sprintf("k%02d", i)
		b.Add(slice.Of([]byte(k)), entry.Put(slice.Of([]byte(k)), slice.Of([]byte("v")), entry.FromUint64(1), entry.NoDeadline))
	}
	sl.Put(b, merge.Options{})
	if sl.Size() != 10 {
		t.Fatalf("expected 10 entries, got %d", sl.Size())
	}
}

func TestSkipListFloorCeiling(t *testing.T) {
	sl := New(nil, Config{})
	put1(sl, "b", "vb", 1)
	put1(sl, "d", "vd", 1)

	if k, _, ok := sl.Floor(slice.Of([]byte("c"))); !ok || string(k.Bytes()) != "b" {
		t.Fatalf("floor(c) = %q ok=%v", k.Bytes(), ok)
	}
	if k, _, ok := sl.Ceiling(slice.Of([]byte("c"))); !ok || string(k.Bytes()) != "d" {
		t.Fatalf("ceiling(c) = %q ok=%v", k.Bytes(), ok)
	}
}

func TestSkipListRangeForwardAndBackward(t *testing.T) {
	sl := New(nil, Config{})
	for _, k := range []string{"a", "b", "c", "d"} {
		put1(sl, k, k, 1)
	}
	var got []string
	sl.Range(slice.Of([]byte("b")), slice.Of([]byte("d")), Forward, func(k slice.Slice, v entry.Entry) bool {
		got = append(got, string(k.Bytes()))
		return true
	})
	if fmt.Sprint(got) != "[b c]" {
		t.Fatalf("forward range = %v", got)
	}

	got = nil
	sl.Range(slice.Of([]byte("c")), slice.Of([]byte("a")), Backward, func(k slice.Slice, v entry.Entry) bool {
		got = append(got, string(k.Bytes()))
		return true
	})
	if fmt.Sprint(got) != "[c b a]" {
		t.Fatalf("backward range = %v", got)
	}
}

func TestSkipListSequentialOrderDegradesOnOutOfOrder(t *testing.T) {
	sl := New(nil, Config{SequentialOrder: true, InitialLength: 4})
	put1(sl, "b", "vb", 1)
	put1(sl, "c", "vc", 1)
	put1(sl, "a", "va", 1) // out of order: must migrate to linked form

	for _, k := range []string{"a", "b", "c"} {
		if _, ok := sl.Get(slice.Of([]byte(k))); !ok {
			t.Fatalf("expected key %q present after degrade", k)
		}
	}
	if sl.seq != nil {
		t.Fatalf("expected degrade to linked skip list")
	}
}

func TestSkipListConcurrentReadsDuringWrite(t *testing.T) {
	sl := New(nil, Config{})
	put1(sl, "k", "v0", 1)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					sl.Get(slice.Of([]byte("k")))
				}
			}
		}()
	}
	for i := uint64(1); i < 100; i++ {
		put1(sl, "k", "v", i)
	}
	close(stop)
	wg.Wait()
}
