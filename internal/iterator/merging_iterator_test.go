package iterator

import (
	"testing"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func mergeOpts() merge.Options {
	return merge.Options{TimeCompare: slice.Unsigned, KeyCompare: slice.Unsigned}
}

func src(pairs ...struct {
	k string
	e entry.Entry
}) *SliceSource {
	s := &SliceSource{}
	for _, p := range pairs {
		s.Keys = append(s.Keys, slice.Of([]byte(p.k)))
		s.Entries = append(s.Entries, p.e)
	}
	return s
}

func put(k, v string, t uint64) struct {
	k string
	e entry.Entry
} {
	return struct {
		k string
		e entry.Entry
	}{k, entry.Put(slice.Of([]byte(k)), slice.Of([]byte(v)), entry.FromUint64(t), entry.NoDeadline)}
}

func TestIteratorMergesAcrossSourcesByKey(t *testing.T) {
	a := src(put("a", "a1", 1), put("c", "c1", 1))
	b := src(put("b", "b1", 1), put("c", "c2", 2)) // newer c wins
	it := New([]Source{a, b}, Ascending, slice.Unsigned, mergeOpts())

	var got []Pair
	for it.Next() {
		got = append(got, it.Current())
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(got))
	}
	if string(got[0].Key.Bytes()) != "a" || string(got[1].Key.Bytes()) != "b" {
		t.Fatalf("expected ascending a,b,c order, got %+v", got)
	}
	if string(got[2].Value.Bytes()) != "c2" {
		t.Fatalf("expected newer value c2 to win, got %q", got[2].Value.Bytes())
	}
}

func TestIteratorSkipsKeysResolvingToAbsence(t *testing.T) {
	a := src(put("a", "a1", 1))
	removeEntry := entry.Remove(slice.Of([]byte("a")), entry.FromUint64(2), entry.NoDeadline)
	b := &SliceSource{Keys: []slice.Slice{slice.Of([]byte("a"))}, Entries: []entry.Entry{removeEntry}}

	it := New([]Source{a, b}, Ascending, slice.Unsigned, mergeOpts())
	if it.Next() {
		t.Fatalf("expected removed key to be skipped, got %+v", it.Current())
	}
}

func TestIteratorDescendingOrder(t *testing.T) {
	// Sources must already be ordered in the iterator's own direction.
	a := src(put("c", "3", 1), put("b", "2", 1), put("a", "1", 1))
	it := New([]Source{a}, Descending, slice.Unsigned, mergeOpts())

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Current().Key.Bytes()))
	}
	if len(keys) != 3 || keys[0] != "c" || keys[2] != "a" {
		t.Fatalf("expected descending c,b,a, got %v", keys)
	}
}
