// Package iterator implements spec.md §6's `iterator(from?, to?, direction)
// -> Stream<(key, Put-projection)>`: a merging sweep across the SkipList
// and every overlapping Segment, grouping consecutive same-key entries and
// folding each group through merge.MergeAll before yielding its projected
// value.
//
// Reference: adapted from the teacher's internal/iterator MergingIterator
// (a heap-of-children k-way merge over internal-key-ordered child
// iterators), generalized from RocksDB's embedded-sequence-number internal
// key (where "first occurrence wins" is enough) to spec.md's opaque Time
// plus richer Entry union, which requires an actual merge.MergeAll fold
// per key group rather than first-wins selection.
package iterator

import (
	"container/heap"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// Pair is a projected (key, value) result: what the iterator yields for a
// key whose merged entry stack resolves to a live Put.
type Pair struct {
	Key   slice.Slice
	Value slice.Slice
}

// Source is one ordered input to the merge: the SkipList's current
// contents, or one Segment's Scan. Implementations must already be sorted
// in the iterator's Direction and pre-filtered to [from, to].
type Source interface {
	// Next returns the next (key, entry) pair, or ok=false when exhausted.
	Next() (slice.Slice, entry.Entry, bool)
}

// SliceSource adapts a pre-collected, already-ordered slice of (key,
// entry) pairs (as produced by SkipList.Range or Segment.Scan's callback)
// to Source.
type SliceSource struct {
	Keys    []slice.Slice
	Entries []entry.Entry
	pos     int
}

func (s *SliceSource) Next() (slice.Slice, entry.Entry, bool) {
	if s.pos >= len(s.Keys) {
		return slice.Empty, entry.Entry{}, false
	}
	k, e := s.Keys[s.pos], s.Entries[s.pos]
	s.pos++
	return k, e, true
}

// Direction selects ascending or descending iteration order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Iterator is a pull-based cursor over the merged (key, Put-projection)
// stream. Construct with New, then call Next repeatedly until it returns
// false.
type Iterator struct {
	dir     Direction
	keyCmp  slice.Comparator
	opts    merge.Options
	sources []Source
	heap    *sourceHeap

	cur   Pair
	valid bool
	err   error
}

type heapEntry struct {
	key    slice.Slice
	entry  entry.Entry
	source int
}

type sourceHeap struct {
	items []heapEntry
	dir   Direction
	cmp   slice.Comparator
}

func (h *sourceHeap) Len() int { return len(h.items) }
func (h *sourceHeap) Less(i, j int) bool {
	c := h.cmp(h.items[i].key.Bytes(), h.items[j].key.Bytes())
	if h.dir == Descending {
		return c > 0
	}
	return c < 0
}
func (h *sourceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *sourceHeap) Push(x any)    { h.items = append(h.items, x.(heapEntry)) }
func (h *sourceHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// New builds an Iterator over sources (e.g. one SliceSource per SkipList
// snapshot plus one per overlapping Segment), merged in dir order and
// resolved per opts. Shallower sources (SkipList, Level Zero) should be
// passed before deeper ones; merge resolution itself is Time-based and
// does not depend on source order, but ties in practice reflect write
// recency this way.
func New(sources []Source, dir Direction, keyCmp slice.Comparator, opts merge.Options) *Iterator {
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	it := &Iterator{
		dir:     dir,
		keyCmp:  keyCmp,
		opts:    opts,
		sources: sources,
		heap:    &sourceHeap{dir: dir, cmp: keyCmp},
	}
	for i, s := range sources {
		if k, e, ok := s.Next(); ok {
			heap.Push(it.heap, heapEntry{key: k, entry: e, source: i})
		}
	}
	heap.Init(it.heap)
	return it
}

// Valid reports whether Current holds a result.
func (it *Iterator) Valid() bool { return it.valid }

// Current returns the most recently yielded Pair. Only meaningful after a
// Next call returned true.
func (it *Iterator) Current() Pair { return it.cur }

// Err returns any error raised while merging (currently always nil; kept
// for parity with the Source interface's error-returning siblings once a
// Source reads from disk fallibly).
func (it *Iterator) Err() error { return it.err }

// Next advances to the next distinct key whose merged entry stack resolves
// to a live Put, skipping keys that resolve to absence (deleted, or a
// surviving non-Put at the top of the stack). Returns false when the
// merge is exhausted.
func (it *Iterator) Next() bool {
	for it.heap.Len() > 0 {
		groupKey := it.heap.items[0].key
		var group []entry.Entry

		for it.heap.Len() > 0 && it.keyCmp(it.heap.items[0].key.Bytes(), groupKey.Bytes()) == 0 {
			top := heap.Pop(it.heap).(heapEntry)
			group = append(group, top.entry)
			if k, e, ok := it.sources[top.source].Next(); ok {
				heap.Push(it.heap, heapEntry{key: k, entry: e, source: top.source})
			}
		}

		merged, ok := merge.MergeAll(group, it.opts)
		if !ok || !merged.IsPut() {
			continue
		}
		it.cur = Pair{Key: groupKey, Value: merged.Value}
		it.valid = true
		return true
	}
	it.valid = false
	return false
}
