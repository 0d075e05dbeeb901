package skiplist

import (
	"sort"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// sequential is the SequentialOrder fast path from spec.md §4.7: a growable
// sorted array used while inserts arrive in strictly increasing key order.
// The first out-of-order insert, or the first Snapshot, degrades the
// SkipList permanently back to the linked-node form.
type sequential struct {
	cmp  slice.Comparator
	keys []slice.Slice
	vals []entry.Entry
}

func newSequential(initialLength int, cmp slice.Comparator) *sequential {
	if initialLength < 0 {
		initialLength = 0
	}
	return &sequential{
		cmp:  cmp,
		keys: make([]slice.Slice, 0, initialLength),
		vals: make([]entry.Entry, 0, initialLength),
	}
}

// tryAppend appends items if every key is >= the array's current max and the
// batch itself arrives sorted; returns false (no mutation) otherwise.
func (s *sequential) tryAppend(items []batchItem) bool {
	for i := 1; i < len(items); i++ {
		if s.cmp(items[i].key.Bytes(), items[i-1].key.Bytes()) < 0 {
			return false
		}
	}
	if len(s.keys) > 0 && len(items) > 0 {
		if s.cmp(items[0].key.Bytes(), s.keys[len(s.keys)-1].Bytes()) < 0 {
			return false
		}
	}
	for _, it := range items {
		if n := len(s.keys); n > 0 && s.cmp(it.key.Bytes(), s.keys[n-1].Bytes()) == 0 {
			s.vals[n-1] = it.value
			continue
		}
		s.keys = append(s.keys, it.key)
		s.vals = append(s.vals, it.value)
	}
	return true
}

func (s *sequential) get(key slice.Slice) (entry.Entry, bool) {
	i := sort.Search(len(s.keys), func(i int) bool { return s.cmp(s.keys[i].Bytes(), key.Bytes()) >= 0 })
	if i < len(s.keys) && s.cmp(s.keys[i].Bytes(), key.Bytes()) == 0 {
		return s.vals[i], true
	}
	return entry.Entry{}, false
}

func (s *sequential) size() int { return len(s.keys) }

// drainInto migrates every array entry into the linked SkipList, in order,
// reusing the normal insert path so height assignment stays random.
func (s *sequential) drainInto(sl *SkipList, mergeOpts merge.Options) {
	for i := range s.keys {
		sl.insertOne(s.keys[i], s.vals[i], mergeOpts)
	}
}
