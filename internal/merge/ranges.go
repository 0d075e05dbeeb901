package merge

import (
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// MergeRanges merges two Range entries that may partially overlap. It
// splits on endpoints into a sequence of non-overlapping sub-ranges, each
// merging its applicable range value(s) recursively, per spec.md §4.1
// "Range vs Range: split on endpoints".
//
// new and old need not cover the same interval; any portion covered by only
// one of them is emitted unchanged.
func MergeRanges(new, old entry.Entry, opts Options) []entry.Entry {
	keyCmp := opts.keyCmp()

	bounds := dedupSorted([]slice.Slice{new.Key, new.ToKey, old.Key, old.ToKey}, keyCmp)

	var out []entry.Entry
	for i := 0; i+1 < len(bounds); i++ {
		from, to := bounds[i], bounds[i+1]

		inNew := covers(new, from, keyCmp)
		inOld := covers(old, from, keyCmp)

		switch {
		case inNew && inOld:
			rv := mergeSubRangeValue(new, old, from, keyCmp, opts)
			out = append(out, entry.RangeEntry(from, to, laterOf(new.Time, old.Time, opts), nil, &rv))
		case inNew:
			rv := resolveRangeValue(new, from, opts)
			out = append(out, entry.RangeEntry(from, to, new.Time, nil, &rv))
		case inOld:
			rv := resolveRangeValue(old, from, opts)
			out = append(out, entry.RangeEntry(from, to, old.Time, nil, &rv))
		default:
			// Neither range covers this gap; nothing to emit.
		}
	}
	return coalesceAdjacent(out, keyCmp)
}

func mergeSubRangeValue(new, old entry.Entry, at slice.Slice, keyCmp slice.Comparator, opts Options) entry.Entry {
	newVal := resolveRangeValue(new, at, opts)
	oldVal := resolveRangeValue(old, at, opts)
	merged, ok := mergePoint(newVal, oldVal, opts)
	if !ok {
		return entry.Remove(at, laterOf(new.Time, old.Time, opts), entry.NoDeadline)
	}
	return merged
}

func covers(r entry.Entry, point slice.Slice, keyCmp slice.Comparator) bool {
	return keyCmp(point.Bytes(), r.Key.Bytes()) >= 0 && keyCmp(point.Bytes(), r.ToKey.Bytes()) < 0
}

func laterOf(a, b entry.Time, opts Options) entry.Time {
	if opts.timeAfter(a, b) {
		return a
	}
	return b
}

func dedupSorted(keys []slice.Slice, cmp slice.Comparator) []slice.Slice {
	sorted := append([]slice.Slice(nil), keys...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && cmp(sorted[j].Bytes(), sorted[j-1].Bytes()) < 0; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := sorted[:0:0]
	for _, k := range sorted {
		if len(out) == 0 || cmp(out[len(out)-1].Bytes(), k.Bytes()) != 0 {
			out = append(out, k)
		}
	}
	return out
}

// coalesceAdjacent merges consecutive emitted sub-ranges that carry the same
// Time and an identical resolved RangeValue (kind, value, Time, deadline),
// keeping output minimal.
func coalesceAdjacent(ranges []entry.Entry, keyCmp slice.Comparator) []entry.Entry {
	if len(ranges) == 0 {
		return ranges
	}
	out := []entry.Entry{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if keyCmp(last.ToKey.Bytes(), r.Key.Bytes()) == 0 && sameRangeValue(*last, r) {
			last.ToKey = r.ToKey
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameRangeValue(a, b entry.Entry) bool {
	if a.RangeValue == nil || b.RangeValue == nil {
		return a.RangeValue == b.RangeValue
	}
	return a.RangeValue.Kind == b.RangeValue.Kind &&
		slice.Equal(a.RangeValue.Value, b.RangeValue.Value) &&
		entry.Compare(a.RangeValue.Time, b.RangeValue.Time, nil) == 0 &&
		a.RangeValue.Deadline.Set == b.RangeValue.Deadline.Set &&
		entry.Compare(a.RangeValue.Deadline.Time, b.RangeValue.Deadline.Time, nil) == 0 &&
		entry.Compare(a.Time, b.Time, nil) == 0
}
