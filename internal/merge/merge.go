// Package merge implements the pure functions that collapse a newer Entry
// against an older Entry sharing a key, honoring time order. This is the
// semantic heart of LSM reads and compaction: every Level.get, every
// compaction job, and every range scan resolves its answer by repeated
// application of Merge.
//
// Reference: there is no single teacher file for this — RocksDB resolves
// same-key records by sequence-number ordering alone (db/dbformat.h) and
// folds merge *operands* through MergeOperator.FullMerge (merge_operator.go).
// This package generalizes both ideas: Merge is RocksDB's sequence-number
// dominance rule lifted to a six-way tagged union, and MergeAll is the
// FullMerge-style fold applied to a PendingApply chain.
package merge

import (
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// FunctionApplier applies a registered transformation to a current value.
// A false keepsValue return means the function removed the entry (e.g. a
// counter that expired to zero).
type FunctionApplier interface {
	Apply(fnID string, key []byte, value slice.Slice, hasValue bool, deadline entry.Deadline) (newValue slice.Slice, newDeadline entry.Deadline, keepsValue bool)
}

// Options parameterizes a Merge call.
type Options struct {
	TimeCompare slice.Comparator // nil defaults to slice.Unsigned
	KeyCompare  slice.Comparator // nil defaults to slice.Unsigned
	LastLevel   bool             // true when old has no lower level beneath it
	Functions   FunctionApplier  // required only if Function entries are merged
}

func (o Options) timeCmp() slice.Comparator {
	if o.TimeCompare != nil {
		return o.TimeCompare
	}
	return slice.Unsigned
}

func (o Options) keyCmp() slice.Comparator {
	if o.KeyCompare != nil {
		return o.KeyCompare
	}
	return slice.Unsigned
}

func (o Options) timeAfter(a, b entry.Time) bool {
	return entry.Compare(a, b, o.timeCmp()) > 0
}

// Merge collapses new against old, which must share a key (or new must be a
// Range covering old's key). It returns the resulting Entry and ok=true, or
// ok=false when the pair resolves to absence.
//
// Range-vs-Range is handled by MergeRanges, not Merge; Merge panics if both
// arguments are Range (callers must route range/range pairs there).
func Merge(new, old entry.Entry, opts Options) (entry.Entry, bool) {
	if new.Kind == entry.KindRange && old.Kind == entry.KindRange {
		panic("merge: use MergeRanges for range/range pairs")
	}
	if new.Kind == entry.KindRange {
		return mergeRangeVsPoint(new, old, opts)
	}
	if old.Kind == entry.KindRange {
		// Symmetric case: old is the range, new is a point falling inside it.
		// The point is always later (it is the "new" argument), so it wins
		// outright unless its own time is dominated by the range's applicable
		// value — delegate to the same resolution with arguments swapped
		// semantically (the range's value at new's key becomes "old").
		resolved := resolveRangeValue(old, new.Key, opts)
		return mergePoint(new, resolved, opts)
	}
	return mergePoint(new, old, opts)
}

// resolveRangeValue returns the point entry a Range applies at key: its
// FromValue override if key equals the range's start, else its RangeValue.
func resolveRangeValue(r entry.Entry, key slice.Slice, opts Options) entry.Entry {
	if r.FromValue != nil && opts.keyCmp()(key.Bytes(), r.Key.Bytes()) == 0 {
		return *r.FromValue
	}
	if r.RangeValue != nil {
		return *r.RangeValue
	}
	return entry.Remove(key, r.Time, entry.NoDeadline)
}

func mergeRangeVsPoint(rng, point entry.Entry, opts Options) (entry.Entry, bool) {
	applicable := resolveRangeValue(rng, point.Key, opts)
	return mergePoint(applicable, point, opts)
}

// mergePoint implements the exhaustive (kind, kind) table from spec.md §4.1.
func mergePoint(new, old entry.Entry, opts Options) (entry.Entry, bool) {
	// At equal Times new counts as the later write: entries of one batch
	// share a Time and are merged in call order.
	newer := !opts.timeAfter(old.Time, new.Time)

	switch {
	case new.Kind == entry.KindPut:
		if newer || entry.Compare(new.Time, old.Time, opts.timeCmp()) == 0 {
			return new, true
		}
		return survives(old, opts)

	case old.Kind == entry.KindPut:
		return mergeAgainstPut(new, old, newer, opts)

	case new.Kind == entry.KindPendingApply:
		return mergeIntoPending(new, old, opts)

	case old.Kind == entry.KindPendingApply:
		return prependIntoPending(new, old, opts)

	default:
		// Two non-Put, non-PendingApply entries (Update/Remove/Function in any
		// combination): accumulate into a PendingApply ordered by time,
		// awaiting a Put to collapse against.
		return accumulate(new, old, opts)
	}
}

// survives applies the "last level drops pure negatives" rule to an entry
// that has already lost the time-dominance comparison (or was never a Put).
func survives(e entry.Entry, opts Options) (entry.Entry, bool) {
	if opts.LastLevel && !e.IsPut() {
		return entry.Entry{}, false
	}
	return e, true
}

func mergeAgainstPut(new, put entry.Entry, newer bool, opts Options) (entry.Entry, bool) {
	if !newer {
		// put dominates; new is discarded entirely.
		return put, true
	}
	switch new.Kind {
	case entry.KindRemove:
		if opts.LastLevel && !new.Deadline.Set {
			return entry.Entry{}, false
		}
		return new, true
	case entry.KindUpdate:
		merged := put
		merged.Time = new.Time
		merged.Value = new.Value
		merged.Deadline = new.Deadline
		return merged, true
	case entry.KindFunction:
		if opts.Functions == nil {
			return put, true
		}
		newVal, newDeadline, keeps := opts.Functions.Apply(new.FnID, put.Key.Bytes(), put.Value, true, put.Deadline)
		if !keeps {
			if opts.LastLevel {
				return entry.Entry{}, false
			}
			return entry.Remove(put.Key, new.Time, entry.NoDeadline), true
		}
		merged := put
		merged.Time = new.Time
		merged.Value = newVal
		merged.Deadline = newDeadline
		return merged, true
	case entry.KindPendingApply:
		return collapsePending(new, put, opts)
	default:
		return put, true
	}
}

// accumulate merges two non-Put, non-PendingApply entries into a
// PendingApply chain ordered oldest-first by time.
func accumulate(a, b entry.Entry, opts Options) (entry.Entry, bool) {
	first, second := a, b
	if opts.timeAfter(first.Time, second.Time) {
		first, second = second, first
	}
	ops := []entry.PendingOp{toPendingOp(first), toPendingOp(second)}
	return entry.Apply(a.Key, second.Time, ops), true
}

func mergeIntoPending(pending, other entry.Entry, opts Options) (entry.Entry, bool) {
	if other.Kind == entry.KindPendingApply {
		return mergePendingPending(pending, other, opts)
	}
	return insertIntoPending(pending, other, opts)
}

func prependIntoPending(other, pending entry.Entry, opts Options) (entry.Entry, bool) {
	return insertIntoPending(pending, other, opts)
}

// insertIntoPending inserts a single non-Put entry into an existing
// PendingApply chain at its correct time position.
func insertIntoPending(pending, item entry.Entry, opts Options) (entry.Entry, bool) {
	ops := append([]entry.PendingOp(nil), pending.Pending...)
	op := toPendingOp(item)
	i := 0
	for i < len(ops) && opts.timeAfter(op.Time, ops[i].Time) {
		i++
	}
	ops = append(ops, entry.PendingOp{})
	copy(ops[i+1:], ops[i:])
	ops[i] = op

	newest := pending.Time
	if opts.timeAfter(item.Time, newest) {
		newest = item.Time
	}
	return entry.Apply(pending.Key, newest, ops), true
}

func mergePendingPending(a, b entry.Entry, opts Options) (entry.Entry, bool) {
	merged := append([]entry.PendingOp(nil), a.Pending...)
	for _, op := range b.Pending {
		merged = insertOp(merged, op, opts)
	}
	newest := a.Time
	if opts.timeAfter(b.Time, newest) {
		newest = b.Time
	}
	return entry.Apply(a.Key, newest, merged), true
}

func insertOp(ops []entry.PendingOp, op entry.PendingOp, opts Options) []entry.PendingOp {
	i := 0
	for i < len(ops) && opts.timeAfter(op.Time, ops[i].Time) {
		i++
	}
	ops = append(ops, entry.PendingOp{})
	copy(ops[i+1:], ops[i:])
	ops[i] = op
	return ops
}

// collapsePending folds a PendingApply chain (oldest-first) onto a
// surviving Put, in time order, stopping early (absence) if a fold step
// removes the value and the chain has no later Update to resurrect it.
func collapsePending(pending, put entry.Entry, opts Options) (entry.Entry, bool) {
	cur := put
	ok := true
	for _, op := range pending.Pending {
		if !opts.timeAfter(op.Time, cur.Time) {
			continue
		}
		switch op.Kind {
		case entry.KindUpdate:
			cur.Time = op.Time
			cur.Value = op.Value
			cur.Deadline = op.Deadline
			ok = true
		case entry.KindRemove:
			if opts.LastLevel && !op.Deadline.Set {
				return entry.Entry{}, false
			}
			cur = entry.Remove(put.Key, op.Time, op.Deadline)
			ok = true
		case entry.KindFunction:
			if opts.Functions == nil || !ok {
				continue
			}
			newVal, newDeadline, keeps := opts.Functions.Apply(op.FnID, put.Key.Bytes(), cur.Value, ok, cur.Deadline)
			if !keeps {
				ok = false
				continue
			}
			cur = entry.Put(put.Key, newVal, op.Time, newDeadline)
		}
	}
	if !ok {
		if opts.LastLevel {
			return entry.Entry{}, false
		}
		return entry.Remove(put.Key, pending.Time, entry.NoDeadline), true
	}
	return cur, true
}

func toPendingOp(e entry.Entry) entry.PendingOp {
	return entry.PendingOp{Kind: e.Kind, Time: e.Time, Value: e.Value, Deadline: e.Deadline, FnID: e.FnID}
}

// MergeAll folds a time-ordered stack of entries for one key (newest last)
// into a single logical result, by repeated pairwise Merge. Used by Segment
// range scans that accumulate entries across several Segments before
// producing a final answer, and by PendingApply construction during reads.
func MergeAll(entries []entry.Entry, opts Options) (entry.Entry, bool) {
	if len(entries) == 0 {
		return entry.Entry{}, false
	}
	acc := entries[0]
	ok := true
	for _, e := range entries[1:] {
		acc, ok = Merge(e, acc, opts)
		if !ok {
			return entry.Entry{}, false
		}
	}
	return acc, true
}
