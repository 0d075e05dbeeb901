// Package batch turns a caller's sequence of domain writes (Put, Update,
// Remove, RemoveRange, ApplyFunction) into the entry.Entry records one
// atomic commit installs into Level Zero, per spec.md's `put(batch: Seq
// <Entry>) -> Commit; batch entries share one time`: every Entry built by
// a Batch carries the same logical Time, so within-batch same-key
// collisions resolve by call order (mergePoint's equal-Time rule: the
// later argument wins) rather than by a manufactured per-entry clock.
//
// Reference: adapted from the teacher's internal/batch WriteBatch
// (sequence-number-stamped record queue applied atomically to a
// memtable), generalized from RocksDB's 26-tag ValueType record format and
// column-family routing down to spec.md's six-kind Entry union and
// single-database scope, and re-targeted from the teacher's own log
// encoding to build a skiplist.Batch directly.
package batch

import (
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/skiplist"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// Batch accumulates writes destined for one atomic commit.
type Batch struct {
	time    entry.Time
	entries []entry.Entry
}

// New starts a Batch whose entries all carry t as their Time.
func New(t entry.Time) *Batch {
	return &Batch{time: t}
}

// Len reports the number of writes queued so far.
func (b *Batch) Len() int { return len(b.entries) }

// Entries returns the queued entries in call order.
func (b *Batch) Entries() []entry.Entry { return b.entries }

// Put queues a Put write.
func (b *Batch) Put(key, value slice.Slice, deadline entry.Deadline) {
	b.entries = append(b.entries, entry.Put(key, value, b.time, deadline))
}

// Update queues an Update write (only takes effect if a Put already
// exists for key somewhere in the key's stack; otherwise it accumulates
// into a PendingApply per the merger's rules).
func (b *Batch) Update(key, value slice.Slice, deadline entry.Deadline) {
	b.entries = append(b.entries, entry.Update(key, value, b.time, deadline))
}

// Remove queues a point Remove.
func (b *Batch) Remove(key slice.Slice, deadline entry.Deadline) {
	b.entries = append(b.entries, entry.Remove(key, b.time, deadline))
}

// RemoveRange queues a Range write that removes every key in [from, to).
func (b *Batch) RemoveRange(from, to slice.Slice) {
	removal := entry.Remove(from, b.time, entry.NoDeadline)
	b.entries = append(b.entries, entry.RangeEntry(from, to, b.time, nil, &removal))
}

// ApplyFunction queues a registered-function application.
func (b *Batch) ApplyFunction(key slice.Slice, fnID string) {
	b.entries = append(b.entries, entry.Func(key, fnID, b.time))
}

// ToSkipList builds a skiplist.Batch ready for SkipList.Put, preserving
// call order so the skip list's insertOne sequence matches the order this
// Batch's writes were queued (needed for equal-Time same-key resolution).
func (b *Batch) ToSkipList() *skiplist.Batch {
	sb := &skiplist.Batch{}
	for _, e := range b.entries {
		sb.Add(e.Key, e)
	}
	return sb
}
