// Package flush implements the SkipList -> Segment flush operation:
// turning Level Zero's in-memory writes into one immutable, persisted
// Segment, per spec.md §4.2/§4.5's "Segments are created by flush/
// compaction" lifecycle note.
//
// Reference: adapted from the teacher's internal/flush FlushJob
// (memtable -> SST write, then VersionEdit application), generalized from
// RocksDB's per-column-family memtable flush to spec.md's single SkipList
// -> Level Zero Segment path, reusing internal/segment.Build in place of
// the teacher's table builder and internal/manifest.Edit in place of
// VersionEdit.
package flush

import (
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/level"
	"github.com/swaydb/swaydb-go/internal/manifest"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/skiplist"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// Job flushes one SkipList snapshot into a new Segment and commits it to
// levelZero.
type Job struct {
	LevelZero     *level.Level
	KeyCompare    slice.Comparator
	BuildOpts     segment.BuildOptions
	NextSegmentID func() uint64
}

// Result is what a successful flush produces: the new Segment plus the
// manifest Edit recording its addition, ready for the caller to append to
// the appendix log before (or as part of) making it visible.
type Result struct {
	Segment *level.Segment
	Edit    manifest.Edit
}

// Run drains snap (a consistent view over the SkipList, per spec.md's
// Snapshot concept) into one Segment. An empty snapshot is a no-op success
// (nothing to flush).
//
// Run does not commit: per spec.md §4.6's stage order ("write, fsync, then
// commit") and §5's durability invariant, the new Segment's bytes must be
// persisted and fsynced by the caller before Commit is called on
// j.LevelZero — see Job.Commit.
func (j *Job) Run(snap *skiplist.Snapshot) (Result, error) {
	entries := collect(snap)
	if len(entries) == 0 {
		return Result{}, nil
	}

	file, err := segment.Build(entries, j.KeyCompare, j.BuildOpts)
	if err != nil {
		return Result{}, err
	}
	id := j.NextSegmentID()
	r, err := segment.Open(id, file, j.KeyCompare, nil)
	if err != nil {
		return Result{}, err
	}
	seg := &level.Segment{
		Meta:   level.Meta{ID: id, MinKey: r.MinKey(), MaxKey: r.MaxKey(), Size: uint64(len(file))},
		Reader: r,
	}

	edit := manifest.Edit{
		Level: 0,
		Added: []manifest.SegmentRef{{
			ID:     seg.ID,
			MinKey: seg.MinKey.Bytes(),
			MaxKey: seg.MaxKey.Bytes(),
			Size:   seg.Size,
		}},
	}
	return Result{Segment: seg, Edit: edit}, nil
}

// Commit makes a flushed Segment visible to readers. The caller must have
// already persisted and fsynced the Segment's bytes (and the manifest Edit
// recording it) before calling this, so a crash between Run and Commit
// leaves nothing durable-but-invisible and nothing visible-but-not-durable.
func (j *Job) Commit(result Result) error {
	if result.Segment == nil {
		return nil
	}
	return j.LevelZero.Commit(level.CompactResult{New: []*level.Segment{result.Segment}})
}

// collect walks snap in ascending key order, producing the entry slice
// segment.Build expects. Level Zero permits overlapping Segments, so no
// merge happens here: every entry as last written is carried through
// untouched, to be resolved against older Segments only at read/compaction
// time.
func collect(snap *skiplist.Snapshot) []entry.Entry {
	var entries []entry.Entry
	snap.Range(slice.Empty, slice.Empty, func(k slice.Slice, e entry.Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}
