package compaction

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/level"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// ErrUnsupportedOperation is returned when a committer is asked to publish
// a commit shape it does not support.
var ErrUnsupportedOperation = errors.New("compaction: unsupported commit shape")

// ErrStopped is returned by a Job stage that observed a stop request
// between units of work.
var ErrStopped = errors.New("compaction: job stopped")

// Job executes one WorkItem through merge, write, and commit stages. A stop
// request is honored between units of work: before each input Segment is
// scanned in Merge and before each output Segment is built in Write. A
// Segment build already underway runs to completion, so no partial Segment
// file is ever observable.
//
// Reference: adapted from the teacher's internal/compaction Compaction/Job
// pairing (a picked work item executed as merge-iterator -> SST writer ->
// VersionEdit application), generalized from RocksDB's subcompaction
// splitting down to spec.md's single-item merge/write/commit contract.
type Job struct {
	Work       WorkItem
	KeyCompare slice.Comparator
	MergeOpts  merge.Options
	BuildOpts  segment.BuildOptions

	// TargetSegmentBytes bounds each written Segment's approximate
	// uncompressed input size; zero means "one Segment for the whole job".
	TargetSegmentBytes uint64

	// NextSegmentID allocates an id for each newly written Segment.
	NextSegmentID func() uint64

	stopped atomic.Bool
}

// Stop requests cooperative cancellation. Safe to call concurrently with
// Run from another goroutine.
func (j *Job) Stop() { j.stopped.Store(true) }

func (j *Job) stopRequested() bool { return j.stopped.Load() }

// overlappingTargets returns the To level's Segments overlapping the
// WorkItem's input key range: spec.md §4.5's "assign" step, applied here
// as read rather than placement (we need every existing Segment the new
// data might collide with, not just one).
func (j *Job) overlappingTargets() []*level.Segment {
	if len(j.Work.Segments) == 0 {
		return nil
	}
	minKey, maxKey := j.Work.Segments[0].MinKey, j.Work.Segments[0].MaxKey
	for _, s := range j.Work.Segments[1:] {
		if j.KeyCompare(s.MinKey.Bytes(), minKey.Bytes()) < 0 {
			minKey = s.MinKey
		}
		if j.KeyCompare(s.MaxKey.Bytes(), maxKey.Bytes()) > 0 {
			maxKey = s.MaxKey
		}
	}
	var out []*level.Segment
	for _, t := range j.Work.To.Segments() {
		if overlaps(t, minKey, maxKey, j.KeyCompare) {
			out = append(out, t)
		}
	}
	return out
}

func overlaps(s *level.Segment, minKey, maxKey slice.Slice, cmp slice.Comparator) bool {
	if cmp(s.MaxKey.Bytes(), minKey.Bytes()) < 0 {
		return false
	}
	if cmp(s.MinKey.Bytes(), maxKey.Bytes()) > 0 {
		return false
	}
	return true
}

// keyGroup is every Entry seen for one key, in scan order (input Segments
// first, then overlapping target Segments), awaiting the MergeAll fold.
type keyGroup struct {
	key     slice.Slice
	entries []entry.Entry
}

// Merge implements the job's first stage: read every input Segment and
// every overlapping target Segment, group by key, and fold each group via
// merge.MergeAll. Entries are returned in ascending key order, ready for
// Write to chunk into new Segments.
func (j *Job) Merge() ([]entry.Entry, error) {
	sources := append([]*level.Segment{}, j.Work.Segments...)
	sources = append(sources, j.overlappingTargets()...)

	groups := make(map[string]*keyGroup)
	var order []string
	for _, s := range sources {
		if j.stopRequested() {
			return nil, ErrStopped
		}
		err := s.Reader.Scan(slice.Empty, slice.Empty, true, func(k slice.Slice, e entry.Entry) bool {
			gk := string(k.Bytes())
			g, ok := groups[gk]
			if !ok {
				g = &keyGroup{key: k}
				groups[gk] = g
				order = append(order, gk)
			}
			g.entries = append(g.entries, e)
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	keyCmp := j.KeyCompare
	sort.Slice(order, func(a, b int) bool {
		return keyCmp([]byte(order[a]), []byte(order[b])) < 0
	})

	merged := make([]entry.Entry, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		e, ok := merge.MergeAll(g.entries, j.MergeOpts)
		if ok {
			merged = append(merged, e)
		}
	}
	return merged, nil
}

// Write implements the job's second stage: chunk merged entries into one
// or more new Segments bounded by TargetSegmentBytes, building each via
// segment.Build and opening it uncached (a Transient Segment is about to
// be superseded the instant Commit runs, per the teacher's convention of
// skipping the block cache for about-to-be-replaced output files).
func (j *Job) Write(merged []entry.Entry) ([]*level.Segment, error) {
	if len(merged) == 0 {
		return nil, nil
	}
	var out []*level.Segment
	chunkStart := 0
	chunkSize := uint64(0)

	flush := func(end int) error {
		if j.stopRequested() {
			return ErrStopped
		}
		chunk := merged[chunkStart:end]
		if len(chunk) == 0 {
			return nil
		}
		file, err := segment.Build(chunk, j.KeyCompare, j.BuildOpts)
		if err != nil {
			return err
		}
		id := j.NextSegmentID()
		r, err := segment.Open(id, file, j.KeyCompare, nil)
		if err != nil {
			return err
		}
		out = append(out, &level.Segment{
			Meta: level.Meta{ID: id, MinKey: r.MinKey(), MaxKey: r.MaxKey(), Size: uint64(len(file))},
			Reader: r,
		})
		return nil
	}

	for i, e := range merged {
		chunkSize += entrySize(e)
		if j.TargetSegmentBytes > 0 && chunkSize >= j.TargetSegmentBytes && i > chunkStart {
			if err := flush(i + 1); err != nil {
				return nil, err
			}
			chunkStart = i + 1
			chunkSize = 0
		}
	}
	if chunkStart < len(merged) {
		if err := flush(len(merged)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func entrySize(e entry.Entry) uint64 {
	return uint64(len(e.Key.Bytes()) + len(e.Value.Bytes()))
}

// Plan is the Merge+Write stages' output: what a Committer must publish to
// finalize the job, as two independent Level.Commit calls (source level
// drains its inputs, target level gains the new output and loses whatever
// it contributed as merge input).
type Plan struct {
	From       *level.Level
	FromResult level.CompactResult // Removed only: the input Segment ids
	To         *level.Level
	ToResult   level.CompactResult // New plus Removed: new output, consumed targets
}

// Run executes Merge then Write and assembles the Plan a Committer
// publishes. It does not commit: publication is the Committer's
// responsibility so callers can choose CurrentThreadCommitter or
// ParallelCommitter per spec.md §4.6.
func (j *Job) Run() (Plan, error) {
	merged, err := j.Merge()
	if err != nil {
		return Plan{}, err
	}
	written, err := j.Write(merged)
	if err != nil {
		return Plan{}, err
	}

	fromRemoved := make([]uint64, len(j.Work.Segments))
	for i, s := range j.Work.Segments {
		fromRemoved[i] = s.ID
	}

	toRemoved := make([]uint64, 0)
	for _, t := range j.overlappingTargets() {
		toRemoved = append(toRemoved, t.ID)
	}

	return Plan{
		From:       j.Work.From,
		FromResult: level.CompactResult{Removed: fromRemoved},
		To:         j.Work.To,
		ToResult:   level.CompactResult{New: written, Removed: toRemoved},
	}, nil
}

// isDrain reports whether work selects every Segment currently in From:
// the only shape CurrentThreadCommitter supports, per the recorded Open
// Question decision restricting it to single-level drain compactions.
func isDrain(work WorkItem) bool {
	current := work.From.Segments()
	if len(current) != len(work.Segments) {
		return false
	}
	have := make(map[uint64]bool, len(current))
	for _, s := range current {
		have[s.ID] = true
	}
	for _, s := range work.Segments {
		if !have[s.ID] {
			return false
		}
	}
	return true
}
