package compaction

import (
	"testing"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/guard"
	"github.com/swaydb/swaydb-go/internal/level"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func mergeOpts() merge.Options {
	return merge.Options{TimeCompare: slice.Unsigned, KeyCompare: slice.Unsigned}
}

func buildSegment(t *testing.T, id uint64, keys []string, timeBase uint64) *level.Segment {
	t.Helper()
	entries := make([]entry.Entry, len(keys))
	for i, k := range keys {
		entries[i] = entry.Put(slice.Of([]byte(k)), slice.Of([]byte(k+"-v")), entry.FromUint64(timeBase+uint64(i)+1), entry.NoDeadline)
	}
	file, err := segment.Build(entries, slice.Unsigned, segment.BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := segment.Open(id, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return &level.Segment{Meta: level.Meta{ID: id, MinKey: r.MinKey(), MaxKey: r.MaxKey(), Size: uint64(len(file))}, Reader: r}
}

func newLevels(t *testing.T) (*level.Level, *level.Level) {
	t.Helper()
	from := level.New(level.Config{Index: 1, TotalBytesThreshold: 1}, slice.Unsigned)
	to := level.New(level.Config{Index: 2}, slice.Unsigned)
	return from, to
}

func TestPickSelectsHighestOverflowLevel(t *testing.T) {
	l0 := level.New(level.Config{Index: 0, TotalBytesThreshold: 1000}, slice.Unsigned)
	l1 := level.New(level.Config{Index: 1, TotalBytesThreshold: 1}, slice.Unsigned)
	l2 := level.New(level.Config{Index: 2, TotalBytesThreshold: 1000}, slice.Unsigned)
	seg := buildSegment(t, 1, []string{"a", "b", "c"}, 0)
	if err := l1.Commit(level.CompactResult{New: []*level.Segment{seg}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	work, ok := Pick([]*level.Level{l0, l1, l2})
	if !ok {
		t.Fatalf("expected a pick")
	}
	if work.FromIndex != 1 {
		t.Fatalf("expected level 1 picked, got %d", work.FromIndex)
	}
}

func TestPickReturnsFalseWhenNoLevelOverflows(t *testing.T) {
	l0 := level.New(level.Config{Index: 0, TotalBytesThreshold: 1000}, slice.Unsigned)
	l1 := level.New(level.Config{Index: 1, TotalBytesThreshold: 1000}, slice.Unsigned)
	if _, ok := Pick([]*level.Level{l0, l1}); ok {
		t.Fatalf("expected no work selected")
	}
}

func nextIDFrom(start uint64) func() uint64 {
	n := start
	return func() uint64 {
		n++
		return n
	}
}

func TestJobDrainMergesInputAndOverlappingTargetThenCommits(t *testing.T) {
	from, to := newLevels(t)
	src := buildSegment(t, 1, []string{"b", "c"}, 0)
	if err := from.Commit(level.CompactResult{New: []*level.Segment{src}}); err != nil {
		t.Fatalf("commit from: %v", err)
	}
	existing := buildSegment(t, 2, []string{"a", "b"}, 1000) // overlaps src on "b", newer time wins
	if err := to.Commit(level.CompactResult{New: []*level.Segment{existing}}); err != nil {
		t.Fatalf("commit to: %v", err)
	}

	work := WorkItem{FromIndex: 0, From: from, To: to, Segments: from.Segments()}
	job := &Job{
		Work:               work,
		KeyCompare:         slice.Unsigned,
		MergeOpts:          mergeOpts(),
		NextSegmentID:      nextIDFrom(100),
		TargetSegmentBytes: 0,
	}
	plan, err := job.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(plan.ToResult.New) != 1 {
		t.Fatalf("expected one written segment, got %d", len(plan.ToResult.New))
	}
	if len(plan.ToResult.Removed) != 1 || plan.ToResult.Removed[0] != 2 {
		t.Fatalf("expected existing target 2 removed, got %v", plan.ToResult.Removed)
	}
	if len(plan.FromResult.Removed) != 1 || plan.FromResult.Removed[0] != 1 {
		t.Fatalf("expected source 1 removed, got %v", plan.FromResult.Removed)
	}

	committer, err := NewCurrentThreadCommitter(work)
	if err != nil {
		t.Fatalf("new committer: %v", err)
	}
	if err := committer.Commit(plan); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(from.Segments()) != 0 {
		t.Fatalf("expected from level drained, got %d segments", len(from.Segments()))
	}
	e, ok, err := to.Get(slice.Of([]byte("b")), mergeOpts())
	if err != nil || !ok {
		t.Fatalf("expected key b present: ok=%v err=%v", ok, err)
	}
	if string(e.Value.Bytes()) != "b-v" {
		t.Fatalf("expected newer value for b, got %q", e.Value.Bytes())
	}
	e, ok, err = to.Get(slice.Of([]byte("a")), mergeOpts())
	if err != nil || !ok || string(e.Value.Bytes()) != "a-v" {
		t.Fatalf("expected untouched key a preserved: ok=%v err=%v e=%+v", ok, err, e)
	}
}

func TestCommitterCommitIsIdempotentUnderRetry(t *testing.T) {
	from, to := newLevels(t)
	src := buildSegment(t, 1, []string{"b", "c"}, 0)
	if err := from.Commit(level.CompactResult{New: []*level.Segment{src}}); err != nil {
		t.Fatalf("commit from: %v", err)
	}

	work := WorkItem{FromIndex: 0, From: from, To: to, Segments: from.Segments()}
	job := &Job{Work: work, KeyCompare: slice.Unsigned, MergeOpts: mergeOpts(), NextSegmentID: nextIDFrom(300)}
	plan, err := job.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	committer, err := NewCurrentThreadCommitter(work)
	if err != nil {
		t.Fatalf("new committer: %v", err)
	}
	if err := committer.Commit(plan); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// A retried commit of the same Plan (the shape a crash-then-resume would
	// replay) must not duplicate the written segment in the To level nor
	// error trying to re-remove an already-absent From segment.
	if err := committer.Commit(plan); err != nil {
		t.Fatalf("duplicate commit: %v", err)
	}

	toSegs := to.Segments()
	if len(toSegs) != len(plan.ToResult.New) {
		t.Fatalf("expected %d segments in To after duplicate commit, got %d: %+v", len(plan.ToResult.New), len(toSegs), toSegs)
	}
	if len(from.Segments()) != 0 {
		t.Fatalf("expected from level still drained, got %d segments", len(from.Segments()))
	}
}

func TestCurrentThreadCommitterRejectsNonDrainWork(t *testing.T) {
	from, to := newLevels(t)
	a := buildSegment(t, 1, []string{"a"}, 0)
	b := buildSegment(t, 2, []string{"z"}, 0)
	if err := from.Commit(level.CompactResult{New: []*level.Segment{a, b}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	work := WorkItem{FromIndex: 0, From: from, To: to, Segments: []*level.Segment{a}} // partial, not a drain
	if _, err := NewCurrentThreadCommitter(work); err != ErrUnsupportedOperation {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestParallelCommitterSerializesAcrossWorkers(t *testing.T) {
	from, to := newLevels(t)
	src := buildSegment(t, 1, []string{"m"}, 0)
	if err := from.Commit(level.CompactResult{New: []*level.Segment{src}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	work := WorkItem{FromIndex: 0, From: from, To: to, Segments: from.Segments()}
	job := &Job{Work: work, KeyCompare: slice.Unsigned, MergeOpts: mergeOpts(), NextSegmentID: nextIDFrom(200)}
	plan, err := job.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	g := guard.New()
	committer := NewParallelCommitter(g, guard.OwnerToken(1))
	if err := committer.Commit(plan); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if g.IsHeldByCurrentThread(guard.OwnerToken(1)) {
		t.Fatalf("expected guard released after commit")
	}
}

func TestJobStopRequestedAbortsMergeBeforeNextSegment(t *testing.T) {
	from, to := newLevels(t)
	a := buildSegment(t, 1, []string{"a"}, 0)
	b := buildSegment(t, 2, []string{"z"}, 0)
	if err := from.Commit(level.CompactResult{New: []*level.Segment{a, b}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	work := WorkItem{FromIndex: 0, From: from, To: to, Segments: from.Segments()}
	job := &Job{Work: work, KeyCompare: slice.Unsigned, MergeOpts: mergeOpts(), NextSegmentID: nextIDFrom(0)}
	job.Stop()
	if _, err := job.Merge(); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
