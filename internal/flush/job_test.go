package flush

import (
	"testing"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/level"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/skiplist"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func mergeOpts() merge.Options {
	return merge.Options{TimeCompare: slice.Unsigned, KeyCompare: slice.Unsigned}
}

func nextIDFrom(start uint64) func() uint64 {
	id := start
	return func() uint64 {
		id++
		return id
	}
}

func TestRunFlushesSkipListIntoOneSegmentAndCommits(t *testing.T) {
	sl := skiplist.New(slice.Unsigned, skiplist.Config{})
	b := &skiplist.Batch{}
	b.Add(slice.Of([]byte("a")), entry.Put(slice.Of([]byte("a")), slice.Of([]byte("1")), entry.FromUint64(1), entry.NoDeadline))
	b.Add(slice.Of([]byte("b")), entry.Put(slice.Of([]byte("b")), slice.Of([]byte("2")), entry.FromUint64(2), entry.NoDeadline))
	sl.Put(b, mergeOpts())

	levelZero := level.New(level.Config{Index: 0}, slice.Unsigned)
	job := &Job{
		LevelZero:     levelZero,
		KeyCompare:    slice.Unsigned,
		BuildOpts:     segment.BuildOptions{},
		NextSegmentID: nextIDFrom(0),
	}

	result, err := job.Run(sl.Snapshot())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Segment == nil {
		t.Fatalf("expected a flushed segment")
	}
	if len(levelZero.Segments()) != 0 {
		t.Fatalf("expected Run alone not to commit, got %d segments", len(levelZero.Segments()))
	}
	if result.Edit.Level != 0 || len(result.Edit.Added) != 1 || result.Edit.Added[0].ID != result.Segment.ID {
		t.Fatalf("unexpected edit: %+v", result.Edit)
	}

	// The caller is responsible for persisting result.Segment (and fsyncing
	// result.Edit to a manifest) before calling Commit; this test stands in
	// for that persistence step since it has no disk of its own.
	if err := job.Commit(result); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(levelZero.Segments()) != 1 {
		t.Fatalf("expected 1 committed segment, got %d", len(levelZero.Segments()))
	}

	got, ok, err := levelZero.Get(slice.Of([]byte("a")), mergeOpts())
	if err != nil || !ok || string(got.Value.Bytes()) != "1" {
		t.Fatalf("expected to read back a=1, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestRunOnEmptySnapshotIsNoOp(t *testing.T) {
	sl := skiplist.New(slice.Unsigned, skiplist.Config{})
	levelZero := level.New(level.Config{Index: 0}, slice.Unsigned)
	job := &Job{
		LevelZero:     levelZero,
		KeyCompare:    slice.Unsigned,
		NextSegmentID: nextIDFrom(0),
	}

	result, err := job.Run(sl.Snapshot())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Segment != nil {
		t.Fatalf("expected no segment for an empty snapshot")
	}
	if len(levelZero.Segments()) != 0 {
		t.Fatalf("expected level zero to stay empty")
	}
}
