// Package level implements the persistent Level from spec.md §4.5: an
// ordered collection of Segments, non-overlapping for levels >= 1, exposing
// read merge, assign, and atomic commit.
//
// Reference: grounded on the teacher's internal/version Version/VersionEdit
// pairing (an immutable snapshot of per-level file sets, mutated only by
// building a new Version from an edit), generalized from RocksDB's
// numbered-level-with-compaction-score model to spec.md's
// assign/merge/commit three-stage compaction contract.
package level

import (
	"fmt"
	"sort"
	"sync"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// Config bounds one Level's Segment production, per spec.md §4.5: "target
// Segment size, total-bytes threshold, compaction throttling policy, and
// Segment block configurations".
type Config struct {
	Index              int // 0 is Level Zero's persisted counterpart; >=1 enforce non-overlap
	TargetSegmentBytes uint64
	TotalBytesThreshold uint64
	BuildOptions       segment.BuildOptions
}

// Meta describes one Segment without requiring its blocks to be paged in:
// id, key range, and byte size, enough for assign/placement decisions.
type Meta struct {
	ID     uint64
	MinKey slice.Slice
	MaxKey slice.Slice
	Size   uint64
}

// overlaps reports whether m's key range intersects [minKey, maxKey].
func (m Meta) overlaps(minKey, maxKey slice.Slice, cmp slice.Comparator) bool {
	if !minKey.IsEmpty() && cmp(m.MaxKey.Bytes(), minKey.Bytes()) < 0 {
		return false
	}
	if !maxKey.IsEmpty() && cmp(m.MinKey.Bytes(), maxKey.Bytes()) > 0 {
		return false
	}
	return true
}

// Segment pairs a Meta with its opened reader.
type Segment struct {
	Meta
	Reader *segment.Reader
}

// Level holds an immutable-per-version set of Segments; mutation only
// happens by calling Commit, which atomically swaps the set a reader
// observes (spec.md: "The commit is observable as a single event to
// subsequent reads").
type Level struct {
	cfg    Config
	keyCmp slice.Comparator

	mu       sync.RWMutex
	segments []*Segment // sorted by MinKey for Index >= 1; arbitrary order for Level Zero
}

// New creates an empty Level.
func New(cfg Config, keyCmp slice.Comparator) *Level {
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	return &Level{cfg: cfg, keyCmp: keyCmp}
}

// Segments returns a snapshot slice of the currently committed Segments.
// Safe to iterate concurrently with writers; the slice itself is never
// mutated in place (Commit always allocates a new one).
func (l *Level) Segments() []*Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segments
}

// TotalBytes sums Size across all committed Segments.
func (l *Level) TotalBytes() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, s := range l.segments {
		total += s.Size
	}
	return total
}

// OverflowRatio is how far TotalBytes exceeds cfg.TotalBytesThreshold,
// expressed as a ratio (0 = at or under threshold). Compaction picks
// highest-overflow levels first, per spec.md §4.6.
func (l *Level) OverflowRatio() float64 {
	if l.cfg.TotalBytesThreshold == 0 {
		return 0
	}
	total := l.TotalBytes()
	if total <= l.cfg.TotalBytesThreshold {
		return 0
	}
	return float64(total-l.cfg.TotalBytesThreshold) / float64(l.cfg.TotalBytesThreshold)
}

// Get checks each committed Segment's key range in turn and delegates to
// the Segment reader of every one covering key, per spec.md §4.5. For levels >= 1, non-overlap means
// at most one Segment can match; Level Zero's committed order is oldest
// Segment first, so matches across multiple (permitted overlapping)
// Segments are folded through mergeOpts into one logical result, per §4.2's
// "totally ordered by logical write time" guarantee.
func (l *Level) Get(key slice.Slice, mergeOpts merge.Options) (entry.Entry, bool, error) {
	l.mu.RLock()
	segs := l.segments
	l.mu.RUnlock()

	var found []entry.Entry
	for _, s := range segs {
		if !s.overlaps(key, key, l.keyCmp) {
			continue
		}
		e, err := s.Reader.Get(key)
		if err == segment.ErrNotFound {
			continue
		}
		if err != nil {
			return entry.Entry{}, false, err
		}
		found = append(found, e)
		if l.cfg.Index >= 1 {
			break // non-overlapping invariant: no other Segment can also match
		}
	}
	if len(found) == 0 {
		return entry.Entry{}, false, nil
	}
	merged, ok := merge.MergeAll(found, mergeOpts)
	return merged, ok, nil
}

// Assignment maps an input Segment to the target Segment it overlaps in
// this level, or nil when no existing Segment overlaps it (a brand new
// Segment will be created to hold that portion), per spec.md §4.5 "assign".
type Assignment struct {
	Input  *Segment
	Target *Segment // nil means "no existing target"
}

// Assign classifies each input Segment against this level's current
// Segment set.
func (l *Level) Assign(inputs []*Segment) []Assignment {
	l.mu.RLock()
	targets := l.segments
	l.mu.RUnlock()

	out := make([]Assignment, 0, len(inputs))
	for _, in := range inputs {
		var best *Segment
		for _, t := range targets {
			if t.overlaps(in.MinKey, in.MaxKey, l.keyCmp) {
				best = t
				break
			}
		}
		out = append(out, Assignment{Input: in, Target: best})
	}
	return out
}

// CompactResult is the output of merging an Assignment's inputs against
// their targets: new Transient Segments plus the set of Segments (from
// both source and this level) that the commit must remove.
type CompactResult struct {
	New     []*Segment
	Removed []uint64
}

// Commit atomically publishes CompactResult: new Segments are added, and
// Segments whose ids are in Removed are dropped, as a single observable
// transition (spec.md §4.5 "commit"). Commit is idempotent: a CompactResult
// whose New Segment ids are already present is a no-op for those ids, so a
// retried commit of the same Plan (e.g. after a crash between commit and
// whatever recorded that it had happened) is safe to replay.
func (l *Level) Commit(result CompactResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := make(map[uint64]bool, len(result.Removed))
	for _, id := range result.Removed {
		removed[id] = true
	}

	present := make(map[uint64]bool, len(l.segments))
	next := make([]*Segment, 0, len(l.segments)+len(result.New))
	for _, s := range l.segments {
		if !removed[s.ID] {
			next = append(next, s)
			present[s.ID] = true
		}
	}
	for _, s := range result.New {
		if present[s.ID] {
			continue // already committed: duplicate commit is a no-op for this id
		}
		next = append(next, s)
		present[s.ID] = true
	}

	if l.cfg.Index >= 1 {
		sort.Slice(next, func(i, j int) bool {
			return l.keyCmp(next[i].MinKey.Bytes(), next[j].MinKey.Bytes()) < 0
		})
		if err := checkNonOverlapping(next, l.keyCmp); err != nil {
			return err
		}
	}

	l.segments = next
	return nil
}

func checkNonOverlapping(segs []*Segment, cmp slice.Comparator) error {
	for i := 1; i < len(segs); i++ {
		if cmp(segs[i-1].MaxKey.Bytes(), segs[i].MinKey.Bytes()) >= 0 {
			return fmt.Errorf("level: segments %d and %d overlap after commit", segs[i-1].ID, segs[i].ID)
		}
	}
	return nil
}
