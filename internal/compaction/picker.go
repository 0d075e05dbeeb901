// Package compaction implements the compaction engine from spec.md §4.6:
// work selection by overflow ratio, and committers that finalize a
// compaction task through merge/write/commit stages.
//
// Reference: adapted from the teacher's internal/compaction
// LeveledCompactionPicker (score-per-level selection, highest score wins),
// generalized from RocksDB's per-level byte-size-score formula to
// level.Level.OverflowRatio and from column-family-scoped files to a single
// linear level chain.
package compaction

import "github.com/swaydb/swaydb-go/internal/level"

// WorkItem is one unit of selected compaction work: move segs from
// fromLevel to toLevel.
type WorkItem struct {
	FromIndex int
	From      *level.Level
	To        *level.Level
	Segments  []*level.Segment
}

// Pick inspects every level's overflow and selects the one with the
// highest overflow ratio, ties broken by level index ascending, per
// spec.md §4.6. levels[i] must compact into levels[i+1]; the last level is
// never a compaction source. Returns ok=false when no level overflows.
func Pick(levels []*level.Level) (WorkItem, bool) {
	best := -1
	bestRatio := 0.0
	for i := 0; i < len(levels)-1; i++ {
		ratio := levels[i].OverflowRatio()
		if ratio > bestRatio {
			bestRatio = ratio
			best = i
		}
	}
	if best < 0 {
		return WorkItem{}, false
	}
	return WorkItem{
		FromIndex: best,
		From:      levels[best],
		To:        levels[best+1],
		Segments:  levels[best].Segments(),
	}, true
}
