package compaction

import (
	"github.com/swaydb/swaydb-go/internal/guard"
)

// Committer publishes a Job's Plan, making its output observable to
// readers as spec.md §4.5's "single event". Two implementations are
// provided: CurrentThreadCommitter for the simple single-writer-goroutine
// case, and ParallelCommitter for concurrent compaction workers that still
// need commit publication serialized.
type Committer interface {
	Commit(plan Plan) error
}

// CurrentThreadCommitter publishes a Plan synchronously on the caller's
// goroutine. Per the recorded Open Question decision, it only accepts
// single-level drain compactions (every Segment the Picker selected from
// From is present in the Plan) — selecting it for any other work-item
// shape fails at construction time so the restriction is visible before
// any merge/write work runs.
type CurrentThreadCommitter struct {
	work WorkItem
}

// NewCurrentThreadCommitter validates work is a drain compaction and
// returns a committer for it, or ErrUnsupportedOperation if not.
func NewCurrentThreadCommitter(work WorkItem) (*CurrentThreadCommitter, error) {
	if !isDrain(work) {
		return nil, ErrUnsupportedOperation
	}
	return &CurrentThreadCommitter{work: work}, nil
}

// Commit applies the Plan's two Level.Commit calls directly.
func (c *CurrentThreadCommitter) Commit(plan Plan) error {
	if err := plan.To.Commit(plan.ToResult); err != nil {
		return err
	}
	return plan.From.Commit(plan.FromResult)
}

// ParallelCommitter serializes commit publication across concurrently
// running compaction jobs using a single AtomicThreadLocalGuard, per
// spec.md §4.8: merge and write stages may run on separate worker
// goroutines, but the commit stage itself must observe a strict order so
// two jobs touching the same Level never interleave their Level.Commit
// calls. Unlike CurrentThreadCommitter it accepts any Plan shape (drain,
// in-place rewrite, or subset-replace).
type ParallelCommitter struct {
	guard *guard.Guard
	token guard.OwnerToken
}

// NewParallelCommitter returns a committer that serializes Commit calls
// through g, identifying itself to the guard with token (conventionally
// the calling worker's id; re-using the same token across Commit calls
// from the same worker is safe re-entry, not a second acquisition).
func NewParallelCommitter(g *guard.Guard, token guard.OwnerToken) *ParallelCommitter {
	return &ParallelCommitter{guard: g, token: token}
}

// Commit acquires the guard, publishes both Level.Commit calls, and
// releases it, so a concurrent committer using the same guard never
// observes a partially published Plan.
func (c *ParallelCommitter) Commit(plan Plan) error {
	for !c.guard.TryAcquire(c.token) {
		// Busy-wait on the single compaction-commit slot; callers run this
		// on a dedicated worker goroutine, not latency-sensitive read paths.
	}
	defer c.guard.Release(c.token)

	if err := plan.To.Commit(plan.ToResult); err != nil {
		return err
	}
	return plan.From.Commit(plan.FromResult)
}
