package swaydb

import "errors"

// Error kinds, per spec.md §7. Each is a package-level sentinel so callers
// match with errors.Is rather than type assertions, matching the teacher's
// stdlib-only error style (no third-party error library appears anywhere
// in the reference corpus's core engine, so none is introduced here).
var (
	// ErrCorruptedBlock is returned when a Segment block's header is
	// malformed, its checksum fails, or decompression errors, after
	// retries are exhausted. The owning Segment is not marked or removed.
	ErrCorruptedBlock = errors.New("swaydb: corrupted block")

	// ErrIOError wraps an underlying read/write/fsync failure. A
	// compaction that hits this aborts without committing.
	ErrIOError = errors.New("swaydb: io error")

	// ErrOutOfMemory names the OutOfMemory-soft condition from spec.md §7:
	// a decompressed block is too large for internal/cache's size budget
	// to ever admit. It is not returned by any Core method — the
	// condition is raised internally as internal/cache.ErrBlockExceedsBudget
	// and caught by internal/segment.Reader, which uses the decompressed
	// payload directly instead of failing the read, so Get/Iterator never
	// see it. It is exported here to document the error kind spec.md
	// names, not as a value any caller should expect from errors.Is.
	ErrOutOfMemory = errors.New("swaydb: cache out of memory")

	// ErrInvalidInput is returned for a malformed key, time, or function
	// id at the API boundary, before any state is touched.
	ErrInvalidInput = errors.New("swaydb: invalid input")

	// ErrClosedDatabase is returned by any operation invoked after Close.
	ErrClosedDatabase = errors.New("swaydb: database is closed")

	// ErrUnsupportedOperation names the error kind for a committer variant
	// asked to commit a shape it does not support. No Core method returns
	// it: when internal/compaction.NewCurrentThreadCommitter rejects a work
	// item with internal/compaction.ErrUnsupportedOperation, Compact
	// commits through a ParallelCommitter instead.
	ErrUnsupportedOperation = errors.New("swaydb: unsupported operation")
)
