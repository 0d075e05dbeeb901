package swaydb

import (
	"time"

	"github.com/swaydb/swaydb-go/internal/compression"
	"github.com/swaydb/swaydb-go/internal/logging"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/vfs"
)

// Compression re-exports internal/compression.Type so callers need only
// import this top-level package, mirroring the teacher's options.go
// aliasing its own internal/compression and internal/checksum packages.
type Compression = compression.Type

const (
	CompressionNone   = compression.NoCompression
	CompressionSnappy = compression.SnappyCompression
	CompressionZstd   = compression.ZstdCompression
	CompressionLZ4    = compression.LZ4Compression
	CompressionZlib   = compression.ZlibCompression
)

// MMAPPolicy re-exports internal/vfs.MMAPPolicy.
type MMAPPolicy = vfs.MMAPPolicy

// WriteOrder selects the SkipList fast path from spec.md §4.7.
type WriteOrder uint8

const (
	// RandomOrder disables the SequentialOrder array fast path; every
	// write goes straight to the linked skip list. Use when keys are not
	// known to arrive sorted.
	RandomOrder WriteOrder = iota
	// SequentialOrder enables the growable sorted-array fast path,
	// degrading to the linked skip list on the first out-of-order
	// insert or the first flush snapshot. Use when the caller can guarantee (or mostly guarantee)
	// ascending-key write order, e.g. bulk loads.
	SequentialOrder
)

// LevelOptions configures one persistent Level's Segment sizing and block
// layout, per spec.md §4.5's "Level holds Segment configuration."
type LevelOptions struct {
	TargetSegmentBytes uint64
	TotalBytesThreshold uint64
	Build              segment.BuildOptions
}

// Options aggregates every knob the engine exposes at open, mirroring the
// teacher's options.go struct shape: Segment sizing, compression, bloom
// false-positive rate, hash/binary-search index selection, cache budget and
// TTL, MMAP policy, write-order selection, retry limits, and the logger.
type Options struct {
	// Directory is the database's root directory; one subdirectory per
	// Level, per spec.md §6.
	Directory string

	// Levels configures each persistent Level (index 1..N); Levels[0], if
	// present, configures Level Zero's persisted Segments. A nil/empty
	// Levels falls back to DefaultLevelOptions repeated for a small
	// default level count.
	Levels []LevelOptions

	// WriteOrder selects the SkipList fast path.
	WriteOrder WriteOrder

	// CacheBudgetBytes and CacheTTL bound the per-Segment block cache
	// (internal/cache.KeyValueLimiter), per spec.md §4.4/§8's concurrent
	// cache-eviction scenario.
	CacheBudgetBytes uint64
	CacheTTL         time.Duration

	// MMAP selects how Segment files are mapped for reads, per spec.md
	// §4.9.
	MMAP MMAPPolicy

	// RetryMaxAttempts bounds internal/retry.Do's transient-failure
	// retries for block decompression races.
	RetryMaxAttempts int

	// Functions registers deterministic transformations usable by
	// applyFunction and PendingApply folding.
	Functions *FunctionRegistry

	// Logger receives structured engine diagnostics; defaults to
	// logging.Discard when nil.
	Logger logging.Logger

	// FS abstracts the filesystem, defaulting to vfs.Default(); tests
	// substitute a fault-injecting or in-memory FS.
	FS vfs.FS
}

// DefaultLevelOptions returns a LevelOptions with the teacher's defaults:
// Snappy compression, a 1% bloom false-positive rate, and binary-search
// indexing (hash indexing is opt-in, since it trades memory for probe
// speed and is not universally a win per spec.md §4.3's open question).
func DefaultLevelOptions() LevelOptions {
	return LevelOptions{
		TargetSegmentBytes: 16 << 20,
		TotalBytesThreshold: 256 << 20,
		Build: segment.BuildOptions{
			Compression:       compression.SnappyCompression,
			FalsePositiveRate: 0.01,
			BinarySearchIndex: true,
		},
	}
}

// WithDefaults fills unset fields of o with the engine's defaults, the way
// the teacher's options.go normalizes a caller-provided Options before
// opening. The receiver is not mutated; a filled copy is returned.
func (o Options) WithDefaults() Options {
	if len(o.Levels) == 0 {
		o.Levels = []LevelOptions{DefaultLevelOptions(), DefaultLevelOptions(), DefaultLevelOptions()}
	}
	if o.CacheBudgetBytes == 0 {
		o.CacheBudgetBytes = 64 << 20
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = 5 * time.Minute
	}
	if o.RetryMaxAttempts == 0 {
		o.RetryMaxAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = logging.Discard
	}
	if o.FS == nil {
		o.FS = vfs.Default()
	}
	if o.Functions == nil {
		o.Functions = NewFunctionRegistry(nil)
	}
	return o
}
