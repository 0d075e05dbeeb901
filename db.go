// Package swaydb implements an embedded, persistent, ordered key-value
// store organized as a multi-level LSM tree: a single in-memory SkipList
// (Level Zero) backed by a write-ahead log, overflowing into persisted
// Segment files across one or more Levels, merged forward by a background
// compaction engine.
//
// Reference: grounded on the teacher's db/db.go Open/Put/Get/Close shape,
// generalized from RocksDB's column-family-oriented DB interface to a
// single-keyspace Core matching spec.md §6's programmatic interface
// (open/put/get/remove/update/applyFunction/iterator/close/delete).
package swaydb

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/swaydb/swaydb-go/internal/batch"
	"github.com/swaydb/swaydb-go/internal/compaction"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/flush"
	"github.com/swaydb/swaydb-go/internal/guard"
	"github.com/swaydb/swaydb-go/internal/iterator"
	"github.com/swaydb/swaydb-go/internal/level"
	"github.com/swaydb/swaydb-go/internal/logging"
	"github.com/swaydb/swaydb-go/internal/manifest"
	"github.com/swaydb/swaydb-go/internal/merge"
	"github.com/swaydb/swaydb-go/internal/retry"
	"github.com/swaydb/swaydb-go/internal/segment"
	"github.com/swaydb/swaydb-go/internal/skiplist"
	"github.com/swaydb/swaydb-go/internal/slice"
	"github.com/swaydb/swaydb-go/internal/vfs"
	"github.com/swaydb/swaydb-go/internal/wal"
)

const manifestFileName = "appendix"

// Core is the open database: Level Zero's SkipList plus every persisted
// Level (levels[0] is Level Zero's own persisted, overlap-permitting
// Segment set; levels[1:] are the non-overlapping Levels compaction feeds
// forward into), the write-ahead log backing Level Zero's durability, and
// the manifest appendix log recording each Level's Segment set.
type Core struct {
	mu sync.RWMutex

	dir     string
	opts    Options
	keyCmp  slice.Comparator
	mergeOp merge.Options
	logger  logging.Logger

	skipList *skiplist.SkipList
	walFile  vfs.WritableFile
	walW     *wal.Writer

	levels []*level.Level // levels[i] has Config.Index == i

	manifestFile vfs.WritableFile

	nextSegmentID uint64
	nextTime      uint64

	guard  *guard.Guard
	gToken guard.OwnerToken

	dirLock io.Closer

	closed atomic.Bool
}

// Open opens (or creates) a database rooted at opts.Directory, replaying
// its write-ahead log and manifest appendix to reconstruct Level Zero's
// in-memory state and every persisted Level's Segment set.
func Open(opts Options) (*Core, error) {
	opts = opts.WithDefaults()
	if opts.Directory == "" {
		return nil, fmt.Errorf("swaydb: %w: Directory must be set", ErrInvalidInput)
	}

	fs := opts.FS
	if err := fs.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}

	dirLock, err := fs.Lock(filepath.Join(opts.Directory, "LOCK"))
	if err != nil {
		return nil, fmt.Errorf("swaydb: %w: directory %q already locked by another Core: %v", ErrIOError, opts.Directory, err)
	}
	opened := false
	defer func() {
		if !opened {
			_ = dirLock.Close()
		}
	}()

	keyCmp := slice.Unsigned
	logger := logging.OrDefault(opts.Logger)
	c := &Core{
		dir:    opts.Directory,
		opts:   opts,
		keyCmp: keyCmp,
		mergeOp: merge.Options{
			TimeCompare: slice.Unsigned,
			KeyCompare:  keyCmp,
			Functions:   opts.Functions,
		},
		skipList: skiplist.New(keyCmp, skiplist.Config{SequentialOrder: opts.WriteOrder == SequentialOrder}),
		guard:    guard.New(),
		gToken:   guard.OwnerToken(1),
		logger:   logger,
		dirLock:  dirLock,
	}
	if dl, ok := logger.(*logging.DefaultLogger); ok {
		dl.SetFatalHandler(func(msg string) {
			c.closed.Store(true)
		})
	}

	for i := range opts.Levels {
		if err := fs.MkdirAll(c.levelDir(i), 0o755); err != nil {
			return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
		}
	}

	state, err := c.replayManifest()
	if err != nil {
		return nil, err
	}
	if err := c.openLevels(state); err != nil {
		return nil, err
	}
	if err := c.replayWAL(); err != nil {
		return nil, err
	}
	if err := c.openWALForAppend(); err != nil {
		return nil, err
	}
	if err := c.openManifestForAppend(); err != nil {
		return nil, err
	}
	opened = true

	l0Segments := 0
	if len(c.levels) > 0 {
		l0Segments = len(c.levels[0].Segments())
	}
	c.logger.Infof(logging.NSDB+"opened database at %q (%d levels, %d segments recovered in level 0)",
		c.dir, len(c.levels), l0Segments)
	return c, nil
}

func (c *Core) levelDir(index int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d", index))
}

func (c *Core) manifestPath() string {
	return filepath.Join(c.dir, manifestFileName)
}

func (c *Core) walPath() string {
	return filepath.Join(c.levelDir(0), "0.wal")
}

func (c *Core) replayManifest() (*manifest.State, error) {
	fs := c.opts.FS
	if !fs.Exists(c.manifestPath()) {
		return manifest.NewState(), nil
	}
	f, err := fs.Open(c.manifestPath())
	if err != nil {
		return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	defer f.Close()

	info, err := fs.Stat(c.manifestPath())
	if err != nil {
		return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	buf := make([]byte, info.Size())
	if _, err := readFull(f, buf); err != nil {
		return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	state, err := manifest.Replay(buf)
	if err != nil {
		return nil, fmt.Errorf("swaydb: %w: %v", ErrCorruptedBlock, err)
	}
	return state, nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// openLevels reconstructs every Level (including Level Zero at index 0)
// from the replayed manifest State, opening each referenced Segment file
// off disk.
func (c *Core) openLevels(state *manifest.State) error {
	fs := c.opts.FS
	c.levels = make([]*level.Level, len(c.opts.Levels))
	var maxID uint64

	for idx, lvlOpts := range c.opts.Levels {
		cfg := level.Config{
			Index:               idx,
			TargetSegmentBytes:  lvlOpts.TargetSegmentBytes,
			TotalBytesThreshold: lvlOpts.TotalBytesThreshold,
			BuildOptions:        lvlOpts.Build,
		}
		lvl := level.New(cfg, c.keyCmp)

		refs := state.Levels[idx]
		ids := make([]uint64, 0, len(refs))
		for id := range refs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		var segs []*level.Segment
		for _, id := range ids {
			ref := refs[id]
			path := filepath.Join(c.levelDir(idx), fmt.Sprintf("%d.seg", id))
			if !fs.Exists(path) {
				continue // referenced but missing: torn manifest tail, skip
			}
			raf, err := fs.OpenRandomAccess(path)
			if err != nil {
				return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
			}
			file := make([]byte, raf.Size())
			if _, err := raf.ReadAt(file, 0); err != nil {
				raf.Close()
				return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
			}
			raf.Close()

			r, err := segment.Open(id, file, c.keyCmp, nil)
			if err != nil {
				return fmt.Errorf("swaydb: %w: %v", ErrCorruptedBlock, err)
			}
			r.SetRetryPolicy(c.blockRetryPolicy())
			segs = append(segs, &level.Segment{
				Meta:   level.Meta{ID: id, MinKey: r.MinKey(), MaxKey: r.MaxKey(), Size: ref.Size},
				Reader: r,
			})
			if id > maxID {
				maxID = id
			}
		}
		if len(segs) > 0 {
			if err := lvl.Commit(level.CompactResult{New: segs}); err != nil {
				return fmt.Errorf("swaydb: %w: %v", ErrCorruptedBlock, err)
			}
		}
		c.levels[idx] = lvl
	}

	c.nextSegmentID = maxID
	return nil
}

func (c *Core) replayWAL() error {
	fs := c.opts.FS
	if !fs.Exists(c.walPath()) {
		return nil
	}
	f, err := fs.Open(c.walPath())
	if err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	defer f.Close()

	recovered := 0
	err = wal.ReplayBatches(f, func(entries []entry.Entry) error {
		b := &skiplist.Batch{}
		for _, e := range entries {
			b.Add(e.Key, e)
			if t := timeAsUint64(e.Time); t > c.nextTime {
				c.nextTime = t
			}
		}
		c.skipList.Put(b, c.mergeOp)
		recovered += len(entries)
		return nil
	})
	if err != nil {
		c.logger.Errorf(logging.NSRecovery+"wal replay at %q: %v", c.walPath(), err)
		return err
	}
	if recovered > 0 {
		c.logger.Infof(logging.NSRecovery+"replayed %d entries from %q", recovered, c.walPath())
	}
	return nil
}

func (c *Core) openWALForAppend() error {
	f, err := c.opts.FS.Create(c.walPath())
	if err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	c.walFile = f
	c.walW = wal.NewWriter(f, 0, false)
	return nil
}

func (c *Core) openManifestForAppend() error {
	fs := c.opts.FS
	var f vfs.WritableFile
	var err error
	if fs.Exists(c.manifestPath()) {
		f, err = fs.OpenForAppend(c.manifestPath())
	} else {
		f, err = fs.Create(c.manifestPath())
	}
	if err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	c.manifestFile = f
	return nil
}

func (c *Core) nextEntryTime() entry.Time {
	return entry.FromUint64(atomic.AddUint64(&c.nextTime, 1))
}

func (c *Core) nextSegID() uint64 {
	return atomic.AddUint64(&c.nextSegmentID, 1)
}

// blockRetryPolicy bounds transient decompression/IO races on a Segment's
// block fetches, per spec.md §4.10, scaled by opts.RetryMaxAttempts.
func (c *Core) blockRetryPolicy() retry.Policy {
	return retry.Policy{MaxRetryLimit: c.opts.RetryMaxAttempts}
}

// Put applies a batch of writes atomically: every entry in b shares one
// Time, so same-key collisions within the batch resolve "last call wins"
// (see internal/batch.Batch), per spec.md §6 "batch entries share one time."
func (c *Core) Put(b *batch.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosedDatabase
	}

	entries := b.Entries()
	if err := wal.AppendBatch(c.walW, entries); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	c.skipList.Put(b.ToSkipList(), c.mergeOp)
	return nil
}

// NewBatch returns an empty batch stamped with a fresh, monotonically
// increasing Time, ready for Put/Update/Remove/RemoveRange/ApplyFunction
// calls.
func (c *Core) NewBatch() *batch.Batch {
	return batch.New(c.nextEntryTime())
}

// Get returns the Put-projection for key: its merged value if the key is
// live, or ok=false if it is absent or was removed.
func (c *Core) Get(key []byte) (slice.Slice, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return slice.Empty, false, ErrClosedDatabase
	}

	k := slice.Of(key)
	var stack []entry.Entry
	if e, ok := c.skipList.Get(k); ok {
		stack = append(stack, e)
	}
	for _, lvl := range c.levels {
		e, ok, err := lvl.Get(k, c.mergeOp)
		if err != nil {
			return slice.Empty, false, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
		}
		if ok {
			stack = append(stack, e)
		}
	}
	if len(stack) == 0 {
		return slice.Empty, false, nil
	}
	merged, ok := merge.MergeAll(stack, c.mergeOp)
	if !ok || !merged.IsPut() {
		return slice.Empty, false, nil
	}
	return merged.Value, true, nil
}

// Update is a single-key convenience over Put: it queues an Update entry
// (merges against the existing value rather than replacing it outright,
// per the merger's Update-vs-Put rule).
func (c *Core) Update(key, value []byte) error {
	b := c.NewBatch()
	b.Update(slice.Of(key), slice.Of(value), entry.NoDeadline)
	return c.Put(b)
}

// Remove deletes a single key.
func (c *Core) Remove(key []byte) error {
	b := c.NewBatch()
	b.Remove(slice.Of(key), entry.NoDeadline)
	return c.Put(b)
}

// RemoveRange deletes every key in [from, to). Per the engine's bounded
// staleness for range deletions (see internal/merge.MergeRanges and
// DESIGN.md), a key in the range becomes invisible the moment it has its
// own stored Range entry at lookup time, and is folded away for good once
// compaction merges the Range entry against it.
func (c *Core) RemoveRange(from, to []byte) error {
	b := c.NewBatch()
	b.RemoveRange(slice.Of(from), slice.Of(to))
	return c.Put(b)
}

// ApplyFunction queues a registered transformation against key, resolved
// lazily the next time the key is read or compacted (see
// merge.FunctionApplier and FunctionRegistry).
func (c *Core) ApplyFunction(key []byte, fnID string) error {
	if c.opts.Functions == nil || !c.opts.Functions.Has(fnID) {
		return fmt.Errorf("swaydb: %w: function %q is not registered", ErrInvalidInput, fnID)
	}
	b := c.NewBatch()
	b.ApplyFunction(slice.Of(key), fnID)
	return c.Put(b)
}

// Iterator returns a merging cursor over [from, to) (empty slices mean
// unbounded) across Level Zero and every persisted Level, in dir order.
func (c *Core) Iterator(from, to []byte, dir iterator.Direction) (*iterator.Iterator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return nil, ErrClosedDatabase
	}

	fromS, toS := slice.Of(from), slice.Of(to)
	skipDir := skiplist.Forward
	if dir == iterator.Descending {
		skipDir = skiplist.Backward
	}

	var sources []iterator.Source
	memSrc := &iterator.SliceSource{}
	c.skipList.Range(fromS, toS, skipDir, func(k slice.Slice, e entry.Entry) bool {
		memSrc.Keys = append(memSrc.Keys, k)
		memSrc.Entries = append(memSrc.Entries, e)
		return true
	})
	sources = append(sources, memSrc)

	for _, lvl := range c.levels {
		for _, seg := range lvl.Segments() {
			segSrc := &iterator.SliceSource{}
			err := seg.Reader.Scan(fromS, toS, dir == iterator.Ascending, func(k slice.Slice, e entry.Entry) bool {
				segSrc.Keys = append(segSrc.Keys, k)
				segSrc.Entries = append(segSrc.Entries, e)
				return true
			})
			if err != nil {
				return nil, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
			}
			sources = append(sources, segSrc)
		}
	}

	return iterator.New(sources, dir, c.keyCmp, c.mergeOp), nil
}

// Flush drains Level Zero's SkipList into a new Segment appended to the
// persisted Level Zero counterpart (levels[0]) and rotates the
// write-ahead log, per spec.md's flush lifecycle note.
func (c *Core) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosedDatabase
	}
	if len(c.levels) == 0 {
		return nil
	}

	job := &flush.Job{
		LevelZero:     c.levels[0],
		KeyCompare:    c.keyCmp,
		BuildOpts:     c.opts.Levels[0].Build,
		NextSegmentID: c.nextSegID,
	}
	result, err := job.Run(c.skipList.Snapshot())
	if err != nil {
		c.logger.Errorf(logging.NSFlush+"build segment: %v", err)
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	if result.Segment == nil {
		return nil
	}
	result.Segment.Reader.SetRetryPolicy(c.blockRetryPolicy())

	// Persist and fsync the Segment file, then the manifest Edit recording
	// it, before Commit makes it visible to readers: spec.md §4.6's stage
	// order and §5's durability invariant both require write+fsync to
	// precede commit, so a crash here never leaves a visible-but-not-durable
	// Segment.
	raw, ok := result.Segment.Reader.Bytes()
	if !ok {
		return fmt.Errorf("swaydb: %w: flushed segment has no in-memory bytes to persist", ErrIOError)
	}
	path := filepath.Join(c.levelDir(0), fmt.Sprintf("%d.seg", result.Segment.ID))
	file, err := c.opts.FS.Create(path)
	if err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	if err := file.Append(raw); err != nil {
		file.Close()
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	file.Close()

	if _, err := c.manifestFile.Write(manifest.Encode(result.Edit)); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	if err := c.manifestFile.Sync(); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}

	if err := job.Commit(result); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	c.logger.Infof(logging.NSFlush+"committed segment %d (%d bytes) to level 0", result.Segment.ID, result.Segment.Size)

	c.skipList = skiplist.New(c.keyCmp, skiplist.Config{SequentialOrder: c.opts.WriteOrder == SequentialOrder})

	c.walFile.Close()
	if err := c.opts.FS.Remove(c.walPath()); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	return c.openWALForAppend()
}

// Compact runs one unit of compaction work (internal/compaction.Pick +
// Job + committer), if any Level currently exceeds its overflow ratio.
// Returns ok=false when nothing needed compacting.
func (c *Core) Compact() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false, ErrClosedDatabase
	}

	work, ok := compaction.Pick(c.levels)
	if !ok {
		return false, nil
	}

	job := &compaction.Job{
		Work:               work,
		KeyCompare:         c.keyCmp,
		MergeOpts:          c.mergeOp,
		BuildOpts:          c.opts.Levels[work.FromIndex].Build,
		TargetSegmentBytes: c.opts.Levels[work.FromIndex].TargetSegmentBytes,
		NextSegmentID:      c.nextSegID,
	}
	plan, err := job.Run()
	if err != nil {
		c.logger.Errorf(logging.NSCompact+"level %d->%d: %v", work.FromIndex, work.FromIndex+1, err)
		return false, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}

	// Persist and fsync every new Segment plus the manifest Edits recording
	// the swap before any Level.Commit call, so a crash between Write and
	// Commit never leaves a visible-but-not-durable Segment (spec.md §4.6
	// stage order, §5 durability invariant).
	if err := c.writeCompactionEdits(work, plan); err != nil {
		return false, err
	}

	var committer compaction.Committer
	if cur, cerr := compaction.NewCurrentThreadCommitter(work); cerr == nil {
		committer = cur
	} else {
		committer = compaction.NewParallelCommitter(c.guard, c.gToken)
	}
	if err := committer.Commit(plan); err != nil {
		c.logger.Errorf(logging.NSCompact+"level %d->%d commit: %v", work.FromIndex, work.FromIndex+1, err)
		return false, fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	c.logger.Infof(logging.NSCompact+"level %d->%d: removed %d, added %d segments",
		work.FromIndex, work.FromIndex+1, len(plan.FromResult.Removed), len(plan.ToResult.New))
	return true, nil
}

// writeCompactionEdits persists every newly created Segment (transient
// in-memory Readers straight out of the compaction Job) and appends the
// from/to manifest Edits recording the swap, ahead of the commit that makes
// them visible.
func (c *Core) writeCompactionEdits(work compaction.WorkItem, plan compaction.Plan) error {
	fromEdit := manifest.Edit{Level: work.FromIndex, Removed: plan.FromResult.Removed}
	toEdit := manifest.Edit{Level: work.FromIndex + 1, Removed: plan.ToResult.Removed}
	for _, s := range plan.ToResult.New {
		toEdit.Added = append(toEdit.Added, manifest.SegmentRef{ID: s.ID, MinKey: s.MinKey.Bytes(), MaxKey: s.MaxKey.Bytes(), Size: s.Size})
	}

	for _, seg := range plan.ToResult.New {
		seg.Reader.SetRetryPolicy(c.blockRetryPolicy())
		raw, ok := seg.Reader.Bytes()
		if !ok {
			continue // already backed by a file on disk
		}
		path := filepath.Join(c.levelDir(work.FromIndex+1), fmt.Sprintf("%d.seg", seg.ID))
		file, err := c.opts.FS.Create(path)
		if err != nil {
			return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
		}
		if err := file.Append(raw); err != nil {
			file.Close()
			return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
		}
		file.Close()
	}

	if _, err := c.manifestFile.Write(manifest.Encode(fromEdit)); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	if _, err := c.manifestFile.Write(manifest.Encode(toEdit)); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	return c.manifestFile.Sync()
}

// Close releases the database's file handles. Subsequent operations
// return ErrClosedDatabase.
func (c *Core) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Infof(logging.NSDB + "closing database")

	var firstErr error
	if c.walFile != nil {
		if err := c.walFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.manifestFile != nil {
		if err := c.manifestFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.dirLock != nil {
		if err := c.dirLock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Delete closes the database (if open) and removes its entire directory.
func (c *Core) Delete() error {
	_ = c.Close()
	if err := c.opts.FS.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("swaydb: %w: %v", ErrIOError, err)
	}
	return nil
}

func timeAsUint64(t entry.Time) uint64 {
	b := slice.Slice(t).Bytes()
	if len(b) != 8 {
		return 0
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
