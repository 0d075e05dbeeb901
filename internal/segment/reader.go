package segment

import (
	"context"
	"errors"

	"github.com/swaydb/swaydb-go/internal/block"
	"github.com/swaydb/swaydb-go/internal/cache"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/filter"
	"github.com/swaydb/swaydb-go/internal/retry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// ErrNotFound is returned by Get when the probed key is absent.
var ErrNotFound = errors.New("segment: key not found")

// BlockSource abstracts how a Reader obtains one Segment file's framed
// bytes at a given (offset, size), so readers can be backed either by an
// in-memory byte slice (transient Segments straight out of compaction) or a
// vfs.RandomAccessFile (persisted Segments).
type BlockSource interface {
	ReadAt(off, size uint64) ([]byte, error)
}

// ByteSource adapts an in-memory Segment file (as produced by Build) to
// BlockSource.
type ByteSource []byte

func (b ByteSource) ReadAt(off, size uint64) ([]byte, error) {
	if off+size > uint64(len(b)) {
		return nil, block.ErrTruncated
	}
	return b[off : off+size], nil
}

// Reader serves point and range reads against one Segment file, applying
// the per-block cache and the spec.md §4.4 five-step lookup algorithm.
type Reader struct {
	id     uint64
	src    BlockSource
	footer block.Footer
	keyCmp slice.Comparator
	cache  *cache.KeyValueLimiter // may be nil: caller wants uncached reads

	bloom  *filter.BloomFilterReader
	hash   *block.HashIndexReader
	bsi    *block.BinarySearchIndexReader
	sorted *block.SortedIndexReader
	opened bool

	retryPolicy retry.Policy // zero value means "one attempt, no retry"
}

// SetRetryPolicy installs the bounded-retry policy (spec.md §4.10) used to
// hide transient decompression/IO races on this Reader's block fetches. A
// Reader with no policy set makes exactly one attempt per block, matching
// the zero-value Policy's MaxRetryLimit<=0 fallback in retry.Do.
func (r *Reader) SetRetryPolicy(p retry.Policy) {
	r.retryPolicy = p
}

// Open parses file's footer and lazily prepares index structures. id
// identifies the Segment for cache keying (conventionally its on-disk file
// number). c may be nil to bypass caching (e.g. for Transient Segments that
// are about to be superseded anyway).
func Open(id uint64, file []byte, keyCmp slice.Comparator, c *cache.KeyValueLimiter) (*Reader, error) {
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	if len(file) < 4 {
		return nil, block.ErrTruncated
	}
	footer, err := block.DecodeFooter(file)
	if err != nil {
		return nil, err
	}
	return &Reader{id: id, src: ByteSource(file), footer: footer, keyCmp: keyCmp, cache: c}, nil
}

// MinKey and MaxKey return the Segment's authoritative key range, per
// spec.md §4.3 ("A Segment's key range [minKey, maxKey] is authoritative
// for level-placement decisions").
func (r *Reader) MinKey() slice.Slice { return slice.Of(r.footer.MinKey) }
func (r *Reader) MaxKey() slice.Slice { return slice.Of(r.footer.MaxKey) }

// Bytes returns the Segment's raw file bytes and true when r was opened
// from an in-memory ByteSource (a Transient Segment fresh out of Build),
// so a caller like flush/compaction can persist it to disk exactly once.
// Returns ok=false for a Reader backed by a vfs.RandomAccessFile, which is
// already on disk.
func (r *Reader) Bytes() (file []byte, ok bool) {
	b, ok := r.src.(ByteSource)
	if !ok {
		return nil, false
	}
	return []byte(b), true
}
func (r *Reader) EntryCount() uint64  { return r.footer.EntryCount }

func (r *Reader) decompressed(ptr block.BlockPointer) ([]byte, error) {
	fetch := func() ([]byte, error) {
		framed, err := r.src.ReadAt(ptr.Offset, ptr.Size)
		if err != nil {
			return nil, err
		}
		return block.Decode(framed)
	}
	withRetry := func() ([]byte, error) {
		policy := r.retryPolicy
		policy.ResourceID = "segment-block"
		v, err := retry.Do(context.Background(), policy, func() retry.Result[[]byte] {
			b, err := fetch()
			return retry.Result[[]byte]{Value: b, Err: err}
		}, retry.UntilSuccess[[]byte])
		return v, err
	}
	if r.cache == nil {
		return withRetry()
	}
	v, err := r.cache.Get(cache.BlockKey{SegmentID: r.id, Offset: ptr.Offset}, withRetry)
	if errors.Is(err, cache.ErrBlockExceedsBudget) {
		// OutOfMemory-soft (spec.md §7): the block decompressed fine but
		// couldn't be admitted into the cache. Use it directly instead of
		// failing the read.
		return v, nil
	}
	return v, err
}

func (r *Reader) valueResolver() block.ValueResolver {
	return func(ref block.ValueRef) (slice.Slice, error) {
		values, err := r.decompressed(r.footer.Values)
		if err != nil {
			return slice.Empty, err
		}
		if ref.Offset+ref.Length > uint64(len(values)) {
			return slice.Empty, block.ErrTruncated
		}
		return slice.Of(values[ref.Offset : ref.Offset+ref.Length]), nil
	}
}

func (r *Reader) ensureOpen() error {
	if r.opened {
		return nil
	}
	if r.footer.BloomFilter.Present() {
		payload, err := r.decompressed(r.footer.BloomFilter)
		if err != nil {
			return err
		}
		r.bloom = filter.NewBloomFilterReader(payload)
	}
	if r.footer.HashIndex.Present() {
		payload, err := r.decompressed(r.footer.HashIndex)
		if err != nil {
			return err
		}
		r.hash, err = block.NewHashIndexReader(payload)
		if err != nil {
			return err
		}
	}
	if r.footer.BinarySearchIndex.Present() {
		payload, err := r.decompressed(r.footer.BinarySearchIndex)
		if err != nil {
			return err
		}
		r.bsi, err = block.NewBinarySearchIndexReader(payload, r.keyCmp)
		if err != nil {
			return err
		}
	}
	payload, err := r.decompressed(r.footer.SortedIndex)
	if err != nil {
		return err
	}
	r.sorted, err = block.NewSortedIndexReader(payload, r.valueResolver(), r.keyCmp)
	if err != nil {
		return err
	}
	r.opened = true
	return nil
}

// Get implements spec.md §4.4's five-step lookup algorithm.
func (r *Reader) Get(key slice.Slice) (entry.Entry, error) {
	if err := r.ensureOpen(); err != nil {
		return entry.Entry{}, err
	}

	// Step 1: BloomFilter.
	if r.bloom != nil && !r.bloom.MayContain(key.Bytes()) {
		return entry.Entry{}, ErrNotFound
	}

	// Step 2: HashIndex probe.
	if r.hash != nil {
		for _, off := range r.hash.Probe(key) {
			k, e, _, err := r.sorted.EntryAt(int(off))
			if err != nil {
				continue
			}
			// Step 5: validate (fingerprint collisions fall through).
			if r.keyCmp(k.Bytes(), key.Bytes()) == 0 {
				return e, nil
			}
		}
		return entry.Entry{}, ErrNotFound
	}

	// Step 3: BinarySearchIndex, floor restart then scan forward.
	if r.bsi != nil {
		if off, ok := r.bsi.FloorOffset(key); ok {
			e, ok := r.sorted.GetFrom(int(off), key)
			if !ok {
				return entry.Entry{}, ErrNotFound
			}
			return e, nil
		}
		return entry.Entry{}, ErrNotFound
	}

	// Step 4: linear scan from the nearest restart (SortedIndexReader.Get
	// already performs restart-floor binary search internally).
	e, ok := r.sorted.Get(key)
	if !ok {
		return entry.Entry{}, ErrNotFound
	}
	return e, nil
}

// Scan iterates entries with from <= key <= to (either bound empty means
// unbounded), in ascending or descending order, invoking fn until it
// returns false. Values are materialized on demand via the value resolver.
func (r *Reader) Scan(from, to slice.Slice, ascending bool, fn func(slice.Slice, entry.Entry) bool) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if ascending {
		r.sorted.ScanForward(from, func(k slice.Slice, e entry.Entry) bool {
			if !to.IsEmpty() && r.keyCmp(k.Bytes(), to.Bytes()) > 0 {
				return false
			}
			return fn(k, e)
		})
		return nil
	}
	r.sorted.ScanBackward(to, func(k slice.Slice, e entry.Entry) bool {
		if !from.IsEmpty() && r.keyCmp(k.Bytes(), from.Bytes()) < 0 {
			return false
		}
		return fn(k, e)
	})
	return nil
}
