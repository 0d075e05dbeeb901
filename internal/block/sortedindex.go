package block

import (
	"github.com/swaydb/swaydb-go/internal/encoding"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// DefaultRestartInterval is the default number of entries between restart
// points, per spec.md §4.3 ("a restart interval (power of two)").
const DefaultRestartInterval = 16

// SortedIndexBuilder accumulates entries in key order, prefix-compressing
// keys against the most recent restart point and recording restart offsets
// so a reader can binary-search them.
//
// Reference: grounded on the teacher's internal/block restart-point idiom
// (table/block_based/block_builder.cc semantics), generalized from
// RocksDB's key+value-length entries to full typed Entry payloads via
// EncodeEntry.
type SortedIndexBuilder struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	count           int
	lastKey         []byte
}

// NewSortedIndexBuilder creates a builder with the given restart interval
// (0 selects DefaultRestartInterval).
func NewSortedIndexBuilder(restartInterval int) *SortedIndexBuilder {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &SortedIndexBuilder{restartInterval: restartInterval}
}

// Add appends one (key, Entry) pair. Keys MUST arrive in ascending order.
func (b *SortedIndexBuilder) Add(key slice.Slice, e entry.Entry, valueRef *ValueRef) {
	shared := 0
	if b.count%b.restartInterval == 0 {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
	} else {
		shared = commonPrefixLen(b.lastKey, key.Bytes())
	}
	unshared := key.Bytes()[shared:]

	b.buf = encoding.AppendVarint32(b.buf, uint32(shared))
	b.buf = encoding.AppendVarint32(b.buf, uint32(len(unshared)))
	b.buf = append(b.buf, unshared...)

	encoded := EncodeEntry(nil, e, valueRef)
	b.buf = encoding.AppendVarint32(b.buf, uint32(len(encoded)))
	b.buf = append(b.buf, encoded...)

	b.lastKey = append(b.lastKey[:0], key.Bytes()...)
	b.count++
}

// Finish returns the block payload (entries followed by the restart-offset
// trailer: each restart as a fixed32, then the restart count as fixed32).
func (b *SortedIndexBuilder) Finish() []byte {
	out := append([]byte(nil), b.buf...)
	for _, r := range b.restarts {
		out = encoding.AppendFixed32(out, r)
	}
	out = encoding.AppendFixed32(out, uint32(len(b.restarts)))
	return out
}

// Count returns the number of entries added so far.
func (b *SortedIndexBuilder) Count() int { return b.count }

// NextOffset returns the byte offset the next Add call will start writing
// at, for callers (the Segment builder) that need to record it alongside a
// BinarySearchIndex pivot or HashIndex slot before the entry is appended.
func (b *SortedIndexBuilder) NextOffset() int { return len(b.buf) }

// AtRestart reports whether the next Add call will begin a new restart
// point (i.e. will reset prefix compression).
func (b *SortedIndexBuilder) AtRestart() bool { return b.count%b.restartInterval == 0 }

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// SortedIndexReader reads entries out of a decompressed SortedIndex block
// payload, per spec.md §4.4's lookup algorithm steps 3-4 (binary-search the
// restart ≤ key, then scan forward; or linear scan from the nearest
// restart).
type SortedIndexReader struct {
	data     []byte
	restarts []uint32
	resolve  ValueResolver
	keyCmp   slice.Comparator
}

// NewSortedIndexReader wraps a decompressed SortedIndex block payload.
func NewSortedIndexReader(payload []byte, resolve ValueResolver, keyCmp slice.Comparator) (*SortedIndexReader, error) {
	if len(payload) < 4 {
		return nil, ErrTruncated
	}
	numRestarts := encoding.DecodeFixed32(payload[len(payload)-4:])
	restartsStart := len(payload) - 4 - int(numRestarts)*4
	if restartsStart < 0 {
		return nil, ErrHeaderCorrupt
	}
	restarts := make([]uint32, numRestarts)
	for i := 0; i < int(numRestarts); i++ {
		restarts[i] = encoding.DecodeFixed32(payload[restartsStart+i*4:])
	}
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	return &SortedIndexReader{data: payload[:restartsStart], restarts: restarts, resolve: resolve, keyCmp: keyCmp}, nil
}

// entryAt decodes one (key, Entry) pair starting at byte offset off within
// r.data, given the key implied by the preceding restart-relative prefix
// state (prevKey). Returns the key, entry, and the offset of the next entry.
func (r *SortedIndexReader) entryAt(off int, prevKey []byte) (slice.Slice, entry.Entry, int, error) {
	shared, n, err := encoding.DecodeVarint32(r.data[off:])
	if err != nil {
		return slice.Empty, entry.Entry{}, 0, err
	}
	off += n
	unsharedLen, n, err := encoding.DecodeVarint32(r.data[off:])
	if err != nil {
		return slice.Empty, entry.Entry{}, 0, err
	}
	off += n
	unshared := r.data[off : off+int(unsharedLen)]
	off += int(unsharedLen)

	key := make([]byte, int(shared)+len(unshared))
	copy(key, prevKey[:shared])
	copy(key[shared:], unshared)

	entryLen, n, err := encoding.DecodeVarint32(r.data[off:])
	if err != nil {
		return slice.Empty, entry.Entry{}, 0, err
	}
	off += n
	e, _, err := DecodeEntry(r.data[off:off+int(entryLen)], slice.Of(key), r.resolve)
	if err != nil {
		return slice.Empty, entry.Entry{}, 0, err
	}
	off += int(entryLen)
	return slice.Of(key), e, off, nil
}

// scanFromRestart walks forward from restart index ri, invoking fn for
// every (key, Entry) pair until fn returns false or the block ends.
func (r *SortedIndexReader) scanFromRestart(ri int, fn func(slice.Slice, entry.Entry) bool) {
	if ri < 0 || ri >= len(r.restarts) {
		return
	}
	off := int(r.restarts[ri])
	var prevKey []byte
	for off < len(r.data) {
		key, e, next, err := r.entryAt(off, prevKey)
		if err != nil {
			return
		}
		if !fn(key, e) {
			return
		}
		prevKey = key.Bytes()
		off = next
	}
}

// Get returns the entry stored for key, or ok=false if absent, following
// spec.md §4.4 steps 3 ("binary-search the restart ≤ key, then scan
// forward") and 5 ("validate the recovered entry's key equals the probe").
func (r *SortedIndexReader) Get(key slice.Slice) (entry.Entry, bool) {
	ri := r.restartFloor(key)
	var found entry.Entry
	ok := false
	r.scanFromRestart(ri, func(k slice.Slice, e entry.Entry) bool {
		cmp := r.keyCmp(k.Bytes(), key.Bytes())
		if cmp == 0 {
			found, ok = e, true
			return false
		}
		return cmp < 0
	})
	return found, ok
}

// restartFloor returns the index of the last restart whose key is <= key.
func (r *SortedIndexReader) restartFloor(key slice.Slice) int {
	lo, hi := 0, len(r.restarts)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		k, _, _, err := r.entryAt(int(r.restarts[mid]), nil)
		if err != nil {
			break
		}
		if r.keyCmp(k.Bytes(), key.Bytes()) <= 0 {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// ScanForward iterates every (key, Entry) pair with key >= from (or from
// the start, if from is empty), stopping when fn returns false.
func (r *SortedIndexReader) ScanForward(from slice.Slice, fn func(slice.Slice, entry.Entry) bool) {
	ri := 0
	if !from.IsEmpty() {
		ri = r.restartFloor(from)
	}
	started := from.IsEmpty()
	r.scanFromRestart(ri, func(k slice.Slice, e entry.Entry) bool {
		if !started {
			if r.keyCmp(k.Bytes(), from.Bytes()) < 0 {
				return true
			}
			started = true
		}
		return fn(k, e)
	})
}

// ScanBackward iterates every (key, Entry) pair with key <= to in
// descending order, stopping when fn returns false. Implemented by
// collecting forward since the block holds no reverse links, mirroring the
// teacher SkipList iterator's Prev() approach.
func (r *SortedIndexReader) ScanBackward(to slice.Slice, fn func(slice.Slice, entry.Entry) bool) {
	var keys []slice.Slice
	var vals []entry.Entry
	r.ScanForward(slice.Empty, func(k slice.Slice, e entry.Entry) bool {
		if !to.IsEmpty() && r.keyCmp(k.Bytes(), to.Bytes()) > 0 {
			return false
		}
		keys = append(keys, k)
		vals = append(vals, e)
		return true
	})
	for i := len(keys) - 1; i >= 0; i-- {
		if !fn(keys[i], vals[i]) {
			return
		}
	}
}

// EntryAt decodes the single entry starting at byte offset off, which need
// not be a restart point: it locates the nearest preceding restart and
// replays entries up to off to reconstruct prefix-compression state. Used
// by HashIndex probes, which address an exact entry rather than a restart.
func (r *SortedIndexReader) EntryAt(off int) (slice.Slice, entry.Entry, int, error) {
	ri := r.restartContaining(off)
	if ri < 0 {
		return slice.Empty, entry.Entry{}, 0, ErrHeaderCorrupt
	}
	cur := int(r.restarts[ri])
	var prevKey []byte
	for {
		k, e, next, err := r.entryAt(cur, prevKey)
		if err != nil {
			return slice.Empty, entry.Entry{}, 0, err
		}
		if cur == off {
			return k, e, next, nil
		}
		if cur > off || next <= cur {
			return slice.Empty, entry.Entry{}, 0, ErrHeaderCorrupt
		}
		prevKey = k.Bytes()
		cur = next
	}
}

// GetFrom scans forward starting at the restart-aligned offset off looking
// for key, per spec.md §4.4 step 3 ("binary-search for the restart <= key,
// then scan forward").
func (r *SortedIndexReader) GetFrom(off int, key slice.Slice) (entry.Entry, bool) {
	var prevKey []byte
	cur := off
	for cur < len(r.data) {
		k, e, next, err := r.entryAt(cur, prevKey)
		if err != nil {
			return entry.Entry{}, false
		}
		cmp := r.keyCmp(k.Bytes(), key.Bytes())
		if cmp == 0 {
			return e, true
		}
		if cmp > 0 {
			return entry.Entry{}, false
		}
		prevKey = k.Bytes()
		cur = next
	}
	return entry.Entry{}, false
}

func (r *SortedIndexReader) restartContaining(off int) int {
	lo, hi := 0, len(r.restarts)-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if int(r.restarts[mid]) <= off {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// KeyRange returns the first and last keys stored in the block.
func (r *SortedIndexReader) KeyRange() (slice.Slice, slice.Slice, bool) {
	var first, last slice.Slice
	found := false
	r.ScanForward(slice.Empty, func(k slice.Slice, e entry.Entry) bool {
		if !found {
			first = k
			found = true
		}
		last = k
		return true
	})
	return first, last, found
}

// sort.Interface is not needed since builders receive pre-sorted input, but
// RestartKeys exposes the decoded restart-point keys for BinarySearchIndex
// construction.
func (r *SortedIndexReader) RestartKeys() []slice.Slice {
	keys := make([]slice.Slice, 0, len(r.restarts))
	for i := range r.restarts {
		k, _, _, err := r.entryAt(int(r.restarts[i]), nil)
		if err != nil {
			break
		}
		keys = append(keys, k)
	}
	return keys
}
