package block

import (
	"sort"

	"github.com/swaydb/swaydb-go/internal/encoding"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// BinarySearchIndexBuilder builds the optional BinarySearchIndex block: a
// sorted array of (key pivot -> sortedIndex byte offset) pairs, one per
// restart point, supporting O(log n) key lookup without scanning restart
// entries out of the SortedIndex block itself.
type BinarySearchIndexBuilder struct {
	buf   []byte
	count int
}

// Add appends one pivot. Pivots MUST arrive in ascending key order.
func (b *BinarySearchIndexBuilder) Add(key slice.Slice, sortedIndexOffset uint32) {
	b.buf = encoding.AppendLengthPrefixedSlice(b.buf, key.Bytes())
	b.buf = encoding.AppendFixed32(b.buf, sortedIndexOffset)
	b.count++
}

// Finish returns the block payload.
func (b *BinarySearchIndexBuilder) Finish() []byte {
	out := encoding.AppendFixed32(nil, uint32(b.count))
	return append(out, b.buf...)
}

// BinarySearchIndexReader looks up the sortedIndex offset of the restart
// whose pivot key is the floor of a probe key.
type BinarySearchIndexReader struct {
	pivots  []slice.Slice
	offsets []uint32
	keyCmp  slice.Comparator
}

// NewBinarySearchIndexReader wraps a decompressed BinarySearchIndex payload.
func NewBinarySearchIndexReader(payload []byte, keyCmp slice.Comparator) (*BinarySearchIndexReader, error) {
	if len(payload) < 4 {
		return nil, ErrTruncated
	}
	count := int(encoding.DecodeFixed32(payload))
	off := 4
	pivots := make([]slice.Slice, 0, count)
	offsets := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		k, n, err := encoding.DecodeLengthPrefixedSlice(payload[off:])
		if err != nil {
			return nil, err
		}
		off += n
		if off+4 > len(payload) {
			return nil, ErrTruncated
		}
		offsets = append(offsets, encoding.DecodeFixed32(payload[off:]))
		off += 4
		pivots = append(pivots, slice.Of(k))
	}
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	return &BinarySearchIndexReader{pivots: pivots, offsets: offsets, keyCmp: keyCmp}, nil
}

// FloorOffset returns the sortedIndex offset of the restart with the
// greatest pivot <= key, and ok=false if key is below every pivot.
func (r *BinarySearchIndexReader) FloorOffset(key slice.Slice) (uint32, bool) {
	i := sort.Search(len(r.pivots), func(i int) bool {
		return r.keyCmp(r.pivots[i].Bytes(), key.Bytes()) > 0
	})
	if i == 0 {
		return 0, false
	}
	return r.offsets[i-1], true
}
