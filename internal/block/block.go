// Package block implements the Segment file's typed-block framing from
// spec.md §4.3: every block (Values, SortedIndex, BinarySearchIndex,
// HashIndex, BloomFilter, Footer) is a header of two varuint sizes plus a
// compression id, followed by the (possibly compressed) payload.
//
// Reference: adapted from the teacher's internal/block restart-point
// prefix-compression idiom and internal/table's writeBlockWithTrailer
// framing, generalized from RocksDB's single data/index/filter block set
// and crc32-in-trailer framing to spec.md's six typed blocks and
// header-carries-both-sizes framing.
package block

import (
	"errors"

	"github.com/swaydb/swaydb-go/internal/compression"
	"github.com/swaydb/swaydb-go/internal/encoding"
)

var (
	// ErrTruncated is returned when a block's header declares more bytes
	// than are available in the buffer it was decoded from.
	ErrTruncated = errors.New("block: truncated")
	// ErrHeaderCorrupt is returned when a block header cannot be parsed.
	ErrHeaderCorrupt = errors.New("block: corrupt header")
)

// Header is the per-block framing prefix.
type Header struct {
	UncompressedSize uint64
	CompressedSize   uint64
	Compression      compression.Type
}

// EncodeHeader appends the varuint-framed header to dst.
func EncodeHeader(dst []byte, h Header) []byte {
	dst = encoding.AppendVarint64(dst, h.UncompressedSize)
	dst = encoding.AppendVarint64(dst, h.CompressedSize)
	dst = append(dst, byte(h.Compression))
	return dst
}

// DecodeHeader parses a Header from the front of src, returning the header
// and the number of bytes it occupied.
func DecodeHeader(src []byte) (Header, int, error) {
	uSize, n1, err := encoding.DecodeVarint64(src)
	if err != nil {
		return Header{}, 0, ErrHeaderCorrupt
	}
	rest := src[n1:]
	cSize, n2, err := encoding.DecodeVarint64(rest)
	if err != nil {
		return Header{}, 0, ErrHeaderCorrupt
	}
	rest = rest[n2:]
	if len(rest) < 1 {
		return Header{}, 0, ErrHeaderCorrupt
	}
	h := Header{UncompressedSize: uSize, CompressedSize: cSize, Compression: compression.Type(rest[0])}
	return h, n1 + n2 + 1, nil
}

// Encode frames payload as one on-disk block: header + (compressed) payload.
func Encode(payload []byte, comp compression.Type) ([]byte, error) {
	compressed := payload
	if comp != compression.NoCompression {
		var err error
		compressed, err = compression.Compress(comp, payload)
		if err != nil {
			return nil, err
		}
	}
	h := Header{UncompressedSize: uint64(len(payload)), CompressedSize: uint64(len(compressed)), Compression: comp}
	out := EncodeHeader(make([]byte, 0, 10+len(compressed)), h)
	return append(out, compressed...), nil
}

// Decode parses a framed block and returns its decompressed payload.
func Decode(framed []byte) ([]byte, error) {
	h, n, err := DecodeHeader(framed)
	if err != nil {
		return nil, err
	}
	body := framed[n:]
	if uint64(len(body)) < h.CompressedSize {
		return nil, ErrTruncated
	}
	body = body[:h.CompressedSize]
	if h.Compression == compression.NoCompression {
		return body, nil
	}
	return compression.DecompressWithSize(h.Compression, body, int(h.UncompressedSize))
}

// FramedSize returns the on-disk size Encode would produce for a payload
// that compresses to compressedLen bytes, without re-encoding it.
func FramedSize(uncompressedLen, compressedLen int) int {
	h := Header{UncompressedSize: uint64(uncompressedLen), CompressedSize: uint64(compressedLen)}
	return len(EncodeHeader(nil, h)) + compressedLen
}
