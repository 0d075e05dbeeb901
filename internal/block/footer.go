package block

import (
	"errors"

	"github.com/swaydb/swaydb-go/internal/checksum"
	"github.com/swaydb/swaydb-go/internal/encoding"
)

// FormatVersion is the current Segment format version, stored as the first
// byte after the magic number per spec.md §6.
const FormatVersion = 1

// Magic identifies a swaydb Segment file.
var Magic = [4]byte{'S', 'W', 'D', 'B'}

// ErrBadMagic is returned when a Segment file does not start with Magic.
var ErrBadMagic = errors.New("block: bad segment magic")

// ErrChecksumMismatch is returned when the footer's CRC32 does not match.
var ErrChecksumMismatch = errors.New("block: footer checksum mismatch")

// BlockPointer locates one typed block within the Segment file.
type BlockPointer struct {
	Offset uint64
	Size   uint64
}

// Present reports whether the pointer references a real block (optional
// blocks like BinarySearchIndex/HashIndex/BloomFilter use the zero value
// to mean "absent").
func (p BlockPointer) Present() bool {
	return p.Size > 0
}

// Footer is the fixed trailer every Segment file ends with, per spec.md
// §4.3: pointers to every block, the Segment's authoritative key range,
// entry count, creation time, format version, and a CRC32 over the footer.
type Footer struct {
	Values            BlockPointer
	SortedIndex       BlockPointer
	BinarySearchIndex BlockPointer // zero value if absent
	HashIndex         BlockPointer // zero value if absent
	BloomFilter       BlockPointer // zero value if absent

	MinKey       []byte
	MaxKey       []byte
	EntryCount   uint64
	CreationTime uint64 // opaque Time, encoded as the uint64 counter form
	Version      uint8
}

func encodePointer(dst []byte, p BlockPointer) []byte {
	dst = encoding.AppendVarint64(dst, p.Offset)
	dst = encoding.AppendVarint64(dst, p.Size)
	return dst
}

func decodePointer(src []byte) (BlockPointer, int, error) {
	off, n1, err := encoding.DecodeVarint64(src)
	if err != nil {
		return BlockPointer{}, 0, err
	}
	size, n2, err := encoding.DecodeVarint64(src[n1:])
	if err != nil {
		return BlockPointer{}, 0, err
	}
	return BlockPointer{Offset: off, Size: size}, n1 + n2, nil
}

// Encode serializes f, including the leading magic/version and trailing
// CRC32 over everything that precedes it.
func (f Footer) Encode() []byte {
	body := append([]byte{}, Magic[:]...)
	body = append(body, FormatVersion)
	body = encodePointer(body, f.Values)
	body = encodePointer(body, f.SortedIndex)
	body = encodePointer(body, f.BinarySearchIndex)
	body = encodePointer(body, f.HashIndex)
	body = encodePointer(body, f.BloomFilter)
	body = encoding.AppendLengthPrefixedSlice(body, f.MinKey)
	body = encoding.AppendLengthPrefixedSlice(body, f.MaxKey)
	body = encoding.AppendVarint64(body, f.EntryCount)
	body = encoding.AppendFixed64(body, f.CreationTime)

	crc := checksum.MaskedValue(body)
	return encoding.AppendFixed32(body, crc)
}

// DecodeFooter parses a Footer from the tail of a Segment file.
func DecodeFooter(data []byte) (Footer, error) {
	if len(data) < 4 {
		return Footer{}, ErrTruncated
	}
	storedCRC := encoding.DecodeFixed32(data[len(data)-4:])
	body := data[:len(data)-4]
	if checksum.MaskedValue(body) != storedCRC {
		return Footer{}, ErrChecksumMismatch
	}

	if len(body) < 5 || [4]byte{body[0], body[1], body[2], body[3]} != Magic {
		return Footer{}, ErrBadMagic
	}
	version := body[4]
	off := 5

	var f Footer
	f.Version = version

	var err error
	if f.Values, err = decodePointerAt(body, &off); err != nil {
		return Footer{}, err
	}
	if f.SortedIndex, err = decodePointerAt(body, &off); err != nil {
		return Footer{}, err
	}
	if f.BinarySearchIndex, err = decodePointerAt(body, &off); err != nil {
		return Footer{}, err
	}
	if f.HashIndex, err = decodePointerAt(body, &off); err != nil {
		return Footer{}, err
	}
	if f.BloomFilter, err = decodePointerAt(body, &off); err != nil {
		return Footer{}, err
	}

	minKey, n2, err := encoding.DecodeLengthPrefixedSlice(body[off:])
	if err != nil {
		return Footer{}, err
	}
	off += n2
	f.MinKey = minKey

	maxKey, n3, err := encoding.DecodeLengthPrefixedSlice(body[off:])
	if err != nil {
		return Footer{}, err
	}
	off += n3
	f.MaxKey = maxKey

	entryCount, n4, err := encoding.DecodeVarint64(body[off:])
	if err != nil {
		return Footer{}, err
	}
	off += n4
	f.EntryCount = entryCount

	if off+8 > len(body) {
		return Footer{}, ErrTruncated
	}
	f.CreationTime = encoding.DecodeFixed64(body[off:])

	return f, nil
}

func decodePointerAt(body []byte, off *int) (BlockPointer, error) {
	p, n, err := decodePointer(body[*off:])
	if err != nil {
		return BlockPointer{}, err
	}
	*off += n
	return p, nil
}

