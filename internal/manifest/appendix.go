// Package manifest implements the per-database appendix log from spec.md
// §6: "A per-database appendix file records the current Segment set per
// level." The appendix is an append-only log of Edit records; the current
// state is the fold of every record read in order, mirroring how the
// engine's Level.Commit mutates one Level at a time.
//
// Reference: adapted from the teacher's internal/manifest VersionEdit/Tag
// encoding idiom (an append-only record log replayed to reconstruct state)
// generalized from RocksDB's per-column-family file-number bookkeeping down
// to spec.md's simpler per-level Segment id/range/size set.
package manifest

import (
	"errors"
	"fmt"

	"github.com/swaydb/swaydb-go/internal/checksum"
	"github.com/swaydb/swaydb-go/internal/encoding"
)

// ErrCorrupt is returned when an appendix record's checksum does not match.
var ErrCorrupt = errors.New("manifest: corrupt appendix record")

// SegmentRef identifies one Segment within an Edit: its file number and
// authoritative key range/size, enough to reconstruct level.Meta without
// opening the file.
type SegmentRef struct {
	ID     uint64
	MinKey []byte
	MaxKey []byte
	Size   uint64
}

// Edit is one atomic change to the database's Segment set, produced by a
// Level.Commit. Added/Removed are scoped to Level.
type Edit struct {
	Level   int
	Added   []SegmentRef
	Removed []uint64
}

// Encode serializes e as one length-framed, checksummed appendix record.
func Encode(e Edit) []byte {
	body := encoding.AppendVarint32(nil, uint32(e.Level))
	body = encoding.AppendVarint32(body, uint32(len(e.Added)))
	for _, s := range e.Added {
		body = encoding.AppendVarint64(body, s.ID)
		body = encoding.AppendLengthPrefixedSlice(body, s.MinKey)
		body = encoding.AppendLengthPrefixedSlice(body, s.MaxKey)
		body = encoding.AppendVarint64(body, s.Size)
	}
	body = encoding.AppendVarint32(body, uint32(len(e.Removed)))
	for _, id := range e.Removed {
		body = encoding.AppendVarint64(body, id)
	}

	crc := checksum.MaskedValue(body)
	record := encoding.AppendFixed32(nil, uint32(len(body)))
	record = append(record, body...)
	record = encoding.AppendFixed32(record, crc)
	return record
}

// Decode parses one record from the front of src, returning the Edit and
// the number of bytes consumed.
func Decode(src []byte) (Edit, int, error) {
	if len(src) < 4 {
		return Edit{}, 0, ErrCorrupt
	}
	bodyLen := int(encoding.DecodeFixed32(src))
	if len(src) < 4+bodyLen+4 {
		return Edit{}, 0, ErrCorrupt
	}
	body := src[4 : 4+bodyLen]
	storedCRC := encoding.DecodeFixed32(src[4+bodyLen:])
	if checksum.MaskedValue(body) != storedCRC {
		return Edit{}, 0, ErrCorrupt
	}

	var e Edit
	off := 0
	level, n, err := encoding.DecodeVarint32(body[off:])
	if err != nil {
		return Edit{}, 0, err
	}
	e.Level = int(level)
	off += n

	addedCount, n, err := encoding.DecodeVarint32(body[off:])
	if err != nil {
		return Edit{}, 0, err
	}
	off += n
	e.Added = make([]SegmentRef, 0, addedCount)
	for i := uint32(0); i < addedCount; i++ {
		var ref SegmentRef
		ref.ID, n, err = encoding.DecodeVarint64(body[off:])
		if err != nil {
			return Edit{}, 0, err
		}
		off += n
		ref.MinKey, n, err = encoding.DecodeLengthPrefixedSlice(body[off:])
		if err != nil {
			return Edit{}, 0, err
		}
		off += n
		ref.MaxKey, n, err = encoding.DecodeLengthPrefixedSlice(body[off:])
		if err != nil {
			return Edit{}, 0, err
		}
		off += n
		ref.Size, n, err = encoding.DecodeVarint64(body[off:])
		if err != nil {
			return Edit{}, 0, err
		}
		off += n
		e.Added = append(e.Added, ref)
	}

	removedCount, n, err := encoding.DecodeVarint32(body[off:])
	if err != nil {
		return Edit{}, 0, err
	}
	off += n
	e.Removed = make([]uint64, 0, removedCount)
	for i := uint32(0); i < removedCount; i++ {
		var id uint64
		id, n, err = encoding.DecodeVarint64(body[off:])
		if err != nil {
			return Edit{}, 0, err
		}
		off += n
		e.Removed = append(e.Removed, id)
	}

	return e, 4 + bodyLen + 4, nil
}

// State is the folded current Segment set per level, reconstructed by
// replaying an appendix log from empty.
type State struct {
	Levels map[int]map[uint64]SegmentRef
}

// NewState returns an empty State.
func NewState() *State {
	return &State{Levels: make(map[int]map[uint64]SegmentRef)}
}

// Apply folds one Edit into s.
func (s *State) Apply(e Edit) {
	lvl, ok := s.Levels[e.Level]
	if !ok {
		lvl = make(map[uint64]SegmentRef)
		s.Levels[e.Level] = lvl
	}
	for _, id := range e.Removed {
		delete(lvl, id)
	}
	for _, ref := range e.Added {
		lvl[ref.ID] = ref
	}
}

// Replay decodes and folds every record in log, in order, returning the
// resulting State. A trailing partial record (a crash mid-append) is
// ignored rather than treated as corruption, matching the teacher's
// MANIFEST recovery tolerance for a torn final record.
func Replay(log []byte) (*State, error) {
	s := NewState()
	off := 0
	for off < len(log) {
		e, n, err := Decode(log[off:])
		if err != nil {
			if off+4 <= len(log) {
				declared := int(encoding.DecodeFixed32(log[off:]))
				if off+4+declared+4 > len(log) {
					break // torn trailing record
				}
			}
			return nil, fmt.Errorf("manifest: replay at offset %d: %w", off, err)
		}
		s.Apply(e)
		off += n
	}
	return s, nil
}
