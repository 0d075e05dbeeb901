package block

import (
	"github.com/swaydb/swaydb-go/internal/encoding"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// ValueRef points into the Values block: a (offset, length) pair, per
// spec.md §4.3 "Values: packed user values referenced by sortedIndex
// entries via (offset,length)".
type ValueRef struct {
	Offset uint64
	Length uint64
}

// EncodeEntry appends the self-describing encoding of e to dst. valueRef,
// when non-nil, replaces e.Value with an indirection into the Values
// block; pass nil to inline the value bytes directly (used for small
// values or for nested Range sub-entries that are never looked up by
// offset).
func EncodeEntry(dst []byte, e entry.Entry, valueRef *ValueRef) []byte {
	dst = append(dst, byte(e.Kind))
	dst = encoding.AppendLengthPrefixedSlice(dst, e.Time.Bytes())
	dst = encodeDeadline(dst, e.Deadline)

	switch e.Kind {
	case entry.KindPut, entry.KindUpdate:
		if valueRef != nil {
			dst = append(dst, 1)
			dst = encoding.AppendVarint64(dst, valueRef.Offset)
			dst = encoding.AppendVarint64(dst, valueRef.Length)
		} else {
			dst = append(dst, 0)
			dst = encoding.AppendLengthPrefixedSlice(dst, e.Value.Bytes())
		}
	case entry.KindFunction:
		dst = encoding.AppendLengthPrefixedSlice(dst, []byte(e.FnID))
	case entry.KindPendingApply:
		dst = encoding.AppendVarint32(dst, uint32(len(e.Pending)))
		for _, op := range e.Pending {
			dst = append(dst, byte(op.Kind))
			dst = encoding.AppendLengthPrefixedSlice(dst, op.Time.Bytes())
			dst = encodeDeadline(dst, op.Deadline)
			switch op.Kind {
			case entry.KindUpdate:
				dst = encoding.AppendLengthPrefixedSlice(dst, op.Value.Bytes())
			case entry.KindFunction:
				dst = encoding.AppendLengthPrefixedSlice(dst, []byte(op.FnID))
			}
		}
	case entry.KindRange:
		dst = encoding.AppendLengthPrefixedSlice(dst, e.ToKey.Bytes())
		dst = encodeOptionalEntry(dst, e.FromValue)
		dst = encodeOptionalEntry(dst, e.RangeValue)
	}
	return dst
}

func encodeOptionalEntry(dst []byte, e *entry.Entry) []byte {
	if e == nil {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	dst = encoding.AppendLengthPrefixedSlice(dst, e.Key.Bytes())
	return EncodeEntry(dst, *e, nil)
}

func encodeDeadline(dst []byte, d entry.Deadline) []byte {
	if !d.Set {
		return append(dst, 0)
	}
	dst = append(dst, 1)
	return encoding.AppendLengthPrefixedSlice(dst, d.Time.Bytes())
}

// ValueResolver resolves an indirect ValueRef into the actual value bytes,
// reading from the Values block. Supplied by the Segment reader.
type ValueResolver func(ref ValueRef) (slice.Slice, error)

// DecodeEntry parses one entry previously written by EncodeEntry. key is
// supplied by the caller (the sortedIndex entry's restart-decompressed
// key), since EncodeEntry does not itself encode the key.
func DecodeEntry(src []byte, key slice.Slice, resolve ValueResolver) (entry.Entry, int, error) {
	if len(src) < 1 {
		return entry.Entry{}, 0, ErrTruncated
	}
	kind := entry.Kind(src[0])
	off := 1

	t, n, err := getLP(src[off:])
	if err != nil {
		return entry.Entry{}, 0, err
	}
	off += n

	deadline, n, err := decodeDeadline(src[off:])
	if err != nil {
		return entry.Entry{}, 0, err
	}
	off += n

	e := entry.Entry{Kind: kind, Key: key, Time: entry.Time(slice.Of(t)), Deadline: deadline}

	switch kind {
	case entry.KindPut, entry.KindUpdate:
		if off >= len(src) {
			return entry.Entry{}, 0, ErrTruncated
		}
		indirect := src[off]
		off++
		if indirect == 1 {
			o, n, err := encoding.DecodeVarint64(src[off:])
			if err != nil {
				return entry.Entry{}, 0, err
			}
			off += n
			l, n, err := encoding.DecodeVarint64(src[off:])
			if err != nil {
				return entry.Entry{}, 0, err
			}
			off += n
			if resolve == nil {
				return entry.Entry{}, 0, ErrHeaderCorrupt
			}
			v, err := resolve(ValueRef{Offset: o, Length: l})
			if err != nil {
				return entry.Entry{}, 0, err
			}
			e.Value = v
		} else {
			v, n, err := getLP(src[off:])
			if err != nil {
				return entry.Entry{}, 0, err
			}
			off += n
			e.Value = slice.Of(v)
		}
	case entry.KindFunction:
		fn, n, err := getLP(src[off:])
		if err != nil {
			return entry.Entry{}, 0, err
		}
		off += n
		e.FnID = string(fn)
	case entry.KindPendingApply:
		count, n, err := encoding.DecodeVarint32(src[off:])
		if err != nil {
			return entry.Entry{}, 0, err
		}
		off += n
		ops := make([]entry.PendingOp, 0, count)
		for i := uint32(0); i < count; i++ {
			if off >= len(src) {
				return entry.Entry{}, 0, ErrTruncated
			}
			opKind := entry.Kind(src[off])
			off++
			opTime, n, err := getLP(src[off:])
			if err != nil {
				return entry.Entry{}, 0, err
			}
			off += n
			opDeadline, n, err := decodeDeadline(src[off:])
			if err != nil {
				return entry.Entry{}, 0, err
			}
			off += n
			op := entry.PendingOp{Kind: opKind, Time: entry.Time(slice.Of(opTime)), Deadline: opDeadline}
			switch opKind {
			case entry.KindUpdate:
				v, n, err := getLP(src[off:])
				if err != nil {
					return entry.Entry{}, 0, err
				}
				off += n
				op.Value = slice.Of(v)
			case entry.KindFunction:
				fn, n, err := getLP(src[off:])
				if err != nil {
					return entry.Entry{}, 0, err
				}
				off += n
				op.FnID = string(fn)
			}
			ops = append(ops, op)
		}
		e.Pending = ops
	case entry.KindRange:
		toKey, n, err := getLP(src[off:])
		if err != nil {
			return entry.Entry{}, 0, err
		}
		off += n
		e.ToKey = slice.Of(toKey)

		fromValue, n, err := decodeOptionalEntry(src[off:], resolve)
		if err != nil {
			return entry.Entry{}, 0, err
		}
		off += n
		e.FromValue = fromValue

		rangeValue, n, err := decodeOptionalEntry(src[off:], resolve)
		if err != nil {
			return entry.Entry{}, 0, err
		}
		off += n
		e.RangeValue = rangeValue
	}
	return e, off, nil
}

func decodeOptionalEntry(src []byte, resolve ValueResolver) (*entry.Entry, int, error) {
	if len(src) < 1 {
		return nil, 0, ErrTruncated
	}
	if src[0] == 0 {
		return nil, 1, nil
	}
	key, n, err := getLP(src[1:])
	if err != nil {
		return nil, 0, err
	}
	off := 1 + n
	e, n, err := DecodeEntry(src[off:], slice.Of(key), resolve)
	if err != nil {
		return nil, 0, err
	}
	return &e, off + n, nil
}

func decodeDeadline(src []byte) (entry.Deadline, int, error) {
	if len(src) < 1 {
		return entry.Deadline{}, 0, ErrTruncated
	}
	if src[0] == 0 {
		return entry.NoDeadline, 1, nil
	}
	t, n, err := getLP(src[1:])
	if err != nil {
		return entry.Deadline{}, 0, err
	}
	return entry.Deadline{Set: true, Time: entry.Time(slice.Of(t))}, 1 + n, nil
}

func getLP(src []byte) ([]byte, int, error) {
	v, n, err := encoding.DecodeLengthPrefixedSlice(src)
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}
