package entry

import "github.com/swaydb/swaydb-go/internal/slice"

// Time is an opaque, totally ordered token attached to every Entry that
// determines dominance during merge. A later Time strictly dominates an
// earlier one; the empty Time is the bottom element (dominated by anything).
//
// Reference: generalized from the teacher's dbformat.SequenceNumber, which
// is a fixed 56-bit counter; SwayDB's time is an opaque byte sequence so we
// keep the counter encoding but expose it through the Slice-based Comparator
// contract used everywhere else in the engine.
type Time slice.Slice

// Empty is the bottom Time: dominated by every non-empty Time.
var Empty = Time(slice.Empty)

// IsEmpty reports whether t is the bottom Time.
func (t Time) IsEmpty() bool {
	return slice.Slice(t).IsEmpty()
}

// Compare orders two Times using cmp. A nil cmp falls back to unsigned
// lexicographic order, matching slice.Unsigned.
func Compare(a, b Time, cmp slice.Comparator) int {
	if cmp == nil {
		cmp = slice.Unsigned
	}
	return cmp(slice.Slice(a).Bytes(), slice.Slice(b).Bytes())
}

// After reports whether a strictly dominates b under cmp.
func After(a, b Time, cmp slice.Comparator) bool {
	return Compare(a, b, cmp) > 0
}

// FromUint64 builds a Time out of a monotonically increasing counter, the
// shape used by Level Zero for same-batch entries and by the compaction
// engine's default clock.
func FromUint64(n uint64) Time {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return Time(slice.Of(b))
}
