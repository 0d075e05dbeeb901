// Package slice provides a reference-counted view over a shared byte array,
// supporting cheap sub-slicing without copying, plus the byte orderings the
// engine compares keys and times with.
//
// Reference: modeled on the teacher's internal/dbformat key-comparison idiom,
// generalized from a fixed user-key+trailer format to an opaque ordering
// supplied per Options.
package slice

// Slice is a read-only view over a backing array. Two Slices built from the
// same Of call share the backing array; Slice(from, to) never copies.
type Slice struct {
	data []byte
	from int
	to   int
}

// Of wraps b as a Slice spanning its full length. b is not copied.
func Of(b []byte) Slice {
	return Slice{data: b, from: 0, to: len(b)}
}

// Empty is the zero-length Slice.
var Empty = Slice{}

// Bytes returns the Slice's bytes. The caller must not mutate the result.
func (s Slice) Bytes() []byte {
	if s.data == nil {
		return nil
	}
	return s.data[s.from:s.to]
}

// Len returns the number of bytes in the Slice.
func (s Slice) Len() int {
	return s.to - s.from
}

// IsEmpty reports whether the Slice has zero length.
func (s Slice) IsEmpty() bool {
	return s.Len() == 0
}

// Slice returns the sub-view [from, to) of s, sharing the backing array.
func (s Slice) Slice(from, to int) Slice {
	return Slice{data: s.data, from: s.from + from, to: s.from + to}
}

// Take returns the sub-view [0, n).
func (s Slice) Take(n int) Slice {
	return s.Slice(0, n)
}

// Drop returns the sub-view [n, len(s)).
func (s Slice) Drop(n int) Slice {
	return s.Slice(n, s.Len())
}

// Copy returns a new Slice backed by a freshly allocated array containing
// the same bytes. Use when the original backing array may be reused (e.g.
// a pooled decode buffer) and the view must outlive it.
func (s Slice) Copy() Slice {
	if s.IsEmpty() {
		return Empty
	}
	dup := make([]byte, s.Len())
	copy(dup, s.Bytes())
	return Of(dup)
}

// Comparator orders two byte sequences. Negative means a < b, positive means
// a > b, zero means equal. Used identically for keys and for times.
type Comparator func(a, b []byte) int

// Unsigned is the default ordering: unsigned lexicographic byte comparison.
func Unsigned(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Reverse flips any Comparator, producing descending order.
func Reverse(cmp Comparator) Comparator {
	return func(a, b []byte) int {
		return -cmp(a, b)
	}
}

// Equal reports whether a and b are byte-identical Slices.
func Equal(a, b Slice) bool {
	return Unsigned(a.Bytes(), b.Bytes()) == 0
}
