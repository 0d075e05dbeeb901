package filter

import "math"

// BitsPerKeyForFalsePositiveRate converts a desired false-positive rate
// (spec.md §4.3's falsePositiveRate Segment block config) into the
// bitsPerKey parameter NewBloomFilterBuilder expects, using the standard
// bloom filter relation bitsPerKey ≈ -log2(rate) / ln(2).
func BitsPerKeyForFalsePositiveRate(rate float64) int {
	if rate <= 0 || rate >= 1 {
		return 10 // a conservative ~1% default
	}
	bits := -math.Log2(rate) / math.Ln2
	if bits < 1 {
		bits = 1
	}
	return int(math.Ceil(bits))
}

// NewBloomFilterBuilderForRate is a convenience constructor mirroring
// spec.md's Segment block configuration surface (falsePositiveRate) rather
// than the lower-level bitsPerKey the teacher's filter_policy.cc exposes.
func NewBloomFilterBuilderForRate(falsePositiveRate float64) *BloomFilterBuilder {
	return NewBloomFilterBuilder(BitsPerKeyForFalsePositiveRate(falsePositiveRate))
}
