package block

import (
	"testing"

	"github.com/swaydb/swaydb-go/internal/compression"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello segment block payload, repeated repeated repeated")
	for _, c := range []compression.Type{compression.NoCompression, compression.SnappyCompression} {
		framed, err := Encode(payload, c)
		if err != nil {
			t.Fatalf("encode(%s): %v", c, err)
		}
		got, err := Decode(framed)
		if err != nil {
			t.Fatalf("decode(%s): %v", c, err)
		}
		if string(got) != string(payload) {
			t.Fatalf("round trip mismatch for %s: got %q", c, got)
		}
	}
}

func TestSortedIndexBuilderReaderGet(t *testing.T) {
	b := NewSortedIndexBuilder(4)
	keys := []string{"a", "aa", "ab", "b", "ba", "c", "d", "e", "f", "g"}
	for i, k := range keys {
		e := entry.Put(slice.Of([]byte(k)), slice.Of([]byte(k+"-value")), entry.FromUint64(uint64(i+1)), entry.NoDeadline)
		b.Add(slice.Of([]byte(k)), e, nil)
	}
	payload := b.Finish()

	r, err := NewSortedIndexReader(payload, nil, nil)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	for _, k := range keys {
		got, ok := r.Get(slice.Of([]byte(k)))
		if !ok {
			t.Fatalf("missing key %q", k)
		}
		if string(got.Value.Bytes()) != k+"-value" {
			t.Fatalf("key %q: got value %q", k, got.Value.Bytes())
		}
	}
	if _, ok := r.Get(slice.Of([]byte("zzz"))); ok {
		t.Fatalf("expected miss for absent key")
	}

	first, last, ok := r.KeyRange()
	if !ok || string(first.Bytes()) != "a" || string(last.Bytes()) != "g" {
		t.Fatalf("unexpected key range: %q..%q ok=%v", first.Bytes(), last.Bytes(), ok)
	}
}

func TestSortedIndexScanForwardAndBackward(t *testing.T) {
	b := NewSortedIndexBuilder(0)
	for _, k := range []string{"a", "b", "c", "d"} {
		e := entry.Put(slice.Of([]byte(k)), slice.Of([]byte(k)), entry.FromUint64(1), entry.NoDeadline)
		b.Add(slice.Of([]byte(k)), e, nil)
	}
	r, err := NewSortedIndexReader(b.Finish(), nil, nil)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	var fwd []string
	r.ScanForward(slice.Of([]byte("b")), func(k slice.Slice, e entry.Entry) bool {
		fwd = append(fwd, string(k.Bytes()))
		return true
	})
	if len(fwd) != 3 || fwd[0] != "b" {
		t.Fatalf("unexpected forward scan: %v", fwd)
	}

	var bwd []string
	r.ScanBackward(slice.Of([]byte("c")), func(k slice.Slice, e entry.Entry) bool {
		bwd = append(bwd, string(k.Bytes()))
		return true
	})
	if len(bwd) != 3 || bwd[0] != "c" || bwd[2] != "a" {
		t.Fatalf("unexpected backward scan: %v", bwd)
	}
}

func TestHashIndexProbeFindsInsertedKeys(t *testing.T) {
	hb := NewHashIndexBuilder(8, 8)
	keys := []string{"k1", "k2", "k3", "k4"}
	for i, k := range keys {
		if !hb.Add(slice.Of([]byte(k)), uint32(i*10)) {
			t.Fatalf("unexpected hash index overflow for %q", k)
		}
	}
	hr, err := NewHashIndexReader(hb.Finish())
	if err != nil {
		t.Fatalf("new hash reader: %v", err)
	}
	for i, k := range keys {
		offsets := hr.Probe(slice.Of([]byte(k)))
		found := false
		for _, o := range offsets {
			if o == uint32(i*10) {
				found = true
			}
		}
		if !found {
			t.Fatalf("probe(%q) = %v, expected to include %d", k, offsets, i*10)
		}
	}
}

func TestBinarySearchIndexFloorOffset(t *testing.T) {
	bb := &BinarySearchIndexBuilder{}
	bb.Add(slice.Of([]byte("a")), 0)
	bb.Add(slice.Of([]byte("m")), 100)
	bb.Add(slice.Of([]byte("z")), 200)

	br, err := NewBinarySearchIndexReader(bb.Finish(), nil)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if off, ok := br.FloorOffset(slice.Of([]byte("n"))); !ok || off != 100 {
		t.Fatalf("floor(n) = %d ok=%v, want 100", off, ok)
	}
	if _, ok := br.FloorOffset(slice.Of([]byte("0"))); ok {
		t.Fatalf("expected miss below first pivot")
	}
}

func TestFooterRoundTripAndChecksumDetection(t *testing.T) {
	f := Footer{
		Values:      BlockPointer{Offset: 0, Size: 10},
		SortedIndex: BlockPointer{Offset: 10, Size: 20},
		MinKey:      []byte("a"),
		MaxKey:      []byte("z"),
		EntryCount:  5,
	}
	encoded := f.Encode()
	got, err := DecodeFooter(encoded)
	if err != nil {
		t.Fatalf("decode footer: %v", err)
	}
	if string(got.MinKey) != "a" || string(got.MaxKey) != "z" || got.EntryCount != 5 {
		t.Fatalf("footer mismatch: %+v", got)
	}

	corrupt := append([]byte(nil), encoded...)
	corrupt[0] ^= 0xFF
	if _, err := DecodeFooter(corrupt); err == nil {
		t.Fatalf("expected checksum/magic failure on corrupted footer")
	}
}
