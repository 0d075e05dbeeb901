package segment

import (
	"testing"

	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/slice"
)

func putEntries(keys []string) []entry.Entry {
	out := make([]entry.Entry, len(keys))
	for i, k := range keys {
		out[i] = entry.Put(slice.Of([]byte(k)), slice.Of([]byte(k+"-value")), entry.FromUint64(uint64(i+1)), entry.NoDeadline)
	}
	return out
}

func TestBuildAndGetPlainSortedIndexOnly(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	file, err := Build(putEntries(keys), slice.Unsigned, BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := Open(1, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, k := range keys {
		e, err := r.Get(slice.Of([]byte(k)))
		if err != nil {
			t.Fatalf("get(%q): %v", k, err)
		}
		if string(e.Value.Bytes()) != k+"-value" {
			t.Fatalf("get(%q) = %q", k, e.Value.Bytes())
		}
	}
	if _, err := r.Get(slice.Of([]byte("zzz"))); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}
	if string(r.MinKey().Bytes()) != "a" || string(r.MaxKey().Bytes()) != "h" {
		t.Fatalf("unexpected key range %q..%q", r.MinKey().Bytes(), r.MaxKey().Bytes())
	}
}

func TestBuildAndGetWithBinarySearchIndex(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	file, err := Build(putEntries(keys), slice.Unsigned, BuildOptions{RestartInterval: 2, BinarySearchIndex: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := Open(2, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, k := range keys {
		e, err := r.Get(slice.Of([]byte(k)))
		if err != nil || string(e.Value.Bytes()) != k+"-value" {
			t.Fatalf("get(%q) = %v, %v", k, e, err)
		}
	}
}

func TestBuildAndGetWithHashIndex(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	file, err := Build(putEntries(keys), slice.Unsigned, BuildOptions{HashIndex: true, HashIndexMaxProbe: 8})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := Open(3, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, k := range keys {
		e, err := r.Get(slice.Of([]byte(k)))
		if err != nil || string(e.Value.Bytes()) != k+"-value" {
			t.Fatalf("get(%q) = %v, %v", k, e, err)
		}
	}
	if _, err := r.Get(slice.Of([]byte("zz"))); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildAndGetWithBloomFilterExcludesAbsentKeys(t *testing.T) {
	keys := []string{"a", "b", "c"}
	file, err := Build(putEntries(keys), slice.Unsigned, BuildOptions{FalsePositiveRate: 0.01})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := Open(4, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, k := range keys {
		if _, err := r.Get(slice.Of([]byte(k))); err != nil {
			t.Fatalf("get(%q): %v", k, err)
		}
	}
}

func TestScanForwardAndBackward(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	file, err := Build(putEntries(keys), slice.Unsigned, BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, err := Open(5, file, slice.Unsigned, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var fwd []string
	r.Scan(slice.Of([]byte("b")), slice.Of([]byte("d")), true, func(k slice.Slice, e entry.Entry) bool {
		fwd = append(fwd, string(k.Bytes()))
		return true
	})
	if len(fwd) != 3 || fwd[0] != "b" || fwd[2] != "d" {
		t.Fatalf("unexpected forward scan: %v", fwd)
	}

	var bwd []string
	r.Scan(slice.Of([]byte("b")), slice.Of([]byte("d")), false, func(k slice.Slice, e entry.Entry) bool {
		bwd = append(bwd, string(k.Bytes()))
		return true
	})
	if len(bwd) != 3 || bwd[0] != "d" || bwd[2] != "b" {
		t.Fatalf("unexpected backward scan: %v", bwd)
	}
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	if _, err := Build(nil, slice.Unsigned, BuildOptions{}); err != ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
