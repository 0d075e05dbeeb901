package manifest

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := Edit{
		Level:   1,
		Added:   []SegmentRef{{ID: 5, MinKey: []byte("a"), MaxKey: []byte("m"), Size: 1024}},
		Removed: []uint64{3, 4},
	}
	rec := Encode(e)
	got, n, err := Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(rec) {
		t.Fatalf("consumed %d, want %d", n, len(rec))
	}
	if got.Level != 1 || len(got.Added) != 1 || got.Added[0].ID != 5 || string(got.Added[0].MinKey) != "a" {
		t.Fatalf("unexpected edit: %+v", got)
	}
	if len(got.Removed) != 2 || got.Removed[0] != 3 {
		t.Fatalf("unexpected removed: %v", got.Removed)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	rec := Encode(Edit{Level: 0, Added: []SegmentRef{{ID: 1, Size: 1}}})
	rec[len(rec)-1] ^= 0xFF
	if _, _, err := Decode(rec); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestReplayFoldsMultipleEditsAcrossLevels(t *testing.T) {
	var log []byte
	log = append(log, Encode(Edit{Level: 1, Added: []SegmentRef{{ID: 1, Size: 10}, {ID: 2, Size: 20}}})...)
	log = append(log, Encode(Edit{Level: 2, Added: []SegmentRef{{ID: 10, Size: 99}}})...)
	log = append(log, Encode(Edit{Level: 1, Added: []SegmentRef{{ID: 3, Size: 30}}, Removed: []uint64{1}})...)

	state, err := Replay(log)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	lvl1 := state.Levels[1]
	if len(lvl1) != 2 {
		t.Fatalf("expected 2 live segments in level 1, got %d", len(lvl1))
	}
	if _, ok := lvl1[1]; ok {
		t.Fatalf("segment 1 should have been removed")
	}
	if _, ok := lvl1[2]; !ok {
		t.Fatalf("segment 2 should still be live")
	}
	if _, ok := lvl1[3]; !ok {
		t.Fatalf("segment 3 should be live")
	}
	if len(state.Levels[2]) != 1 {
		t.Fatalf("expected 1 segment in level 2")
	}
}

func TestReplayIgnoresTornTrailingRecord(t *testing.T) {
	log := Encode(Edit{Level: 0, Added: []SegmentRef{{ID: 1, Size: 5}}})
	torn := append(append([]byte{}, log...), log[:len(log)/2]...)
	state, err := Replay(torn)
	if err != nil {
		t.Fatalf("replay should tolerate a torn trailing record: %v", err)
	}
	if len(state.Levels[0]) != 1 {
		t.Fatalf("expected the complete leading record to still apply")
	}
}
