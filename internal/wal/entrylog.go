package wal

import (
	"bytes"
	"io"

	"github.com/swaydb/swaydb-go/internal/block"
	"github.com/swaydb/swaydb-go/internal/encoding"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/mempool"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// EncodeBatch serializes every Entry in entries as one logical WAL record:
// a varint count followed by length-prefixed key + block.EncodeEntry pairs
// (values always inlined, never indirected through a Values block, since
// a WAL record is self-contained). Entries within a batch must be replayed
// in order to preserve same-key, equal-Time resolution (later call wins).
func EncodeBatch(entries []entry.Entry) []byte {
	buf := mempool.GlobalPool.Get(64 * (len(entries) + 1))
	defer mempool.GlobalPool.Put(buf)

	body := encoding.AppendVarint32(buf, uint32(len(entries)))
	for _, e := range entries {
		body = encoding.AppendLengthPrefixedSlice(body, e.Key.Bytes())
		body = block.EncodeEntry(body, e, nil)
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out
}

// DecodeBatch parses a record produced by EncodeBatch back into its
// entries, in original order.
func DecodeBatch(rec []byte) ([]entry.Entry, error) {
	count, n, err := encoding.DecodeVarint32(rec)
	if err != nil {
		return nil, err
	}
	off := n
	entries := make([]entry.Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		key, kn, err := encoding.DecodeLengthPrefixedSlice(rec[off:])
		if err != nil {
			return nil, err
		}
		off += kn
		e, en, err := block.DecodeEntry(rec[off:], slice.Of(key), nil)
		if err != nil {
			return nil, err
		}
		off += en
		entries = append(entries, e)
	}
	return entries, nil
}

// AppendBatch writes entries to w as one AddRecord call and syncs, so the
// batch is durable before the caller makes it visible in the SkipList.
func AppendBatch(w *Writer, entries []entry.Entry) error {
	if _, err := w.AddRecord(EncodeBatch(entries)); err != nil {
		return err
	}
	return w.Sync()
}

// ReplayBatches reads every record from src in order, decoding each back
// into its entry.Entry slice, invoking fn per batch. Per spec.md §6
// recovery semantics, a trailing corrupted or short record (a crash
// mid-append) is tolerated and stops replay without error; anything
// earlier in the stream must decode cleanly.
func ReplayBatches(src io.Reader, fn func([]entry.Entry) error) error {
	r := NewReader(src, nil, true, 0)
	for {
		rec, err := r.ReadRecord()
		if err != nil {
			if err == io.EOF || err == ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		entries, err := DecodeBatch(rec)
		if err != nil {
			return nil // torn trailing record: stop, don't fail recovery
		}
		if err := fn(entries); err != nil {
			return err
		}
	}
}

// bufferDest adapts a bytes.Buffer for tests and in-process replay without
// touching a real file.
type bufferDest struct {
	buf bytes.Buffer
}

func (b *bufferDest) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferDest) Sync() error                 { return nil }
func (b *bufferDest) Bytes() []byte               { return b.buf.Bytes() }
