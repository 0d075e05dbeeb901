// Package segment assembles and reads Segment files, spec.md §4.3/§4.4: the
// Values/SortedIndex/BinarySearchIndex/HashIndex/BloomFilter/Footer block
// sequence, and the five-step lookup algorithm over it.
//
// Reference: grounded on the teacher's internal/table writer/reader pairing
// (table_builder.go assembling data+index+filter blocks, table_reader.go
// implementing Get via index then data-block lookup), generalized to
// spec.md's richer block set and Entry codec.
package segment

import (
	"errors"

	"github.com/swaydb/swaydb-go/internal/block"
	"github.com/swaydb/swaydb-go/internal/compression"
	"github.com/swaydb/swaydb-go/internal/entry"
	"github.com/swaydb/swaydb-go/internal/filter"
	"github.com/swaydb/swaydb-go/internal/slice"
)

// BuildOptions parameterizes one Segment's block configuration, per spec.md
// §4.5 ("Segment block configurations: compression, bloom rate, restart
// interval").
type BuildOptions struct {
	Compression       compression.Type
	RestartInterval   int // 0 selects block.DefaultRestartInterval
	FalsePositiveRate float64 // 0 disables the BloomFilter block
	HashIndex         bool
	HashIndexMaxProbe int // 0 selects a default of 8
	BinarySearchIndex bool
}

// ErrEmptyInput is returned by Build when entries is empty; callers should
// not create zero-entry Segments.
var ErrEmptyInput = errors.New("segment: cannot build from zero entries")

// Build assembles one Segment file from entries, which MUST already be
// sorted ascending by keyCmp. Returns the complete file bytes.
func Build(entries []entry.Entry, keyCmp slice.Comparator, opts BuildOptions) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyInput
	}
	if keyCmp == nil {
		keyCmp = slice.Unsigned
	}
	restartInterval := opts.RestartInterval
	if restartInterval <= 0 {
		restartInterval = block.DefaultRestartInterval
	}

	sib := block.NewSortedIndexBuilder(restartInterval)
	var bsib *block.BinarySearchIndexBuilder
	if opts.BinarySearchIndex {
		bsib = &block.BinarySearchIndexBuilder{}
	}
	var hib *block.HashIndexBuilder
	if opts.HashIndex {
		maxProbe := opts.HashIndexMaxProbe
		if maxProbe <= 0 {
			maxProbe = 8
		}
		hib = block.NewHashIndexBuilder(len(entries), maxProbe)
	}
	var bloomB *filter.BloomFilterBuilder
	if opts.FalsePositiveRate > 0 {
		bloomB = filter.NewBloomFilterBuilderForRate(opts.FalsePositiveRate)
	}

	var valuesBuf []byte
	for _, e := range entries {
		atRestart := sib.AtRestart()
		off := sib.NextOffset()

		var vref *block.ValueRef
		if shouldIndirect(e) {
			v := e.Value.Bytes()
			vref = &block.ValueRef{Offset: uint64(len(valuesBuf)), Length: uint64(len(v))}
			valuesBuf = append(valuesBuf, v...)
		}
		sib.Add(e.Key, e, vref)

		if bsib != nil && atRestart {
			bsib.Add(e.Key, uint32(off))
		}
		if hib != nil {
			if !hib.Add(e.Key, uint32(off)) {
				hib = nil // overflowed: drop the block, readers fall back to BSI/scan
			}
		}
		if bloomB != nil {
			bloomB.AddKey(e.Key.Bytes())
		}
	}

	out := make([]byte, 0, len(valuesBuf)*2)
	var footer block.Footer
	footer.Version = block.FormatVersion
	footer.EntryCount = uint64(len(entries))
	footer.MinKey = append([]byte(nil), entries[0].Key.Bytes()...)
	footer.MaxKey = append([]byte(nil), entries[len(entries)-1].Key.Bytes()...)

	var err error
	out, footer.Values, err = appendBlock(out, valuesBuf, opts.Compression)
	if err != nil {
		return nil, err
	}
	out, footer.SortedIndex, err = appendBlock(out, sib.Finish(), opts.Compression)
	if err != nil {
		return nil, err
	}
	if bsib != nil {
		out, footer.BinarySearchIndex, err = appendBlock(out, bsib.Finish(), opts.Compression)
		if err != nil {
			return nil, err
		}
	}
	if hib != nil {
		out, footer.HashIndex, err = appendBlock(out, hib.Finish(), opts.Compression)
		if err != nil {
			return nil, err
		}
	}
	if bloomB != nil {
		out, footer.BloomFilter, err = appendBlock(out, bloomB.Finish(), opts.Compression)
		if err != nil {
			return nil, err
		}
	}

	out = append(out, footer.Encode()...)
	return out, nil
}

func shouldIndirect(e entry.Entry) bool {
	return (e.Kind == entry.KindPut || e.Kind == entry.KindUpdate) && !e.Value.IsEmpty()
}

func appendBlock(out, payload []byte, comp compression.Type) ([]byte, block.BlockPointer, error) {
	framed, err := block.Encode(payload, comp)
	if err != nil {
		return out, block.BlockPointer{}, err
	}
	ptr := block.BlockPointer{Offset: uint64(len(out)), Size: uint64(len(framed))}
	return append(out, framed...), ptr, nil
}
