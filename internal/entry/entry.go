// Package entry implements the tagged union of key-value records the engine
// merges, stores, and serves: Put, Update, Remove, Function, PendingApply,
// and Range.
//
// Reference: modeled on the teacher's internal/dbformat.ValueType closed enum
// and ParsedInternalKey, generalized from RocksDB's flat value-type set to
// SwayDB's richer per-kind payloads (deadlines, function ids, pending-apply
// chains, range values).
package entry

import "github.com/swaydb/swaydb-go/internal/slice"

// Kind identifies which variant of the tagged union an Entry holds. Kind is
// a closed set; the merger switches on it exhaustively rather than using
// dynamic dispatch, per the engine's "prefer pattern matching" design note.
type Kind uint8

const (
	KindPut Kind = iota
	KindUpdate
	KindRemove
	KindFunction
	KindPendingApply
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "Put"
	case KindUpdate:
		return "Update"
	case KindRemove:
		return "Remove"
	case KindFunction:
		return "Function"
	case KindPendingApply:
		return "PendingApply"
	case KindRange:
		return "Range"
	default:
		return "Unknown"
	}
}

// Deadline is an optional expiry Time; a zero Deadline means "no deadline".
// The engine does not interpret wall-clock time itself (that belongs to the
// external scheduler); it only compares deadlines as opaque Times the same
// way it compares entry Times, per spec's explicit-collaborator split.
type Deadline struct {
	Set  bool
	Time Time
}

// NoDeadline is the zero Deadline.
var NoDeadline = Deadline{}

// PendingOp is one link of a PendingApply chain: either an Update, a
// Function application, or a Remove, each carrying its own Time so the
// chain can be folded in time order once a Put is encountered.
type PendingOp struct {
	Kind     Kind // one of KindUpdate, KindFunction, KindRemove
	Time     Time
	Value    slice.Slice // meaningful for KindUpdate
	Deadline Deadline    // meaningful for KindUpdate/KindRemove
	FnID     string      // meaningful for KindFunction
}

// Entry is the tagged union itself. Every Entry carries Key and Time; the
// remaining fields are meaningful per Kind, documented per field below.
type Entry struct {
	Kind Kind
	Key  slice.Slice
	Time Time

	// Put, Update
	Value    slice.Slice
	Deadline Deadline

	// Function
	FnID string

	// PendingApply: ordered oldest-first
	Pending []PendingOp

	// Range
	ToKey      slice.Slice
	FromValue  *Entry // optional override entry at FromKey, nil if absent
	RangeValue *Entry // applies to every key in [Key, ToKey)
}

// Put builds a Put entry.
func Put(key slice.Slice, value slice.Slice, t Time, deadline Deadline) Entry {
	return Entry{Kind: KindPut, Key: key, Time: t, Value: value, Deadline: deadline}
}

// Update builds an Update entry.
func Update(key slice.Slice, value slice.Slice, t Time, deadline Deadline) Entry {
	return Entry{Kind: KindUpdate, Key: key, Time: t, Value: value, Deadline: deadline}
}

// Remove builds a Remove entry.
func Remove(key slice.Slice, t Time, deadline Deadline) Entry {
	return Entry{Kind: KindRemove, Key: key, Time: t, Deadline: deadline}
}

// Func builds a Function entry referencing a registered transformation.
func Func(key slice.Slice, fnID string, t Time) Entry {
	return Entry{Kind: KindFunction, Key: key, Time: t, FnID: fnID}
}

// Apply builds a PendingApply entry from an ordered, oldest-first chain.
func Apply(key slice.Slice, t Time, ops []PendingOp) Entry {
	return Entry{Kind: KindPendingApply, Key: key, Time: t, Pending: ops}
}

// RangeEntry builds a Range entry covering [fromKey, toKey) with rangeValue
// applying throughout and an optional override at fromKey.
func RangeEntry(fromKey, toKey slice.Slice, t Time, fromValue, rangeValue *Entry) Entry {
	return Entry{Kind: KindRange, Key: fromKey, Time: t, ToKey: toKey, FromValue: fromValue, RangeValue: rangeValue}
}

// IsPut reports whether e is a Put. Used throughout the merger's "last
// level drops pure negatives" rule.
func (e Entry) IsPut() bool {
	return e.Kind == KindPut
}

// HasValue reports whether e currently carries a materialized value,
// i.e. is a live Put (not yet past its deadline — deadline expiry is the
// caller's responsibility to check against the current Time).
func (e Entry) HasValue() bool {
	return e.Kind == KindPut
}

// Clone returns a value copy of e; Pending and range sub-entries are
// re-sliced rather than deep-copied since Slice views are already immutable.
func (e Entry) Clone() Entry {
	out := e
	if e.Pending != nil {
		out.Pending = append([]PendingOp(nil), e.Pending...)
	}
	return out
}
