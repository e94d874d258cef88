package txn

import "sort"

// ID is a 64-bit monotonically increasing transaction identifier, derived
// from currentTimeMillis*MaxTxPerMs + sequence (spec §3).
type ID int64

// ChangeID is an opaque byte-string identifying a row/key touched by a
// transaction. Equality and hashing are on the raw bytes, so it is used as
// a map key via its string conversion everywhere a set is needed.
type ChangeID []byte

// changeSet is the set representation used for committing/committed
// change-sets: raw-byte equality via string conversion, matching spec §4.2.
type changeSet map[string]struct{}

func newChangeSet(ids []ChangeID) changeSet {
	cs := make(changeSet, len(ids))
	for _, id := range ids {
		cs[string(id)] = struct{}{}
	}
	return cs
}

func (cs changeSet) intersects(other changeSet) bool {
	// Iterate the smaller set.
	small, big := cs, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}

func (cs changeSet) toSlice() []ChangeID {
	out := make([]ChangeID, 0, len(cs))
	for k := range cs {
		out = append(out, ChangeID(k))
	}
	return out
}

// Type is the closed enum of in-progress transaction categories (spec
// §3, §4.1, Design Notes). Serialized as a single byte with an explicit
// mapping table — never as a Go iota ordinal — so log/snapshot
// compatibility survives reordering the const block.
type Type uint8

const (
	typeUnspecified Type = 0
	// TypeShort is a transaction subject to expiration-sweep invalidation.
	TypeShort Type = 1
	// TypeLong is immune to the expiration sweep.
	TypeLong Type = 2
	// TypeCheckpoint marks a write pointer issued via Checkpoint; it
	// inherits its parent transaction's expiration policy.
	TypeCheckpoint Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeShort:
		return "SHORT"
	case TypeLong:
		return "LONG"
	case TypeCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNSPECIFIED"
	}
}

// InProgressTx is the manager-internal record of an allocated but not yet
// terminal transaction (spec §3).
type InProgressTx struct {
	ID ID
	// VisibilityUpperBound is readPointer at the time of start: the
	// boundary that defines "committed since I started" for this tx.
	VisibilityUpperBound ID
	// Expiration is the wall-clock millis at which the manager may
	// invalidate this tx, or -1 for LONG.
	Expiration int64
	Type       Type
	// CheckpointWritePointers lists every write pointer this logical
	// transaction has held, including the original allocation.
	CheckpointWritePointers []ID
}

func (tx *InProgressTx) clone() *InProgressTx {
	cp := *tx
	cp.CheckpointWritePointers = append([]ID(nil), tx.CheckpointWritePointers...)
	return &cp
}

// Transaction is the immutable view object handed to clients on Start or
// Checkpoint (spec §3).
type Transaction struct {
	TransactionID ID
	WritePointer  ID
	ReadPointer   ID
	// Invalids is a sorted list of ids strictly less than WritePointer
	// that must be ignored on read.
	Invalids []ID
	// InProgress is a sorted list of ids strictly less than WritePointer
	// that are concurrent with this transaction (the snapshot-isolation
	// exclusion set).
	InProgress []ID
	// FirstShortInProgress is the smallest id of any SHORT in-progress
	// transaction, a scan-optimization boundary.
	FirstShortInProgress ID
	// CheckpointWritePointers lists prior write pointers this logical
	// transaction has held, so it can read its own earlier writes.
	CheckpointWritePointers []ID
	Type                    Type
}

// IsVisible reports whether version v is visible to this transaction.
// The transaction's own writes (TransactionID or any of its checkpoint
// write pointers, see OwnWrite) are always visible. Any other v is
// visible iff v <= ReadPointer, v is not in Invalids, and v is not in
// InProgress.
func (t *Transaction) IsVisible(v ID) bool {
	if t.OwnWrite(v) {
		return true
	}
	if v > t.ReadPointer {
		return false
	}
	if containsSorted(t.Invalids, v) {
		return false
	}
	if containsSorted(t.InProgress, v) {
		return false
	}
	return true
}

// OwnWrite reports whether v is one of this logical transaction's own
// write pointers (the original allocation or a later checkpoint).
func (t *Transaction) OwnWrite(v ID) bool {
	if v == t.TransactionID {
		return true
	}
	for _, w := range t.CheckpointWritePointers {
		if w == v {
			return true
		}
	}
	return false
}

func containsSorted(xs []ID, v ID) bool {
	i := sort.Search(len(xs), func(i int) bool { return xs[i] >= v })
	return i < len(xs) && xs[i] == v
}

func insertSorted(xs []ID, v ID) []ID {
	i := sort.Search(len(xs), func(i int) bool { return xs[i] >= v })
	if i < len(xs) && xs[i] == v {
		return xs
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

func removeSorted(xs []ID, v ID) []ID {
	i := sort.Search(len(xs), func(i int) bool { return xs[i] >= v })
	if i < len(xs) && xs[i] == v {
		return append(xs[:i], xs[i+1:]...)
	}
	return xs
}
