package txn

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the transaction manager and
// client orchestrator report, generalizing the teacher's single sentinel
// errors (internal/storage/mvcc.go's ErrTxNotActive) into an enum the
// orchestrator's retry loop can switch on.
type Kind int

const (
	// KindInvalidArgument marks a malformed request: a timeout outside
	// (0, maxTimeout], or an operation naming an id that was never valid.
	KindInvalidArgument Kind = iota
	// KindNotInProgress marks an operation naming a transaction id that is
	// not currently in the in-progress set.
	KindNotInProgress
	// KindConflict marks a canCommit/commit that found an intersecting
	// committed change-set. Recoverable by retry.
	KindConflict
	// KindInvalidTruncateTime marks a truncateInvalidTxBefore call whose
	// cutoff predates a still in-progress transaction.
	KindInvalidTruncateTime
	// KindSnapshotFailure marks an I/O or codec error exporting/reading a
	// snapshot.
	KindSnapshotFailure
	// KindLogFailure marks an I/O error appending to or reading the edit
	// log.
	KindLogFailure
	// KindTxFailure wraps a cause raised by the client orchestrator,
	// carrying the error of a participant or the coordinator.
	KindTxFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotInProgress:
		return "not-in-progress"
	case KindConflict:
		return "conflict"
	case KindInvalidTruncateTime:
		return "invalid-truncate-time"
	case KindSnapshotFailure:
		return "snapshot-failure"
	case KindLogFailure:
		return "log-failure"
	case KindTxFailure:
		return "tx-failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed error every manager/orchestrator operation returns on
// failure. It supports errors.Is/errors.As against Kind via Is, and
// unwraps to the underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &Error{Kind: KindConflict}) style matching on
// kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// newErr constructs an *Error, the one call site every operation below
// funnels through.
func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, Cause: cause}
}

// KindOf reports the Kind of err if it is (or wraps) an *Error, and false
// otherwise — the primitive the orchestrator's retry loop is built on.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// KindWrap constructs an *Error for callers outside this package (the
// orchestrator, the façade) that need to report a Kind without
// depending on the unexported constructor.
func KindWrap(k Kind, msg string, cause error) *Error {
	return newErr(k, msg, cause)
}
