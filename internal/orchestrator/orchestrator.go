// Package orchestrator drives the client-side transaction lifecycle of
// spec §4.4: start every participant, run the caller's function, collect
// changes, canCommit, persist, commit, postCommit, with rollback on any
// failure and a pluggable retry policy.
//
// Grounded on internal/storage/concurrency.go's WorkerPool/WorkRequest
// fan-out shape (parallel calls dispatched with a sync.WaitGroup, each
// result written to its own slot of a result slice) and its BatchProcessor-adjacent
// retry/backoff numbers, generalized from read/write query dispatch to
// participant lifecycle calls.
package orchestrator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chronodb/chronon/internal/txn"
)

// Participant is one resource manager taking part in a distributed unit
// of work (spec §4.4).
type Participant interface {
	Start(tx *txn.Transaction) error
	UpdateTx(tx *txn.Transaction) error
	GetChanges() ([]txn.ChangeID, error)
	Persist() (bool, error)
	Rollback() (bool, error)
	PostCommit() error
}

// Manager is the subset of *txn.Manager the orchestrator drives.
type Manager interface {
	StartShort(timeout time.Duration) (*txn.Transaction, error)
	StartLong() (*txn.Transaction, error)
	Checkpoint(tx *txn.Transaction) (*txn.Transaction, error)
	CanCommit(tx *txn.Transaction, changeIDs []txn.ChangeID) (bool, error)
	Commit(tx *txn.Transaction) (bool, error)
	Abort(tx *txn.Transaction) error
	Invalidate(id txn.ID) (bool, error)
}

// RetryPolicy decides whether an attempt should be retried and how long
// to wait first.
type RetryPolicy interface {
	NextDelay(attempt int, err error) (time.Duration, bool)
}

// DefaultRetryPolicy retries only on KindConflict, with bounded
// exponential backoff and jitter.
type DefaultRetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewDefaultRetryPolicy returns the spec §4.4 default: retry only on
// conflict, bounded exponential backoff, max attempt count.
func NewDefaultRetryPolicy() *DefaultRetryPolicy {
	return &DefaultRetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p *DefaultRetryPolicy) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	kind, ok := txn.KindOf(err)
	if !ok || kind != txn.KindConflict {
		return 0, false
	}
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return delay/2 + jitter, true
}

// Orchestrator runs units of work against Manager, driving participants
// through the full lifecycle in spec §4.4.
type Orchestrator struct {
	mgr   Manager
	retry RetryPolicy
}

// New creates an Orchestrator. A nil retry uses NewDefaultRetryPolicy.
func New(mgr Manager, retry RetryPolicy) *Orchestrator {
	if retry == nil {
		retry = NewDefaultRetryPolicy()
	}
	return &Orchestrator{mgr: mgr, retry: retry}
}

// Execute runs fn as a SHORT transaction against participants, retrying
// per the configured policy. Participants may be added to the attempt's
// participant set during fn via *Context.AddParticipant, but never removed.
func (o *Orchestrator) Execute(timeout time.Duration, participants []Participant, fn func(ctx *Context) error) error {
	attempt := 0
	for {
		err := o.attempt(timeout, participants, fn)
		if err == nil {
			return nil
		}
		delay, retry := o.retry.NextDelay(attempt, err)
		if !retry {
			return err
		}
		attempt++
		time.Sleep(delay)
	}
}

// Context is handed to the user function so it can read the transaction
// view and add late-joining participants.
type Context struct {
	Tx           *txn.Transaction
	mgr          Manager
	participants []Participant
}

// AddParticipant starts p immediately against the running transaction
// and adds it to the set driven through persist/commit/postCommit.
// Participants cannot be removed once added (spec §4.4).
func (c *Context) AddParticipant(p Participant) error {
	if err := p.Start(c.Tx); err != nil {
		return err
	}
	c.participants = append(c.participants, p)
	return nil
}

func (o *Orchestrator) attempt(timeout time.Duration, participants []Participant, fn func(ctx *Context) error) error {
	tx, err := o.mgr.StartShort(timeout)
	if err != nil {
		return txn.KindWrap(txn.KindTxFailure, "start transaction", err)
	}

	ctx := &Context{Tx: tx, mgr: o.mgr, participants: append([]Participant(nil), participants...)}

	if errs := fanOut(ctx.participants, func(p Participant) error { return p.Start(tx) }); firstErr(errs) != nil {
		rollbackAll(ctx.participants)
		o.mgr.Abort(tx)
		return txn.KindWrap(txn.KindTxFailure, "participant start failed", firstErr(errs))
	}

	if err := fn(ctx); err != nil {
		rollbackAll(ctx.participants)
		o.mgr.Abort(tx)
		return txn.KindWrap(txn.KindTxFailure, "unit of work failed", err)
	}

	changes, err := collectChanges(ctx.participants)
	if err != nil {
		rollbackAll(ctx.participants)
		o.mgr.Abort(tx)
		return txn.KindWrap(txn.KindTxFailure, "collect changes failed", err)
	}

	ok, err := o.mgr.CanCommit(tx, changes)
	if err != nil {
		rollbackAll(ctx.participants)
		o.mgr.Abort(tx)
		return txn.KindWrap(txn.KindTxFailure, "canCommit failed", err)
	}
	if !ok {
		rollbackAll(ctx.participants)
		o.mgr.Abort(tx)
		return &txn.Error{Kind: txn.KindConflict, Msg: "canCommit detected a conflict"}
	}

	if errs := fanOut(ctx.participants, func(p Participant) error {
		done, err := p.Persist()
		if err != nil {
			return err
		}
		if !done {
			return errPersistDeclined
		}
		return nil
	}); firstErr(errs) != nil {
		if rollbackErr := rollbackAllErr(ctx.participants); rollbackErr != nil {
			o.mgr.Invalidate(tx.TransactionID)
		} else {
			o.mgr.Abort(tx)
		}
		return txn.KindWrap(txn.KindTxFailure, "persist failed", firstErr(errs))
	}

	ok, err = o.mgr.Commit(tx)
	if err != nil {
		if rollbackErr := rollbackAllErr(ctx.participants); rollbackErr != nil {
			o.mgr.Invalidate(tx.TransactionID)
		} else {
			o.mgr.Abort(tx)
		}
		return txn.KindWrap(txn.KindTxFailure, "commit failed", err)
	}
	if !ok {
		if rollbackErr := rollbackAllErr(ctx.participants); rollbackErr != nil {
			o.mgr.Invalidate(tx.TransactionID)
		}
		return &txn.Error{Kind: txn.KindConflict, Msg: "commit detected a conflict"}
	}

	// postCommit failures do not roll back; they are reported as
	// tx-failure alongside an otherwise-successful commit.
	if errs := fanOut(ctx.participants, func(p Participant) error { return p.PostCommit() }); firstErr(errs) != nil {
		return txn.KindWrap(txn.KindTxFailure, "postCommit failed", firstErr(errs))
	}
	return nil
}

var errPersistDeclined = &txn.Error{Kind: txn.KindTxFailure, Msg: "participant declined to persist"}

func collectChanges(participants []Participant) ([]txn.ChangeID, error) {
	var all []txn.ChangeID
	for _, p := range participants {
		changes, err := p.GetChanges()
		if err != nil {
			return nil, err
		}
		all = append(all, changes...)
	}
	return all, nil
}

func rollbackAll(participants []Participant) {
	fanOut(participants, func(p Participant) error {
		_, err := p.Rollback()
		return err
	})
}

// rollbackAllErr is like rollbackAll but reports whether any participant
// failed to roll back, the signal that determines abort vs. invalidate.
func rollbackAllErr(participants []Participant) error {
	errs := fanOut(participants, func(p Participant) error {
		ok, err := p.Rollback()
		if err != nil {
			return err
		}
		if !ok {
			return errRollbackDeclined
		}
		return nil
	})
	return firstErr(errs)
}

var errRollbackDeclined = &txn.Error{Kind: txn.KindTxFailure, Msg: "participant rollback declined"}

// fanOut calls fn for every participant concurrently and returns the
// per-participant results in order, mirroring
// internal/storage/concurrency.go's WorkRequest/WorkResult pairing.
func fanOut(participants []Participant, fn func(Participant) error) []error {
	errs := make([]error, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, p Participant) {
			defer wg.Done()
			errs[i] = fn(p)
		}(i, p)
	}
	wg.Wait()
	return errs
}

func firstErr(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
