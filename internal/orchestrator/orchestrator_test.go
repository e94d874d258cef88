package orchestrator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chronodb/chronon/internal/txn"
)

// dummyManager wraps a real in-memory *txn.Manager (no edit log) behind
// the Manager interface, so tests can inspect its state after Execute.
type dummyManager struct {
	*txn.Manager
}

func newDummyManager(t *testing.T) *dummyManager {
	t.Helper()
	return &dummyManager{Manager: txn.NewManager(txn.Config{MaxTxPerMs: 1000, DefaultTimeout: 30 * time.Second, MaxTimeout: 300 * time.Second})}
}

// dummyParticipant is a test double implementing Participant with
// induced-failure knobs for each lifecycle stage.
type dummyParticipant struct {
	mu sync.Mutex

	failStart      bool
	failPersist    bool
	declinePersist bool
	failCommit     bool // simulated via changes that will be reported, unused directly
	failPostCommit bool
	failRollback   bool
	declineRollback bool

	started    bool
	persisted  bool
	rolledBack bool
	postDone   bool
	changes    []txn.ChangeID
}

func (p *dummyParticipant) Start(tx *txn.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failStart {
		return errors.New("induced start failure")
	}
	p.started = true
	return nil
}

func (p *dummyParticipant) UpdateTx(tx *txn.Transaction) error { return nil }

func (p *dummyParticipant) GetChanges() ([]txn.ChangeID, error) {
	return p.changes, nil
}

func (p *dummyParticipant) Persist() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPersist {
		return false, errors.New("induced persist failure")
	}
	if p.declinePersist {
		return false, nil
	}
	p.persisted = true
	return true, nil
}

func (p *dummyParticipant) Rollback() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failRollback {
		return false, errors.New("induced rollback failure")
	}
	if p.declineRollback {
		return false, nil
	}
	p.rolledBack = true
	return true, nil
}

func (p *dummyParticipant) PostCommit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPostCommit {
		return errors.New("induced postCommit failure")
	}
	p.postDone = true
	return nil
}

func TestExecuteHappyPathCommitsAndRunsPostCommit(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	p := &dummyParticipant{changes: []txn.ChangeID{txn.ChangeID("row:1")}}

	err := o.Execute(time.Second, []Participant{p}, func(ctx *Context) error { return nil })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !p.started || !p.persisted || !p.postDone {
		t.Fatalf("expected full lifecycle to run: %+v", p)
	}
}

func TestExecuteUserFunctionFailureRollsBackAndAborts(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	p := &dummyParticipant{}

	err := o.Execute(time.Second, []Participant{p}, func(ctx *Context) error {
		return errors.New("user function exploded")
	})
	if err == nil {
		t.Fatal("expected Execute to fail")
	}
	if !p.rolledBack {
		t.Fatal("expected participant to be rolled back")
	}
	if n := mgr.Status().InProgressCount; n != 0 {
		t.Fatalf("expected the transaction to be aborted, %d still in progress", n)
	}
}

func TestExecuteStartFailureNeverRunsUserFunction(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	p := &dummyParticipant{failStart: true}

	ran := false
	err := o.Execute(time.Second, []Participant{p}, func(ctx *Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatal("expected Execute to fail")
	}
	if ran {
		t.Fatal("user function must not run when a participant fails to start")
	}
}

func TestExecutePersistDeclineInvalidatesOnRollbackFailure(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	p := &dummyParticipant{declinePersist: true, declineRollback: true}

	err := o.Execute(time.Second, []Participant{p}, func(ctx *Context) error { return nil })
	if err == nil {
		t.Fatal("expected Execute to fail")
	}
	if mgr.GetInvalidSize() == 0 {
		t.Fatal("expected invalidate to run when rollback itself fails/declines")
	}
}

func TestExecutePostCommitFailureStillReportsCommitSucceeded(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	p := &dummyParticipant{failPostCommit: true}

	err := o.Execute(time.Second, []Participant{p}, func(ctx *Context) error { return nil })
	if err == nil {
		t.Fatal("expected postCommit failure to surface as an error")
	}
	if kind, ok := txn.KindOf(err); !ok || kind != txn.KindTxFailure {
		t.Fatalf("expected KindTxFailure, got %v", kind)
	}
	if !p.persisted {
		t.Fatal("expected persist to have run before postCommit")
	}
	if st := mgr.Status(); st.InProgressCount != 0 || st.ReadPointer != st.WritePointer {
		t.Fatalf("expected commit to have already succeeded before postCommit ran: %+v", st)
	}
}

func TestAddParticipantJoinsRunningTransaction(t *testing.T) {
	mgr := newDummyManager(t)
	o := New(mgr, nil)
	first := &dummyParticipant{}
	late := &dummyParticipant{}

	err := o.Execute(time.Second, []Participant{first}, func(ctx *Context) error {
		return ctx.AddParticipant(late)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !late.started || !late.persisted || !late.postDone {
		t.Fatalf("expected late participant to run the full lifecycle: %+v", late)
	}
}
