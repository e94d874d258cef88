package sweep

import (
	"testing"
	"time"

	"github.com/chronodb/chronon/internal/store"
	"github.com/chronodb/chronon/internal/txn"
	"github.com/chronodb/chronon/internal/walog"
)

func newTestSweeper(t *testing.T) (*Sweeper, *txn.Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	w, err := walog.CreateSegment(st.SegmentPath(0), walog.WriterConfig{BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	mgr := txn.NewManager(txn.Config{MaxTxPerMs: 1000, DefaultTimeout: 30 * time.Second, MaxTimeout: 300 * time.Second, Log: w})
	sw := New(mgr, st, w, Config{RetainCount: 5}, nil)
	return sw, mgr, st
}

func TestExpireOnceInvalidatesTimedOutShortTx(t *testing.T) {
	sw, mgr, _ := newTestSweeper(t)
	defer sw.CloseWriter()

	tx, err := mgr.StartShort(10 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	sw.expireOnce()

	if _, err := mgr.Commit(tx); err == nil {
		t.Fatal("expected commit to fail after the tx was swept as expired")
	}
}

func TestExpireOnceLeavesLongTxAlone(t *testing.T) {
	sw, mgr, _ := newTestSweeper(t)
	defer sw.CloseWriter()

	tx, err := mgr.StartLong()
	if err != nil {
		t.Fatal(err)
	}
	sw.expireOnce()

	if ok, err := mgr.Commit(tx); err != nil || !ok {
		t.Fatalf("expected LONG tx to survive the sweep: ok=%v err=%v", ok, err)
	}
}

func TestSnapshotOnceRotatesSegmentAndRetains(t *testing.T) {
	sw, mgr, st := newTestSweeper(t)

	mgr.StartShort(0)
	sw.snapshotOnce()

	timestamps, err := st.SnapshotTimestamps()
	if err != nil {
		t.Fatal(err)
	}
	if len(timestamps) != 1 {
		t.Fatalf("expected one snapshot written, got %d", len(timestamps))
	}

	sw.mu.Lock()
	w := sw.writer
	sw.mu.Unlock()
	if err := w.Append(&txn.Edit{Type: txn.EditAborted, ID: 1}); err != nil {
		t.Fatalf("expected the rotated writer to accept new edits: %v", err)
	}
	if err := sw.CloseWriter(); err != nil {
		t.Fatalf("CloseWriter: %v", err)
	}
}

// TestCloseWriterClosesTheRotatedSegmentNotTheOriginal guards against a
// shutdown path that tracks only the Sweeper's originally-constructed
// writer: snapshotOnce already closes the pre-rotation segment itself,
// so closing it a second time would panic on an already-closed
// channel. CloseWriter must close whichever segment is current.
func TestCloseWriterClosesTheRotatedSegmentNotTheOriginal(t *testing.T) {
	sw, mgr, _ := newTestSweeper(t)

	mgr.StartShort(0)
	sw.snapshotOnce()
	sw.snapshotOnce()

	if err := sw.CloseWriter(); err != nil {
		t.Fatalf("CloseWriter: %v", err)
	}
}
