package store

import (
	"testing"
	"time"

	"github.com/chronodb/chronon/internal/txn"
	"github.com/chronodb/chronon/internal/walog"
)

func TestWriteSnapshotThenLatestRoundTrips(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	snap := &txn.Snapshot{Timestamp: 100, ReadPointer: 5, WritePointer: 10, InProgress: map[txn.ID]*txn.InProgressTx{}}
	if err := s.WriteSnapshot(snap, 100); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, ts, found, err := s.LatestSnapshot()
	if err != nil || !found {
		t.Fatalf("LatestSnapshot: found=%v err=%v", found, err)
	}
	if ts != 100 || got.WritePointer != 10 {
		t.Fatalf("unexpected snapshot: ts=%d got=%+v", ts, got)
	}
}

func TestLatestSnapshotPicksNewest(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.WriteSnapshot(&txn.Snapshot{Timestamp: 1, InProgress: map[txn.ID]*txn.InProgressTx{}}, 100)
	s.WriteSnapshot(&txn.Snapshot{Timestamp: 2, WritePointer: 42, InProgress: map[txn.ID]*txn.InProgressTx{}}, 200)

	got, ts, found, err := s.LatestSnapshot()
	if err != nil || !found {
		t.Fatalf("LatestSnapshot: found=%v err=%v", found, err)
	}
	if ts != 200 || got.WritePointer != 42 {
		t.Fatalf("expected the newer snapshot, got ts=%d %+v", ts, got)
	}
}

func TestRetainRemovesOldSnapshotsAndSegments(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, ts := range []int64{100, 200, 300} {
		s.WriteSnapshot(&txn.Snapshot{InProgress: map[txn.ID]*txn.InProgressTx{}}, ts)
		w, err := walog.CreateSegment(s.SegmentPath(ts), walog.WriterConfig{})
		if err != nil {
			t.Fatal(err)
		}
		w.Close()
	}

	if err := s.Retain(2); err != nil {
		t.Fatalf("Retain: %v", err)
	}

	snaps, err := s.SnapshotTimestamps()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || snaps[0] != 200 || snaps[1] != 300 {
		t.Fatalf("expected snapshots [200 300], got %v", snaps)
	}

	segs, err := s.SegmentTimestamps()
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || segs[0] != 200 || segs[1] != 300 {
		t.Fatalf("expected segments [200 300], got %v", segs)
	}
}

func TestRecoverWithoutSnapshotReplaysFromEpochZero(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	w, err := walog.CreateSegment(s.SegmentPath(0), walog.WriterConfig{BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(&txn.Edit{Type: txn.EditInProgress, ID: 1000, TxType: txn.TypeLong, Expiration: -1, CheckpointWritePointers: []txn.ID{1000}}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	mgr, epoch, err := s.Recover(txn.Config{MaxTxPerMs: 1000, DefaultTimeout: 30 * time.Second, MaxTimeout: 300 * time.Second})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if epoch != 0 {
		t.Fatalf("expected epoch 0 with no snapshot, got %d", epoch)
	}
	if st := mgr.Status(); st.InProgressCount != 1 || st.WritePointer != 1000 {
		t.Fatalf("expected replayed state, got %+v", st)
	}
}

func TestRecoverFromSnapshotSkipsOlderSegments(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	w0, err := walog.CreateSegment(s.SegmentPath(0), walog.WriterConfig{BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	w0.Append(&txn.Edit{Type: txn.EditInProgress, ID: 500, TxType: txn.TypeLong, Expiration: -1, CheckpointWritePointers: []txn.ID{500}})
	w0.Close()

	snap := &txn.Snapshot{Timestamp: 100, WritePointer: 900, ReadPointer: 900, InProgress: map[txn.ID]*txn.InProgressTx{}}
	if err := s.WriteSnapshot(snap, 100); err != nil {
		t.Fatal(err)
	}

	w1, err := walog.CreateSegment(s.SegmentPath(100), walog.WriterConfig{BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	w1.Append(&txn.Edit{Type: txn.EditInProgress, ID: 1000, TxType: txn.TypeLong, Expiration: -1, CheckpointWritePointers: []txn.ID{1000}})
	w1.Close()

	mgr, epoch, err := s.Recover(txn.Config{MaxTxPerMs: 1000, DefaultTimeout: 30 * time.Second, MaxTimeout: 300 * time.Second})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if epoch != 100 {
		t.Fatalf("expected epoch 100, got %d", epoch)
	}
	st := mgr.Status()
	if st.InProgressCount != 1 || st.WritePointer != 1000 {
		t.Fatalf("expected only the post-snapshot segment replayed, got %+v", st)
	}
}
