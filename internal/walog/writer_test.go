package walog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chronodb/chronon/internal/txn"
)

func TestWriterAppendIsReplayedInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txlog.1")

	w, err := CreateSegment(path, WriterConfig{BatchSize: 2, BatchInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}

	want := []*txn.Edit{
		{Type: txn.EditInProgress, ID: 1, TxType: txn.TypeShort, CheckpointWritePointers: []txn.ID{1}},
		{Type: txn.EditCommitted, ID: 1},
		{Type: txn.EditInvalid, ID: 2},
	}
	for _, e := range want {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []*txn.Edit
	err = ReadSegment(path, func(e *txn.Edit) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d edits, got %d", len(want), len(got))
	}
	for i, e := range got {
		if e.Type != want[i].Type || e.ID != want[i].ID {
			t.Fatalf("edit %d mismatch: got %+v want %+v", i, e, want[i])
		}
	}
}

func TestReadSegmentDiscardsTornFinalGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txlog.1")

	w, err := CreateSegment(path, WriterConfig{BatchSize: 100, BatchInterval: time.Hour})
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Append(&txn.Edit{Type: txn.EditCommitted, ID: 1}) }()
	time.Sleep(5 * time.Millisecond)
	// Force a flush of the first (complete) group before truncating.
	w.flush()
	<-done

	go func() { _ = w.Append(&txn.Edit{Type: txn.EditCommitted, ID: 2}) }()
	time.Sleep(5 * time.Millisecond)
	w.flush()
	w.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Truncate away the last few bytes to simulate a crash mid-write of
	// the second group.
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatal(err)
	}

	var got []*txn.Edit
	err = ReadSegment(path, func(e *txn.Edit) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSegment: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the first complete group to replay, got %+v", got)
	}
}

func TestOpenSegmentForAppendRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txlog.bad")
	if err := os.WriteFile(path, []byte("NOTCHRON"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSegmentForAppend(path, WriterConfig{}); err == nil {
		t.Fatal("expected error opening a segment with a bad header")
	}
}
