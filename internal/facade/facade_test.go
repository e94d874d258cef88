package facade

import (
	"context"
	"testing"
	"time"

	"github.com/chronodb/chronon/internal/txn"
)

func testServer(t *testing.T) *FacadeServer {
	t.Helper()
	mgr := txn.NewManager(txn.Config{MaxTxPerMs: 1000, DefaultTimeout: 30 * time.Second, MaxTimeout: 300 * time.Second})
	return NewFacadeServer(mgr)
}

func TestStartCommitRoundTrip(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	start, err := s.Start(ctx, &StartRequest{TimeoutMillis: 1000})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	cc, err := s.CanCommit(ctx, &CanCommitRequest{Tx: start.Tx, ChangeIDs: [][]byte{[]byte("row:1")}})
	if err != nil {
		t.Fatalf("CanCommit: %v", err)
	}
	if !cc.OK {
		t.Fatal("expected CanCommit to succeed with no prior committers")
	}

	commit, err := s.Commit(ctx, &CommitRequest{Tx: start.Tx})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !commit.OK {
		t.Fatal("expected Commit to succeed")
	}
}

func TestCommitNotInProgressReturnsError(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	start, err := s.Start(ctx, &StartRequest{TimeoutMillis: 1000})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Commit(ctx, &CommitRequest{Tx: start.Tx}); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if _, err := s.Commit(ctx, &CommitRequest{Tx: start.Tx}); err == nil {
		t.Fatal("expected second Commit on the same tx to fail")
	}
}

func TestStatusReflectsInProgressCount(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, &StartRequest{TimeoutMillis: 1000}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st, err := s.Status(ctx, &Empty{})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.InProgressCount != 1 {
		t.Fatalf("expected 1 in-progress, got %d", st.InProgressCount)
	}
}

func TestGetSnapshotInputStreamReturnsDecodableData(t *testing.T) {
	s := testServer(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, &StartRequest{TimeoutMillis: 1000}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := s.GetSnapshotInputStream(ctx, &Empty{})
	if err != nil {
		t.Fatalf("GetSnapshotInputStream: %v", err)
	}
	if len(resp.Data) == 0 {
		t.Fatal("expected non-empty snapshot bytes")
	}
	snap, err := txn.DecodeSnapshot(resp.Data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if len(snap.InProgress) != 1 {
		t.Fatalf("expected the decoded snapshot to hold 1 in-progress tx, got %d", len(snap.InProgress))
	}
}

func TestReservoirSamplePicksFromSet(t *testing.T) {
	eps := []string{"a:1", "b:2", "c:3"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[reservoirSample(eps)] = true
	}
	for _, e := range eps {
		if !seen[e] {
			t.Fatalf("expected reservoirSample to eventually pick %q across 200 draws", e)
		}
	}
}

func TestPickEndpointWaitsForNonEmptyList(t *testing.T) {
	d := &delayedDiscoverer{readyAfter: 20 * time.Millisecond, eps: []string{"x:1"}}
	d.start = time.Now()

	got, err := PickEndpoint(d, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("PickEndpoint: %v", err)
	}
	if got != "x:1" {
		t.Fatalf("got %q", got)
	}
}

func TestPickEndpointTimesOutOnEmptyList(t *testing.T) {
	d := StaticDiscoverer(nil)
	if _, err := PickEndpoint(d, 30*time.Millisecond); err != ErrNoEndpoints {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}
}

type delayedDiscoverer struct {
	start      time.Time
	readyAfter time.Duration
	eps        []string
}

func (d *delayedDiscoverer) Endpoints() []string {
	if time.Since(d.start) < d.readyAfter {
		return nil
	}
	return d.eps
}
