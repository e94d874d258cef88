package main

import (
	"testing"

	"github.com/chronodb/chronon/internal/config"
	"github.com/chronodb/chronon/internal/telemetry"
)

func TestNewServerRecoversEmptyStoreAndAcceptsTransactions(t *testing.T) {
	cfg := config.Default()
	cfg.Snapshot.Dir = t.TempDir()

	srv, err := newServer(cfg, telemetry.New("test "))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	defer srv.Close()

	tx, err := srv.mgr.StartShort(cfg.DefaultTimeout())
	if err != nil {
		t.Fatalf("StartShort: %v", err)
	}
	if ok, err := srv.mgr.Commit(tx); err != nil || !ok {
		t.Fatalf("Commit: ok=%v err=%v", ok, err)
	}
}
