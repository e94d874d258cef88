// Package store coordinates the on-disk snapshot and log-segment
// filesystem layout: snapshot enumeration, retention, latest-snapshot
// lookup, and the startup recovery iterator that replays edits from the
// newest snapshot forward (spec §4.3, §6).
//
// Grounded on internal/storage/backend_disk.go's atomic-rename file
// persistence (write to a ".tmp" path, fsync, os.Rename to the final
// name) and its manifest directory-scan style, generalized from a single
// manifest.json index to globbing "snapshot.*"/"txlog.*" directly —
// spec §6's filesystem layout has no separate manifest file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chronodb/chronon/internal/telemetry"
	"github.com/chronodb/chronon/internal/txn"
	"github.com/chronodb/chronon/internal/walog"
)

const (
	snapshotPrefix = "snapshot."
	tmpSuffix      = ".tmp"
	segmentPrefix  = "txlog."
)

// Store manages the snapshot directory named by spec §6's
// "snapshot.dir" configuration key.
type Store struct {
	dir string
	log *telemetry.Logger
}

// Open ensures dir exists and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &Store{dir: dir, log: telemetry.Default}, nil
}

// SnapshotPath returns the final (post-rename) path for the snapshot
// taken at timestamp ts.
func (s *Store) SnapshotPath(ts int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d", snapshotPrefix, ts))
}

func (s *Store) snapshotTmpPath(ts int64) string {
	return s.SnapshotPath(ts) + tmpSuffix
}

// SegmentPath returns the log segment path for the epoch started at ts.
func (s *Store) SegmentPath(ts int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d", segmentPrefix, ts))
}

// WriteSnapshot encodes snap and durably installs it under ts's name via
// write-tmp, fsync, rename — spec §4.3's "written to a temp file,
// fsynced, atomically renamed" snapshot contract.
func (s *Store) WriteSnapshot(snap *txn.Snapshot, ts int64) error {
	buf, err := txn.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	tmp := s.snapshotTmpPath(ts)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create snapshot tmp: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: write snapshot tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: fsync snapshot tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.SnapshotPath(ts)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename snapshot: %w", err)
	}
	return nil
}

// SnapshotTimestamps returns every fully-written (non-.tmp) snapshot
// timestamp present on disk, sorted ascending.
func (s *Store) SnapshotTimestamps() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list dir: %w", err)
	}
	var out []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(name, snapshotPrefix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SegmentTimestamps returns every log segment's epoch timestamp, sorted
// ascending.
func (s *Store) SegmentTimestamps() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: list dir: %w", err)
	}
	var out []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, segmentPrefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(name, segmentPrefix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// LatestSnapshot loads the newest fully-written snapshot, if any.
func (s *Store) LatestSnapshot() (snap *txn.Snapshot, ts int64, found bool, err error) {
	timestamps, err := s.SnapshotTimestamps()
	if err != nil {
		return nil, 0, false, err
	}
	if len(timestamps) == 0 {
		return nil, 0, false, nil
	}
	ts = timestamps[len(timestamps)-1]
	buf, err := os.ReadFile(s.SnapshotPath(ts))
	if err != nil {
		return nil, 0, false, fmt.Errorf("store: read snapshot %d: %w", ts, err)
	}
	snap, err = txn.DecodeSnapshot(buf)
	if err != nil {
		return nil, 0, false, fmt.Errorf("store: decode snapshot %d: %w", ts, err)
	}
	return snap, ts, true, nil
}

// Retain keeps only the newest `keep` snapshots (and their corresponding
// log segments) and removes everything older, per spec §4.3's
// "snapshot.retain.count" policy.
func (s *Store) Retain(keep int) error {
	if keep <= 0 {
		return nil
	}
	timestamps, err := s.SnapshotTimestamps()
	if err != nil {
		return err
	}
	if len(timestamps) <= keep {
		return nil
	}
	cutoff := timestamps[len(timestamps)-keep]
	for _, ts := range timestamps[:len(timestamps)-keep] {
		if err := os.Remove(s.SnapshotPath(ts)); err != nil && !os.IsNotExist(err) {
			s.log.Warnf("store: remove old snapshot %d: %v", ts, err)
		}
	}

	segments, err := s.SegmentTimestamps()
	if err != nil {
		return err
	}
	for _, ts := range segments {
		if ts < cutoff {
			if err := os.Remove(s.SegmentPath(ts)); err != nil && !os.IsNotExist(err) {
				s.log.Warnf("store: remove old segment %d: %v", ts, err)
			}
		}
	}
	return nil
}

// Recover rebuilds a transaction manager from the newest snapshot (if
// any) plus every log segment whose epoch is at or after that
// snapshot's timestamp, replayed in order — spec §4.3's recovery
// algorithm.
func (s *Store) Recover(cfg txn.Config) (mgr *txn.Manager, epoch int64, err error) {
	snap, ts, found, err := s.LatestSnapshot()
	if err != nil {
		return nil, 0, err
	}
	if found {
		mgr = txn.Restore(cfg, snap)
		epoch = ts
	} else {
		mgr = txn.NewManager(cfg)
		epoch = 0
	}

	segments, err := s.SegmentTimestamps()
	if err != nil {
		return nil, 0, err
	}
	for _, segTS := range segments {
		if segTS < epoch {
			continue
		}
		if err := walog.ReadSegment(s.SegmentPath(segTS), mgr.Apply); err != nil {
			return nil, 0, fmt.Errorf("store: replay segment %d: %w", segTS, err)
		}
	}
	return mgr, epoch, nil
}
