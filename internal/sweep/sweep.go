// Package sweep runs the two periodic maintenance jobs spec §4.1 and
// §4.3 require but do not name as their own component: the expiration
// sweep over in-progress transactions, and the periodic full-state
// snapshot + log rotation + retention job.
//
// Grounded on internal/storage/scheduler.go's Scheduler: interval jobs
// registered with robfig/cron/v3 (generalized from the teacher's
// CRON/INTERVAL/ONCE SQL job types to chronon's two fixed maintenance
// jobs, using "@every" cron specs rather than a SQL catalog), a
// `running` map guarding no-overlap execution, and cancellation on Stop.
package sweep

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chronodb/chronon/internal/store"
	"github.com/chronodb/chronon/internal/telemetry"
	"github.com/chronodb/chronon/internal/txn"
	"github.com/chronodb/chronon/internal/walog"
)

// Config configures sweep cadence and retention, mirroring spec §6's
// tx.cleanup.interval.seconds / snapshot.interval.seconds /
// snapshot.retain.count configuration keys.
type Config struct {
	CleanupInterval  time.Duration
	SnapshotInterval time.Duration
	RetainCount      int
	WriterConfig     walog.WriterConfig
}

// Clock abstracts wall-clock time for epoch naming and expiration
// comparisons.
type Clock func() time.Time

// Sweeper owns the cron scheduler and the currently-open log writer,
// rotating to a new segment each time it takes a snapshot.
type Sweeper struct {
	mgr *txn.Manager
	st  *store.Store
	cfg Config
	clk Clock
	log *telemetry.Logger

	cron *cron.Cron

	mu      sync.Mutex
	running map[string]bool
	writer  *walog.Writer
}

// New creates a Sweeper. writer is the log segment currently open for
// the epoch the manager was recovered into; the sweeper takes ownership
// of rotating it.
func New(mgr *txn.Manager, st *store.Store, writer *walog.Writer, cfg Config, log *telemetry.Logger) *Sweeper {
	if log == nil {
		log = telemetry.Default
	}
	return &Sweeper{
		mgr:     mgr,
		st:      st,
		cfg:     cfg,
		clk:     time.Now,
		log:     log,
		cron:    cron.New(),
		running: make(map[string]bool),
		writer:  writer,
	}
}

// Start registers both maintenance jobs and starts the scheduler.
func (s *Sweeper) Start() error {
	if s.cfg.CleanupInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.cfg.CleanupInterval)
		if _, err := s.cron.AddFunc(spec, func() { s.runGuarded("expire", s.expireOnce) }); err != nil {
			return fmt.Errorf("sweep: schedule expiration job: %w", err)
		}
	}
	if s.cfg.SnapshotInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.cfg.SnapshotInterval)
		if _, err := s.cron.AddFunc(spec, func() { s.runGuarded("snapshot", s.snapshotOnce) }); err != nil {
			return fmt.Errorf("sweep: schedule snapshot job: %w", err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runGuarded executes fn unless a prior run of the same job is still
// in flight, matching the teacher's no_overlap guard.
func (s *Sweeper) runGuarded(name string, fn func()) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Warnf("sweep: %s job already running, skipping", name)
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()
	fn()
}

func (s *Sweeper) expireOnce() {
	expired, err := s.mgr.ExpireTimedOut(s.clk().UnixMilli())
	if err != nil {
		s.log.Errorf("sweep: expiration sweep failed: %v", err)
		return
	}
	if len(expired) > 0 {
		s.log.Infof("sweep: invalidated %d expired transaction(s)", len(expired))
	}
}

// snapshotOnce opens the next log segment, atomically captures the
// current state and rotates the manager onto that segment in a single
// locked step (*txn.Manager.SnapshotAndRotate), then persists the
// snapshot under the segment's own epoch and prunes old
// snapshots/segments per RetainCount.
//
// The segment must exist and be ready to accept appends before the
// rotation happens, and the rotation must happen before the snapshot
// is written to disk, so that every edit recovery would need to
// reproduce the persisted snapshot either is already reflected in it
// or landed in the new segment — never in a segment recovery discards
// as older than the snapshot's epoch.
func (s *Sweeper) snapshotOnce() {
	ts := s.clk().UnixMilli()

	newWriter, err := walog.CreateSegment(s.st.SegmentPath(ts), s.cfg.WriterConfig)
	if err != nil {
		s.log.Errorf("sweep: create new segment failed: %v", err)
		return
	}

	snap := s.mgr.SnapshotAndRotate(newWriter)

	s.mu.Lock()
	old := s.writer
	s.writer = newWriter
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.log.Warnf("sweep: close old segment: %v", err)
		}
	}

	if err := s.st.WriteSnapshot(snap, ts); err != nil {
		s.log.Errorf("sweep: write snapshot failed: %v", err)
		return
	}

	if err := s.st.Retain(s.cfg.RetainCount); err != nil {
		s.log.Warnf("sweep: retention pass failed: %v", err)
	}
	s.mgr.PruneNow()
}

// CloseWriter closes whichever log segment is currently open, the
// segment a caller must close at shutdown regardless of how many
// times snapshotOnce has rotated since the Sweeper was constructed.
func (s *Sweeper) CloseWriter() error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}
