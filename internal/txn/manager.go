// Package txn implements the transaction manager core: id allocation,
// in-progress tracking, conflict detection, the invalid list,
// checkpointing, and the snapshot/replay contract (spec §3, §4.1, §4.2,
// §8). Grounded on internal/storage/mvcc.go's MVCCManager — the same
// active-tx map, commit log, and oldest-active watermark tracking — lifted
// from row-version visibility to transaction-id visibility.
package txn

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// EditAppender durably records an Edit. Append must not return before the
// edit is flushed (spec §5's synchronous durability contract); the
// concrete implementation lives in internal/walog so this package stays
// free of any file-system dependency.
type EditAppender interface {
	Append(e *Edit) error
}

// noopAppender discards edits; NewManager installs it when no log is
// configured, so tests and a manager awaiting SetLog can run without one.
type noopAppender struct{}

func (noopAppender) Append(e *Edit) error { return nil }

// Clock abstracts wall-clock time so tests can control expiration and id
// allocation deterministically.
type Clock func() time.Time

// Config configures a Manager's policy knobs (spec §6).
type Config struct {
	MaxTxPerMs     int64
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	Clock          Clock
	Log            EditAppender
}

// Status is the read-only snapshot of manager counters returned by the
// façade's `status` RPC (spec §4.5).
type Status struct {
	ReadPointer        ID
	WritePointer       ID
	InProgressCount    int
	InvalidCount       int
	CommittingCount    int
	CommittedCount     int
}

// Manager is the single serializing owner of the canonical state tuple
// from spec §3: writePointer, readPointer, inProgress, invalid,
// committingChangeSets, committedChangeSets. All mutation happens under
// mu, matching spec §5's single logical critical section.
type Manager struct {
	mu sync.Mutex

	maxTxPerMs     int64
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	clock          Clock
	log            EditAppender

	writePointer ID
	readPointer  ID

	inProgress map[ID]*InProgressTx

	invalid []ID // sorted ascending, unique

	committingChangeSets map[ID]changeSet
	committedChangeSets  map[ID]changeSet
	// committedOrder mirrors committedChangeSets's keys, kept sorted so
	// the conflict check can binary-search the tail (V, +∞) the way
	// spec §4.2 describes ("iteration may start at the tail map").
	committedOrder []ID
}

// NewManager creates an empty Manager. Use Restore to bootstrap from a
// decoded Snapshot plus replayed edits instead, for the recovery path.
func NewManager(cfg Config) *Manager {
	if cfg.MaxTxPerMs <= 0 {
		cfg.MaxTxPerMs = 1_000_000
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = noopAppender{}
	}
	return &Manager{
		maxTxPerMs:           cfg.MaxTxPerMs,
		defaultTimeout:       cfg.DefaultTimeout,
		maxTimeout:           cfg.MaxTimeout,
		clock:                cfg.Clock,
		log:                  cfg.Log,
		inProgress:           make(map[ID]*InProgressTx),
		committingChangeSets: make(map[ID]changeSet),
		committedChangeSets:  make(map[ID]changeSet),
	}
}

// SetLog attaches the durable edit log after construction (used when the
// log segment is opened only after recovery has built the manager).
func (m *Manager) SetLog(log EditAppender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

func (m *Manager) nowMillis() int64 { return m.clock().UnixMilli() }

// advanceWritePointerLocked implements spec §3's monotonicity rule:
// writePointer ← max(writePointer+1, now×MAX_TX_PER_MS).
func (m *Manager) advanceWritePointerLocked() ID {
	now := ID(m.nowMillis()) * ID(m.maxTxPerMs)
	next := m.writePointer + 1
	if now > next {
		next = now
	}
	m.writePointer = next
	return next
}

// ───────────────────────────────────────────────────────────────────────────
// StartShort / StartLong
// ───────────────────────────────────────────────────────────────────────────

// StartShort allocates a SHORT transaction. A zero timeout uses the
// configured default; any value outside (0, maxTimeout] fails with
// KindInvalidArgument (spec §4.1).
func (m *Manager) StartShort(timeout time.Duration) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timeout == 0 {
		timeout = m.defaultTimeout
	}
	if timeout <= 0 || timeout > m.maxTimeout {
		return nil, newErr(KindInvalidArgument, fmt.Sprintf("timeout %s out of range (0, %s]", timeout, m.maxTimeout), nil)
	}
	return m.startLocked(TypeShort, m.nowMillis()+timeout.Milliseconds())
}

// StartLong allocates a LONG transaction, immune to the expiration sweep.
func (m *Manager) StartLong() (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(TypeLong, -1)
}

func (m *Manager) startLocked(t Type, expiration int64) (*Transaction, error) {
	id := m.advanceWritePointerLocked()
	vub := m.readPointer

	edit := &Edit{
		Type:                    EditInProgress,
		ID:                      id,
		TxType:                  t,
		Expiration:              expiration,
		VisibilityUpperBound:    vub,
		CheckpointWritePointers: []ID{id},
	}
	ip := &InProgressTx{
		ID:                      id,
		VisibilityUpperBound:    vub,
		Expiration:              expiration,
		Type:                    t,
		CheckpointWritePointers: []ID{id},
	}
	m.inProgress[id] = ip
	if err := m.log.Append(edit); err != nil {
		delete(m.inProgress, id)
		return nil, newErr(KindLogFailure, "append INPROGRESS edit", err)
	}
	return m.viewLocked(id), nil
}

// viewLocked builds the Transaction view for tx id (its own entry is
// excluded from InProgress/FirstShortInProgress per spec §4.1).
func (m *Manager) viewLocked(id ID) *Transaction {
	ip := m.inProgress[id]
	tv := &Transaction{
		TransactionID: id,
		WritePointer:  id,
		ReadPointer:   m.readPointer,
		Invalids:      append([]ID(nil), m.invalid...),
		Type:          ip.Type,
	}
	if len(ip.CheckpointWritePointers) > 0 {
		tv.WritePointer = ip.CheckpointWritePointers[len(ip.CheckpointWritePointers)-1]
	}
	tv.CheckpointWritePointers = append([]ID(nil), ip.CheckpointWritePointers...)

	var inProg []ID
	var firstShort ID
	haveFirstShort := false
	for otherID, other := range m.inProgress {
		if otherID == id {
			continue
		}
		inProg = append(inProg, otherID)
		if other.Type == TypeShort && (!haveFirstShort || otherID < firstShort) {
			firstShort = otherID
			haveFirstShort = true
		}
	}
	sort.Slice(inProg, func(i, j int) bool { return inProg[i] < inProg[j] })
	tv.InProgress = inProg
	tv.FirstShortInProgress = firstShort
	return tv
}

// ───────────────────────────────────────────────────────────────────────────
// CanCommit / Commit
// ───────────────────────────────────────────────────────────────────────────

// CanCommit runs the conflict check of spec §4.2 and, on success, records
// the committing change-set. Repeatable: a later call for the same tx
// overwrites the prior committing set and re-appends a CANCOMMIT edit —
// the spec's documented Open Question resolution.
func (m *Manager) CanCommit(tx *Transaction, changeIDs []ChangeID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ip, ok := m.inProgress[tx.TransactionID]
	if !ok {
		return false, newErr(KindNotInProgress, fmt.Sprintf("tx %d is not in progress", tx.TransactionID), nil)
	}

	if m.hasConflictLocked(ip.VisibilityUpperBound, changeIDs) {
		return false, nil
	}

	prev, hadPrev := m.committingChangeSets[tx.TransactionID]
	m.committingChangeSets[tx.TransactionID] = newChangeSet(changeIDs)

	edit := &Edit{Type: EditCanCommit, ID: tx.TransactionID, ChangeIDs: changeIDs}
	if err := m.log.Append(edit); err != nil {
		if hadPrev {
			m.committingChangeSets[tx.TransactionID] = prev
		} else {
			delete(m.committingChangeSets, tx.TransactionID)
		}
		return false, newErr(KindLogFailure, "append CANCOMMIT edit", err)
	}
	return true, nil
}

// Commit re-runs the conflict check against whatever committed since the
// prior CanCommit and, on success, durably commits the transaction
// (spec §4.1).
func (m *Manager) Commit(tx *Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ip, ok := m.inProgress[tx.TransactionID]
	if !ok {
		return false, newErr(KindNotInProgress, fmt.Sprintf("tx %d is not in progress", tx.TransactionID), nil)
	}

	changes := m.committingChangeSets[tx.TransactionID] // nil if CanCommit was never called
	if m.hasSetConflictLocked(ip.VisibilityUpperBound, changes) {
		return false, nil
	}

	edit := &Edit{Type: EditCommitted, ID: tx.TransactionID}
	if err := m.log.Append(edit); err != nil {
		return false, newErr(KindLogFailure, "append COMMITTED edit", err)
	}

	delete(m.inProgress, tx.TransactionID)
	delete(m.committingChangeSets, tx.TransactionID)

	if len(changes) > 0 {
		commitID := tx.WritePointer
		if m.writePointer > commitID {
			commitID = m.writePointer
		}
		m.committedChangeSets[commitID] = changes
		m.committedOrder = insertSorted(m.committedOrder, commitID)
	}

	if len(m.inProgress) == 0 {
		m.readPointer = m.writePointer
	} else if m.minInProgressLocked() > m.readPointer {
		m.readPointer = m.writePointer
	}

	return true, nil
}

func (m *Manager) minInProgressLocked() ID {
	var min ID = -1
	for id := range m.inProgress {
		if min == -1 || id < min {
			min = id
		}
	}
	return min
}

// hasConflictLocked implements spec §4.2: ∃ k > V such that
// committedChangeSets[k] ∩ C ≠ ∅.
func (m *Manager) hasConflictLocked(visibilityUpperBound ID, changeIDs []ChangeID) bool {
	return m.hasSetConflictLocked(visibilityUpperBound, newChangeSet(changeIDs))
}

func (m *Manager) hasSetConflictLocked(visibilityUpperBound ID, changes changeSet) bool {
	if len(changes) == 0 {
		return false
	}
	i := sort.Search(len(m.committedOrder), func(i int) bool { return m.committedOrder[i] > visibilityUpperBound })
	for ; i < len(m.committedOrder); i++ {
		k := m.committedOrder[i]
		if changes.intersects(m.committedChangeSets[k]) {
			return true
		}
	}
	return false
}

// ───────────────────────────────────────────────────────────────────────────
// Abort / Invalidate
// ───────────────────────────────────────────────────────────────────────────

// Abort removes tx from in-progress. Idempotent: aborting an already
// terminal (or expired/invalidated) transaction never errors.
func (m *Manager) Abort(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inProgress[tx.TransactionID]; !ok {
		return nil
	}

	edit := &Edit{Type: EditAborted, ID: tx.TransactionID}
	if err := m.log.Append(edit); err != nil {
		return newErr(KindLogFailure, "append ABORTED edit", err)
	}
	delete(m.inProgress, tx.TransactionID)
	delete(m.committingChangeSets, tx.TransactionID)
	return nil
}

// Invalidate marks id as poison. Returns true iff the invalid list
// changed; repeated calls for the same id return false after the first
// (spec §8 idempotence).
func (m *Manager) Invalidate(id ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidateLocked(id)
}

func (m *Manager) invalidateLocked(id ID) (bool, error) {
	if containsSorted(m.invalid, id) {
		return false, nil
	}

	edit := &Edit{Type: EditInvalid, ID: id}
	if err := m.log.Append(edit); err != nil {
		return false, newErr(KindLogFailure, "append INVALID edit", err)
	}

	m.invalid = insertSorted(m.invalid, id)
	delete(m.inProgress, id)
	delete(m.committingChangeSets, id)
	m.removeCommittedLocked(id)
	return true, nil
}

func (m *Manager) removeCommittedLocked(id ID) {
	if _, ok := m.committedChangeSets[id]; ok {
		delete(m.committedChangeSets, id)
		m.committedOrder = removeSorted(m.committedOrder, id)
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Checkpoint
// ───────────────────────────────────────────────────────────────────────────

// Checkpoint issues a new write pointer for tx's logical transaction,
// preserving its identity (spec §4.1).
func (m *Manager) Checkpoint(tx *Transaction) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ip, ok := m.inProgress[tx.TransactionID]
	if !ok {
		return nil, newErr(KindNotInProgress, fmt.Sprintf("tx %d is not in progress", tx.TransactionID), nil)
	}

	w2 := m.advanceWritePointerLocked()
	newPointers := append(append([]ID(nil), ip.CheckpointWritePointers...), w2)

	edit := &Edit{Type: EditCheckpoint, ID: tx.TransactionID, TxType: TypeCheckpoint, CheckpointWritePointers: newPointers}
	if err := m.log.Append(edit); err != nil {
		m.writePointer-- // best-effort undo of the speculative bump
		return nil, newErr(KindLogFailure, "append CHECKPOINT edit", err)
	}

	ip.CheckpointWritePointers = newPointers
	ip.Type = TypeCheckpoint
	return m.viewLocked(tx.TransactionID), nil
}

// ───────────────────────────────────────────────────────────────────────────
// TruncateInvalidTx / TruncateInvalidTxBefore
// ───────────────────────────────────────────────────────────────────────────

// TruncateInvalidTx removes the intersection of ids with the invalid
// list. Returns true iff the list changed.
func (m *Manager) TruncateInvalidTx(ids []ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []ID
	for _, id := range ids {
		if containsSorted(m.invalid, id) {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return false, nil
	}

	edit := &Edit{Type: EditTruncateInvalidTx, IDs: removed}
	if err := m.log.Append(edit); err != nil {
		return false, newErr(KindLogFailure, "append TRUNCATE_INVALID_TX edit", err)
	}

	for _, id := range removed {
		m.invalid = removeSorted(m.invalid, id)
	}
	return true, nil
}

// TruncateInvalidTxBefore removes every invalid id whose timestamp
// prefix predates cutoff. Fails with KindInvalidTruncateTime if any
// currently in-progress tx has an id below the cutoff.
func (m *Manager) TruncateInvalidTxBefore(cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoffID := ID(cutoff.UnixMilli()) * ID(m.maxTxPerMs)
	for id := range m.inProgress {
		if id < cutoffID {
			return false, newErr(KindInvalidTruncateTime, fmt.Sprintf("in-progress tx %d predates cutoff", id), nil)
		}
	}

	var removed []ID
	for _, id := range m.invalid {
		if id < cutoffID {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return false, nil
	}

	edit := &Edit{Type: EditTruncateInvalidTx, IDs: removed}
	if err := m.log.Append(edit); err != nil {
		return false, newErr(KindLogFailure, "append TRUNCATE_INVALID_TX edit", err)
	}

	for _, id := range removed {
		m.invalid = removeSorted(m.invalid, id)
	}
	return true, nil
}

// ───────────────────────────────────────────────────────────────────────────
// PruneNow / Status / ResetState
// ───────────────────────────────────────────────────────────────────────────

// PruneNow advances the retention horizon of committedChangeSets: any
// entry that can no longer cause a future conflict is dropped. Not part
// of the durable edit alphabet — it is fully re-derivable from
// readPointer, inProgress, and committedChangeSets, so no edit is logged.
func (m *Manager) PruneNow() {
	m.mu.Lock()
	defer m.mu.Unlock()

	horizon := m.readPointer
	for _, ip := range m.inProgress {
		if ip.VisibilityUpperBound < horizon {
			horizon = ip.VisibilityUpperBound
		}
	}

	i := sort.Search(len(m.committedOrder), func(i int) bool { return m.committedOrder[i] > horizon })
	for _, id := range m.committedOrder[:i] {
		delete(m.committedChangeSets, id)
	}
	m.committedOrder = m.committedOrder[i:]
}

// Status returns a non-mutating view of the manager's counters for the
// façade's `status` RPC.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		ReadPointer:     m.readPointer,
		WritePointer:    m.writePointer,
		InProgressCount: len(m.inProgress),
		InvalidCount:    len(m.invalid),
		CommittingCount: len(m.committingChangeSets),
		CommittedCount:  len(m.committedChangeSets),
	}
}

// GetInvalidSize returns len(invalid) under the state lock.
func (m *Manager) GetInvalidSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invalid)
}

// ResetState blanks all maps and counters and appends a sentinel edit
// starting a new epoch. Administrative recovery only.
func (m *Manager) ResetState() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	edit := &Edit{Type: editResetState}
	if err := m.log.Append(edit); err != nil {
		return newErr(KindLogFailure, "append RESET_STATE edit", err)
	}

	m.writePointer = 0
	m.readPointer = 0
	m.inProgress = make(map[ID]*InProgressTx)
	m.invalid = nil
	m.committingChangeSets = make(map[ID]changeSet)
	m.committedChangeSets = make(map[ID]changeSet)
	m.committedOrder = nil
	return nil
}

// ───────────────────────────────────────────────────────────────────────────
// Snapshot export / replay
// ───────────────────────────────────────────────────────────────────────────

// Snapshot returns the current state as a *Snapshot, taken under the
// state lock for consistency. Used by internal/sweep's periodic
// snapshot job, which needs the struct rather than encoded bytes in
// order to hand it to internal/store.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// SnapshotAndRotate captures the current state and swaps newLog in as
// the manager's edit appender within a single critical section, so no
// op (Commit/Abort/Invalidate/…) can interleave between the two: every
// op either runs entirely before this call, and its edit lands in the
// old log and is reflected in the returned snapshot, or entirely after,
// and its edit lands in newLog. Without this, an op landing in the gap
// between a plain Snapshot() and a later SetLog() would append to a
// log segment that recovery discards as older than the new snapshot's
// epoch, silently losing an acknowledged commit (spec §8 invariant 5).
// newLog must already be open and ready to accept appends; the caller
// is responsible for naming its segment with the same epoch under
// which the returned snapshot is persisted.
func (m *Manager) SnapshotAndRotate(newLog EditAppender) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshotLocked()
	m.log = newLog
	return snap
}

// SnapshotInputStream serializes the current state into a TransactionSnapshot
// byte stream without mutating state, taken under the state lock for
// consistency (spec §4.1).
func (m *Manager) SnapshotInputStream() (io.Reader, error) {
	s := m.Snapshot()

	buf, err := EncodeSnapshot(s)
	if err != nil {
		return nil, newErr(KindSnapshotFailure, "encode snapshot", err)
	}
	return bytes.NewReader(buf), nil
}

// ExpireTimedOut invalidates every SHORT or CHECKPOINT in-progress
// transaction whose expiration has passed as of now (spec §4.1's
// timeout/cleanup sweep). LONG transactions are immune. Returns the ids
// invalidated.
func (m *Manager) ExpireTimedOut(now int64) ([]ID, error) {
	m.mu.Lock()
	var candidates []ID
	for id, ip := range m.inProgress {
		if ip.Type == TypeLong {
			continue
		}
		if ip.Expiration >= 0 && ip.Expiration < now {
			candidates = append(candidates, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var expired []ID
	for _, id := range candidates {
		changed, err := m.Invalidate(id)
		if err != nil {
			return expired, err
		}
		if changed {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (m *Manager) snapshotLocked() *Snapshot {
	s := &Snapshot{
		Timestamp:            m.nowMillis(),
		ReadPointer:          m.readPointer,
		WritePointer:         m.writePointer,
		InProgress:           make(map[ID]*InProgressTx, len(m.inProgress)),
		Invalid:              append([]ID(nil), m.invalid...),
		CommittingChangeSets: make(map[ID][]ChangeID, len(m.committingChangeSets)),
		CommittedChangeSets:  make(map[ID][]ChangeID, len(m.committedChangeSets)),
	}
	for id, ip := range m.inProgress {
		s.InProgress[id] = ip.clone()
	}
	for id, cs := range m.committingChangeSets {
		s.CommittingChangeSets[id] = cs.toSlice()
	}
	for id, cs := range m.committedChangeSets {
		s.CommittedChangeSets[id] = cs.toSlice()
	}
	return s
}

// Restore rebuilds a Manager's state from a decoded Snapshot (the
// recovery path's starting point before replaying subsequent edits).
func Restore(cfg Config, s *Snapshot) *Manager {
	m := NewManager(cfg)
	m.writePointer = s.WritePointer
	m.readPointer = s.ReadPointer
	for id, ip := range s.InProgress {
		m.inProgress[id] = ip.clone()
	}
	m.invalid = append([]ID(nil), s.Invalid...)
	sort.Slice(m.invalid, func(i, j int) bool { return m.invalid[i] < m.invalid[j] })
	for id, cids := range s.CommittingChangeSets {
		m.committingChangeSets[id] = newChangeSet(cids)
	}
	for id, cids := range s.CommittedChangeSets {
		m.committedChangeSets[id] = newChangeSet(cids)
		m.committedOrder = insertSorted(m.committedOrder, id)
	}
	return m
}

// Apply replays a single durable edit onto the manager's in-memory state,
// without re-appending it to the log. Recovery calls this for every edit
// read after the latest snapshot; per spec §8's replay invariant,
// decoding the latest snapshot then applying every subsequent edit
// reproduces the pre-crash state.
func (m *Manager) Apply(e *Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case EditInProgress:
		m.inProgress[e.ID] = &InProgressTx{
			ID:                      e.ID,
			VisibilityUpperBound:    e.VisibilityUpperBound,
			Expiration:              e.Expiration,
			Type:                    e.TxType,
			CheckpointWritePointers: append([]ID(nil), e.CheckpointWritePointers...),
		}
		if e.ID > m.writePointer {
			m.writePointer = e.ID
		}
	case EditCanCommit:
		m.committingChangeSets[e.ID] = newChangeSet(e.ChangeIDs)
	case EditCommitted:
		changes := m.committingChangeSets[e.ID]
		ip := m.inProgress[e.ID]
		delete(m.inProgress, e.ID)
		delete(m.committingChangeSets, e.ID)
		if len(changes) > 0 {
			commitID := e.ID
			if ip != nil && len(ip.CheckpointWritePointers) > 0 {
				commitID = ip.CheckpointWritePointers[len(ip.CheckpointWritePointers)-1]
			}
			if m.writePointer > commitID {
				commitID = m.writePointer
			}
			m.committedChangeSets[commitID] = changes
			m.committedOrder = insertSorted(m.committedOrder, commitID)
		}
		if len(m.inProgress) == 0 {
			m.readPointer = m.writePointer
		} else if m.minInProgressLocked() > m.readPointer {
			m.readPointer = m.writePointer
		}
	case EditAborted:
		delete(m.inProgress, e.ID)
		delete(m.committingChangeSets, e.ID)
	case EditInvalid:
		if !containsSorted(m.invalid, e.ID) {
			m.invalid = insertSorted(m.invalid, e.ID)
		}
		delete(m.inProgress, e.ID)
		delete(m.committingChangeSets, e.ID)
		m.removeCommittedLocked(e.ID)
	case EditMoveWatermark:
		m.readPointer = e.Watermark
	case EditTruncateInvalidTx:
		for _, id := range e.IDs {
			m.invalid = removeSorted(m.invalid, id)
		}
	case EditCheckpoint:
		if ip, ok := m.inProgress[e.ID]; ok {
			ip.CheckpointWritePointers = append([]ID(nil), e.CheckpointWritePointers...)
			ip.Type = e.TxType
		}
		if len(e.CheckpointWritePointers) > 0 {
			last := e.CheckpointWritePointers[len(e.CheckpointWritePointers)-1]
			if last > m.writePointer {
				m.writePointer = last
			}
		}
	case editResetState:
		m.writePointer = 0
		m.readPointer = 0
		m.inProgress = make(map[ID]*InProgressTx)
		m.invalid = nil
		m.committingChangeSets = make(map[ID]changeSet)
		m.committedChangeSets = make(map[ID]changeSet)
		m.committedOrder = nil
	default:
		return fmt.Errorf("txn: replay: unknown edit type %d", e.Type)
	}
	return nil
}
