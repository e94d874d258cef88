// Package walog implements the append-only edit log segment format: a
// magic+version header followed by COMMIT_MARKER-prefixed groups of
// codec-encoded edits, written with batched group commit and read back by
// a torn-tail-tolerant replay reader (spec §4.3, §5, §6).
//
// Grounded on internal/storage/pager/wal.go's WALFile (header
// validate-or-write, fsync-backed AppendRecord, CRC-verified records) and
// internal/storage/concurrency.go's BatchProcessor (queue channel,
// size-or-interval flush, single flusher goroutine) — generalized from a
// single-record WAL to marker-delimited groups so replay can discard an
// entire torn group rather than just its first bad record.
package walog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/chronodb/chronon/internal/telemetry"
	"github.com/chronodb/chronon/internal/txn"
)

const (
	segmentMagic   = "CLOG"
	segmentVersion = byte(2)
	segmentHdrSize = len(segmentMagic) + 1

	recordKindMarker byte = 0xFF
	maxFrameSize          = 64 << 20
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Writer owns a single open log segment and batches Append calls into
// COMMIT_MARKER-delimited groups, flushing on size or interval — the
// group-commit shape spec §5 requires ("state mutation, append edit to
// in-memory queue, await group flush, return").
type Writer struct {
	log *telemetry.Logger

	mu   sync.Mutex
	f    *os.File
	path string

	batchSize     int
	batchInterval time.Duration

	pending []pendingEdit
	nextSeq uint64
	flushCh chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup
}

type pendingEdit struct {
	edit *txn.Edit
	done chan error
}

// WriterConfig configures group-commit batching policy.
type WriterConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	Log           *telemetry.Logger
}

// CreateSegment creates a new segment file at path and writes its header.
func CreateSegment(path string, cfg WriterConfig) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: create segment: %w", err)
	}
	if err := writeHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	return newWriter(f, path, cfg), nil
}

// OpenSegmentForAppend reopens an existing segment at its current end of
// file, validating the header first.
func OpenSegmentForAppend(path string, cfg WriterConfig) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: open segment: %w", err)
	}
	if err := validateHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return newWriter(f, path, cfg), nil
}

func newWriter(f *os.File, path string, cfg WriterConfig) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 5 * time.Millisecond
	}
	if cfg.Log == nil {
		cfg.Log = telemetry.Default
	}
	w := &Writer{
		log:           cfg.Log,
		f:             f,
		path:          path,
		batchSize:     cfg.BatchSize,
		batchInterval: cfg.BatchInterval,
		flushCh:       make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
	}
	w.wg.Add(1)
	go w.flushLoop()
	return w
}

// Append durably appends e, blocking until its containing group has been
// flushed and fsynced. Implements txn.EditAppender.
func (w *Writer) Append(e *txn.Edit) error {
	done := make(chan error, 1)

	w.mu.Lock()
	w.nextSeq++
	e.Seq = w.nextSeq
	w.pending = append(w.pending, pendingEdit{edit: e, done: done})
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		select {
		case w.flushCh <- struct{}{}:
		default:
		}
	}

	return <-done
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeCh:
			w.flush()
			return
		case <-w.flushCh:
			w.flush()
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	err := w.writeGroup(batch)
	if err != nil {
		w.log.Errorf("walog: group flush failed for %s: %v", w.path, err)
	}
	for _, p := range batch {
		p.done <- err
	}
}

func (w *Writer) writeGroup(batch []pendingEdit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	marker := encodeMarker(uint32(len(batch)))
	if err := writeFrame(w.f, marker); err != nil {
		return fmt.Errorf("walog: write commit marker: %w", err)
	}
	for _, p := range batch {
		if err := writeFrame(w.f, txn.EncodeEdit(p.edit)); err != nil {
			return fmt.Errorf("walog: write edit: %w", err)
		}
	}
	return w.f.Sync()
}

// Close stops the flusher, flushing any pending batch first.
func (w *Writer) Close() error {
	close(w.closeCh)
	w.wg.Wait()
	return w.f.Close()
}

// ───────────────────────────────────────────────────────────────────────────
// Segment header
// ───────────────────────────────────────────────────────────────────────────

func writeHeader(f *os.File) error {
	hdr := make([]byte, segmentHdrSize)
	copy(hdr, segmentMagic)
	hdr[len(segmentMagic)] = segmentVersion
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("walog: write header: %w", err)
	}
	return f.Sync()
}

func validateHeader(f *os.File) error {
	hdr := make([]byte, segmentHdrSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return fmt.Errorf("walog: read header: %w", err)
	}
	if string(hdr[:len(segmentMagic)]) != segmentMagic {
		return fmt.Errorf("walog: bad segment magic")
	}
	if hdr[len(segmentMagic)] > segmentVersion {
		return fmt.Errorf("walog: unsupported segment version %d", hdr[len(segmentMagic)])
	}
	return nil
}

// ───────────────────────────────────────────────────────────────────────────
// Frame + marker encoding
// ───────────────────────────────────────────────────────────────────────────

func encodeMarker(count uint32) []byte {
	buf := make([]byte, 1+4+4)
	buf[0] = recordKindMarker
	binary.LittleEndian.PutUint32(buf[1:5], count)
	h := crc32.New(crcTable)
	h.Write(buf[:5])
	binary.LittleEndian.PutUint32(buf[5:9], h.Sum32())
	return buf
}

func decodeMarker(buf []byte) (uint32, error) {
	if len(buf) != 9 || buf[0] != recordKindMarker {
		return 0, fmt.Errorf("walog: not a commit marker")
	}
	stored := binary.LittleEndian.Uint32(buf[5:9])
	h := crc32.New(crcTable)
	h.Write(buf[:5])
	if h.Sum32() != stored {
		return 0, fmt.Errorf("walog: commit marker CRC mismatch")
	}
	return binary.LittleEndian.Uint32(buf[1:5]), nil
}

// writeFrame writes a uint32-length-prefixed body.
func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed frame. It returns io.EOF only at a
// clean boundary (zero bytes read for the length prefix); any other
// short read is io.ErrUnexpectedEOF, the torn-tail signal replay relies
// on.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrameSize {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}
