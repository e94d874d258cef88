package walog

import (
	"fmt"
	"io"
	"os"

	"github.com/chronodb/chronon/internal/txn"
)

// ReadSegment replays every edit in the segment at path by calling apply
// for each one, in log order. A torn final group (fewer edit frames than
// its marker's count, or a decode failure inside the group) is discarded
// in its entirety — version ≥ 2's stronger guarantee over the teacher's
// WAL, which truncates from the first bad record onward regardless of
// group boundaries. Version-1 segments (no markers) fall back to that
// plain truncate-on-error behavior.
func ReadSegment(path string, apply func(*txn.Edit) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("walog: open segment: %w", err)
	}
	defer f.Close()

	hdr := make([]byte, segmentHdrSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return fmt.Errorf("walog: read header: %w", err)
	}
	if string(hdr[:len(segmentMagic)]) != segmentMagic {
		return fmt.Errorf("walog: bad segment magic")
	}
	version := hdr[len(segmentMagic)]

	if version >= 2 {
		return replayGroups(f, apply)
	}
	return replayLegacy(f, apply)
}

func replayGroups(r io.Reader, apply func(*txn.Edit) error) error {
	for {
		markerBody, err := readFrame(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Nothing durable follows a torn marker frame.
			return nil
		}
		count, err := decodeMarker(markerBody)
		if err != nil {
			return nil
		}

		edits := make([]*txn.Edit, 0, count)
		torn := false
		for i := uint32(0); i < count; i++ {
			body, err := readFrame(r)
			if err != nil {
				torn = true
				break
			}
			e, err := txn.DecodeEdit(body)
			if err != nil {
				torn = true
				break
			}
			edits = append(edits, e)
		}
		if torn {
			// Discard the whole partial group; nothing after it can be
			// trusted either.
			return nil
		}
		for _, e := range edits {
			if err := apply(e); err != nil {
				return err
			}
		}
	}
}

func replayLegacy(r io.Reader, apply func(*txn.Edit) error) error {
	for {
		body, err := readFrame(r)
		if err != nil {
			// EOF or the first corrupt/torn record: stop, matching
			// internal/storage/pager/wal.go's ReadAllRecords.
			return nil
		}
		e, err := txn.DecodeEdit(body)
		if err != nil {
			return nil
		}
		if err := apply(e); err != nil {
			return err
		}
	}
}
