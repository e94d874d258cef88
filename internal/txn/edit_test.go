package txn

import (
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeEditRoundTrip(t *testing.T) {
	cases := []*Edit{
		{Type: EditInProgress, Seq: 1, ID: 42, TxType: TypeShort, Expiration: 123456, VisibilityUpperBound: 10, CheckpointWritePointers: []ID{42}},
		{Type: EditCanCommit, Seq: 2, ID: 42, ChangeIDs: []ChangeID{ChangeID("row:1"), ChangeID("row:2")}},
		{Type: EditCommitted, Seq: 3, ID: 42},
		{Type: EditAborted, Seq: 4, ID: 7},
		{Type: EditInvalid, Seq: 5, ID: 7},
		{Type: EditMoveWatermark, Seq: 6, Watermark: 99},
		{Type: EditTruncateInvalidTx, Seq: 7, IDs: []ID{1, 2, 3}},
		{Type: EditCheckpoint, Seq: 8, ID: 42, CheckpointWritePointers: []ID{42, 50}},
	}

	for _, e := range cases {
		enc := EncodeEdit(e)
		got, err := DecodeEdit(enc)
		if err != nil {
			t.Fatalf("DecodeEdit(%v): %v", e.Type, err)
		}
		if got.Type != e.Type || got.Seq != e.Seq || got.ID != e.ID {
			t.Fatalf("round trip mismatch for %v: got %+v", e.Type, got)
		}
	}
}

func TestDecodeEditRejectsCorruptCRC(t *testing.T) {
	e := &Edit{Type: EditAborted, Seq: 1, ID: 5}
	enc := EncodeEdit(e)
	enc[len(enc)-1] ^= 0xFF
	if _, err := DecodeEdit(enc); err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestWriteReadEditRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	edits := []*Edit{
		{Type: EditInProgress, Seq: 1, ID: 1, TxType: TypeLong, Expiration: -1, CheckpointWritePointers: []ID{1}},
		{Type: EditCommitted, Seq: 2, ID: 1},
	}
	for _, e := range edits {
		if err := WriteEdit(&buf, e); err != nil {
			t.Fatalf("WriteEdit: %v", err)
		}
	}

	for _, want := range edits {
		got, err := ReadEdit(&buf)
		if err != nil {
			t.Fatalf("ReadEdit: %v", err)
		}
		if got.Type != want.Type || got.ID != want.ID {
			t.Fatalf("got %+v want %+v", got, want)
		}
	}
	if _, err := ReadEdit(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadEditReportsTornTailDistinctFromEOF(t *testing.T) {
	var buf bytes.Buffer
	WriteEdit(&buf, &Edit{Type: EditCommitted, Seq: 1, ID: 1})
	full := buf.Bytes()

	// Truncate mid-record: this must not look like a clean end of stream.
	torn := bytes.NewReader(full[:len(full)-2])
	if _, err := ReadEdit(torn); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF for a torn record, got %v", err)
	}
}
