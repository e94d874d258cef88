package txn

import "testing"

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Timestamp:    1000,
		ReadPointer:  5000,
		WritePointer: 6000,
		InProgress: map[ID]*InProgressTx{
			6000: {ID: 6000, VisibilityUpperBound: 5000, Expiration: 123456, Type: TypeShort, CheckpointWritePointers: []ID{6000}},
			6001: {ID: 6001, VisibilityUpperBound: 5000, Expiration: -1, Type: TypeLong, CheckpointWritePointers: []ID{6001, 6050}},
		},
		Invalid: []ID{10, 20, 30},
		CommittingChangeSets: map[ID][]ChangeID{
			6000: {ChangeID("row:a")},
		},
		CommittedChangeSets: map[ID][]ChangeID{
			5500: {ChangeID("row:b"), ChangeID("row:c")},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := sampleSnapshot()
	buf, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	got, err := DecodeSnapshot(buf)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if !s.Equal(got) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestSnapshotDecodeVisibilityToleratesCorruptTail(t *testing.T) {
	s := sampleSnapshot()
	buf, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	// Corrupt the three bytes just before the 4-byte CRC trailer, which
	// fall within the committed change-set tail, not the visibility prefix.
	corrupt := append([]byte(nil), buf...)
	for i := len(corrupt) - 7; i < len(corrupt)-4; i++ {
		corrupt[i] ^= 0xFF
	}

	got, err := DecodeSnapshotVisibility(corrupt)
	if err != nil {
		t.Fatalf("DecodeSnapshotVisibility should tolerate tail corruption: %v", err)
	}
	if got.ReadPointer != s.ReadPointer || got.WritePointer != s.WritePointer {
		t.Fatalf("visibility prefix mismatch: got %+v", got)
	}
}

func TestSnapshotDecodeRejectsBadMagic(t *testing.T) {
	buf := []byte("NOTACHRNSNAPxxxxx")
	if _, err := DecodeSnapshot(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestSnapshotV1BackCompatFixesUpInProgressType(t *testing.T) {
	s := sampleSnapshot()
	c, err := codecFor(1)
	if err != nil {
		t.Fatal(err)
	}
	body, err := c.Encode(s)
	if err != nil {
		t.Fatalf("v1 Encode: %v", err)
	}
	buf := append(snapshotHeader(1), body...)

	got, err := DecodeSnapshot(buf)
	if err != nil {
		t.Fatalf("DecodeSnapshot(v1): %v", err)
	}
	if got.InProgress[6000].Type != TypeShort {
		t.Fatalf("expected expiring entry to fix up to SHORT, got %v", got.InProgress[6000].Type)
	}
	if got.InProgress[6001].Type != TypeLong {
		t.Fatalf("expected expiration=-1 entry to fix up to LONG, got %v", got.InProgress[6001].Type)
	}
}

func TestSnapshotDecodeRejectsCorruptCRC(t *testing.T) {
	s := sampleSnapshot()
	buf, err := EncodeSnapshot(s)
	if err != nil {
		t.Fatal(err)
	}
	buf[len(buf)-1] ^= 0xFF
	if _, err := DecodeSnapshot(buf); err == nil {
		t.Fatal("expected CRC mismatch error from full Decode")
	}
}
