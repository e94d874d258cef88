package txn

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// EditType is one of the edit-log alphabet entries from spec §3. Every
// state mutation has exactly one corresponding edit type; replaying edits
// from an empty state reproduces the state.
type EditType uint8

const (
	EditInProgress         EditType = 1
	EditCanCommit          EditType = 2
	EditCommitted          EditType = 3
	EditAborted            EditType = 4
	EditInvalid            EditType = 5
	EditMoveWatermark      EditType = 6
	EditTruncateInvalidTx  EditType = 7
	EditCheckpoint         EditType = 8
	// editResetState is an administrative sentinel written by ResetState;
	// it is not part of the public spec alphabet but must round-trip
	// through the same log so a replaying reader can detect the epoch
	// boundary.
	editResetState EditType = 9
)

func (t EditType) String() string {
	switch t {
	case EditInProgress:
		return "INPROGRESS"
	case EditCanCommit:
		return "CANCOMMIT"
	case EditCommitted:
		return "COMMITTED"
	case EditAborted:
		return "ABORTED"
	case EditInvalid:
		return "INVALID"
	case EditMoveWatermark:
		return "MOVE_WATERMARK"
	case EditTruncateInvalidTx:
		return "TRUNCATE_INVALID_TX"
	case EditCheckpoint:
		return "CHECKPOINT"
	case editResetState:
		return "RESET_STATE"
	default:
		return fmt.Sprintf("EDIT(%d)", uint8(t))
	}
}

// Edit is the durable record of a single state mutation (spec §3). Not
// every field applies to every Type; see the per-type notes on each
// field.
type Edit struct {
	Seq  uint64
	Type EditType

	// ID is the transaction id this edit concerns. Unused by
	// EditMoveWatermark and EditTruncateInvalidTx.
	ID ID

	// TxType classifies INPROGRESS/CHECKPOINT edits as SHORT/LONG/CHECKPOINT.
	TxType Type

	// Expiration is set on EditInProgress: wall-clock millis after which
	// the tx may be swept, or -1 for LONG.
	Expiration int64

	// VisibilityUpperBound is set on EditInProgress: the readPointer
	// captured at start.
	VisibilityUpperBound ID

	// CheckpointWritePointers is set on EditInProgress (the tx's pointers
	// so far, normally just [ID]) and EditCheckpoint (the full updated
	// list after adding the new pointer).
	CheckpointWritePointers []ID

	// ChangeIDs is set on EditCanCommit: the committing change-set.
	ChangeIDs []ChangeID

	// IDs is set on EditTruncateInvalidTx: the ids removed from invalid.
	IDs []ID

	// Watermark is set on EditMoveWatermark: the new readPointer.
	Watermark ID
}

// ───────────────────────────────────────────────────────────────────────────
// Binary codec
//
// Grounded on internal/storage/pager/wal.go's marshalWALRecord /
// unmarshalWALRecord: a fixed header, a variable payload, and a trailing
// CRC32 (Castagnoli) computed over header+payload, i.e. every byte that
// precedes the CRC field.
// ───────────────────────────────────────────────────────────────────────────

const editHeaderSize = 1 + 8 + 8 // Type + Seq + ID
const editCRCSize = 4

var editCRCTable = crc32.MakeTable(crc32.Castagnoli)

// EncodeEdit serializes e into its durable byte representation.
func EncodeEdit(e *Edit) []byte {
	payload := encodeEditPayload(e)

	buf := make([]byte, editHeaderSize+len(payload)+editCRCSize)
	buf[0] = byte(e.Type)
	binary.LittleEndian.PutUint64(buf[1:9], e.Seq)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(e.ID))
	copy(buf[editHeaderSize:], payload)

	h := crc32.New(editCRCTable)
	h.Write(buf[:len(buf)-editCRCSize])
	binary.LittleEndian.PutUint32(buf[len(buf)-editCRCSize:], h.Sum32())
	return buf
}

// DecodeEdit parses an edit previously produced by EncodeEdit, verifying
// its CRC.
func DecodeEdit(buf []byte) (*Edit, error) {
	if len(buf) < editHeaderSize+editCRCSize {
		return nil, fmt.Errorf("edit record too short: %d bytes", len(buf))
	}
	body := buf[:len(buf)-editCRCSize]
	storedCRC := binary.LittleEndian.Uint32(buf[len(buf)-editCRCSize:])
	h := crc32.New(editCRCTable)
	h.Write(body)
	if h.Sum32() != storedCRC {
		return nil, fmt.Errorf("edit record CRC mismatch")
	}

	e := &Edit{
		Type: EditType(buf[0]),
		Seq:  binary.LittleEndian.Uint64(buf[1:9]),
		ID:   ID(binary.LittleEndian.Uint64(buf[9:17])),
	}
	if err := decodeEditPayload(e, buf[editHeaderSize:len(buf)-editCRCSize]); err != nil {
		return nil, fmt.Errorf("edit payload: %w", err)
	}
	return e, nil
}

// WriteEdit writes the length-prefixed encoded edit to w: a uint32 LE
// length followed by EncodeEdit(e). ReadEdit is its exact counterpart.
func WriteEdit(w io.Writer, e *Edit) error {
	enc := EncodeEdit(e)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(enc)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(enc)
	return err
}

// ReadEdit reads one length-prefixed edit from r. It returns io.EOF only
// when zero bytes could be read at a record boundary; any other read
// failure (including a short length prefix or a short/corrupt body) is
// reported as io.ErrUnexpectedEOF so callers can distinguish "no more
// data" from "torn tail".
func ReadEdit(r io.Reader) (*Edit, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 || n > 64<<20 {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	e, err := DecodeEdit(buf)
	if err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return e, nil
}

func encodeEditPayload(e *Edit) []byte {
	switch e.Type {
	case EditInProgress:
		return encodeInProgressPayload(e)
	case EditCanCommit:
		return encodeChangeIDs(e.ChangeIDs)
	case EditCommitted, EditAborted, EditInvalid:
		return nil
	case EditMoveWatermark:
		return encodeID(e.Watermark)
	case EditTruncateInvalidTx:
		return encodeIDs(e.IDs)
	case EditCheckpoint:
		return append([]byte{byte(e.TxType)}, encodeIDs(e.CheckpointWritePointers)...)
	case editResetState:
		return nil
	default:
		return nil
	}
}

func decodeEditPayload(e *Edit, buf []byte) error {
	switch e.Type {
	case EditInProgress:
		return decodeInProgressPayload(e, buf)
	case EditCanCommit:
		ids, _, err := decodeChangeIDs(buf)
		e.ChangeIDs = ids
		return err
	case EditCommitted, EditAborted, EditInvalid, editResetState:
		return nil
	case EditMoveWatermark:
		v, _, err := decodeID(buf)
		e.Watermark = v
		return err
	case EditTruncateInvalidTx:
		ids, _, err := decodeIDs(buf)
		e.IDs = ids
		return err
	case EditCheckpoint:
		if len(buf) < 1 {
			return fmt.Errorf("checkpoint payload too short")
		}
		e.TxType = Type(buf[0])
		ids, _, err := decodeIDs(buf[1:])
		e.CheckpointWritePointers = ids
		return err
	default:
		return fmt.Errorf("unknown edit type %d", e.Type)
	}
}

func encodeInProgressPayload(e *Edit) []byte {
	var buf []byte
	buf = append(buf, byte(e.TxType))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(e.Expiration))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(e.VisibilityUpperBound))
	buf = append(buf, tmp[:]...)
	buf = append(buf, encodeIDs(e.CheckpointWritePointers)...)
	return buf
}

func decodeInProgressPayload(e *Edit, buf []byte) error {
	if len(buf) < 1+8+8 {
		return fmt.Errorf("inprogress payload too short")
	}
	e.TxType = Type(buf[0])
	e.Expiration = int64(binary.LittleEndian.Uint64(buf[1:9]))
	e.VisibilityUpperBound = ID(binary.LittleEndian.Uint64(buf[9:17]))
	ids, _, err := decodeIDs(buf[17:])
	e.CheckpointWritePointers = ids
	return err
}

func encodeID(v ID) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

func decodeID(buf []byte) (ID, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("id payload too short")
	}
	return ID(binary.LittleEndian.Uint64(buf[:8])), buf[8:], nil
}

func encodeIDs(ids []ID) []byte {
	var buf []byte
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(ids)))
	buf = append(buf, tmp[:]...)
	for _, id := range ids {
		buf = append(buf, encodeID(id)...)
	}
	return buf
}

func decodeIDs(buf []byte) ([]ID, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("ids payload too short")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(n)*8 {
		return nil, nil, fmt.Errorf("ids payload truncated")
	}
	ids := make([]ID, n)
	for i := range ids {
		ids[i] = ID(binary.LittleEndian.Uint64(buf[:8]))
		buf = buf[8:]
	}
	return ids, buf, nil
}

func encodeChangeIDs(cids []ChangeID) []byte {
	var buf []byte
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(cids)))
	buf = append(buf, tmp[:]...)
	for _, c := range cids {
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(c)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, c...)
	}
	return buf
}

func decodeChangeIDs(buf []byte) ([]ChangeID, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("changeids payload too short")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	cids := make([]ChangeID, n)
	for i := range cids {
		if len(buf) < 4 {
			return nil, nil, fmt.Errorf("changeids entry truncated")
		}
		l := binary.LittleEndian.Uint32(buf[:4])
		buf = buf[4:]
		if uint64(len(buf)) < uint64(l) {
			return nil, nil, fmt.Errorf("changeids entry body truncated")
		}
		c := make(ChangeID, l)
		copy(c, buf[:l])
		cids[i] = c
		buf = buf[l:]
	}
	return cids, buf, nil
}
