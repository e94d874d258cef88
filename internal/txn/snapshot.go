package txn

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
)

// Snapshot is the full durable state of the manager: the visibility
// prefix (timestamp, readPointer, writePointer, in-progress map, invalid
// list) spec §4.3 requires followers be able to decode even when the tail
// is corrupt, followed by the committing/committed change-set tail.
type Snapshot struct {
	Timestamp    int64
	ReadPointer  ID
	WritePointer ID
	InProgress   map[ID]*InProgressTx
	Invalid      []ID

	CommittingChangeSets map[ID][]ChangeID
	CommittedChangeSets  map[ID][]ChangeID
}

// Equal reports deep equality, used by the round-trip tests (spec §8).
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Timestamp != o.Timestamp || s.ReadPointer != o.ReadPointer || s.WritePointer != o.WritePointer {
		return false
	}
	if !idsEqual(s.Invalid, o.Invalid) {
		return false
	}
	if len(s.InProgress) != len(o.InProgress) {
		return false
	}
	for id, a := range s.InProgress {
		b, ok := o.InProgress[id]
		if !ok || a.VisibilityUpperBound != b.VisibilityUpperBound || a.Expiration != b.Expiration || a.Type != b.Type {
			return false
		}
		if !idsEqual(a.CheckpointWritePointers, b.CheckpointWritePointers) {
			return false
		}
	}
	if !changeMapEqual(s.CommittingChangeSets, o.CommittingChangeSets) {
		return false
	}
	if !changeMapEqual(s.CommittedChangeSets, o.CommittedChangeSets) {
		return false
	}
	return true
}

func idsEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func changeMapEqual(a, b map[ID][]ChangeID) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		am, bm := newChangeSet(av), newChangeSet(bv)
		for key := range am {
			if _, ok := bm[key]; !ok {
				return false
			}
		}
	}
	return true
}

// ───────────────────────────────────────────────────────────────────────────
// Codec registry
//
// Grounded on internal/storage/pager/superblock.go's magic/version/CRC page
// header, generalized from "one supported format, reject anything else"
// (SupportedFeatures) to a registry of codecs selected by version byte,
// because spec §4.3 requires a reader accept *any* registered version
// while always writing the latest.
// ───────────────────────────────────────────────────────────────────────────

const snapshotMagic = "CHRNSNAP"

// CurrentSnapshotVersion is the version producers always write.
const CurrentSnapshotVersion byte = 2

// Codec encodes/decodes a Snapshot for one on-disk format version.
type Codec interface {
	Version() byte
	Encode(s *Snapshot) ([]byte, error)
	Decode(buf []byte) (*Snapshot, error)
	// DecodeVisibility reads only the visibility prefix, tolerating
	// corruption in the tail (spec §4.3's read-only-follower mode).
	DecodeVisibility(buf []byte) (*Snapshot, error)
}

var codecRegistry = map[byte]Codec{}

// RegisterCodec adds a codec to the registry, keyed by its version byte.
// Codecs register themselves from an init() the way
// internal/storage/backend_disk.go's init() registers its gob types.
func RegisterCodec(c Codec) {
	codecRegistry[c.Version()] = c
}

func init() {
	RegisterCodec(&codecV1{})
	RegisterCodec(&codecV2{})
}

func codecFor(version byte) (Codec, error) {
	c, ok := codecRegistry[version]
	if !ok {
		return nil, fmt.Errorf("snapshot: no codec registered for version %d", version)
	}
	return c, nil
}

// EncodeSnapshot writes the magic+version header and delegates to the
// current codec.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	c, err := codecFor(CurrentSnapshotVersion)
	if err != nil {
		return nil, err
	}
	body, err := c.Encode(s)
	if err != nil {
		return nil, err
	}
	return append(snapshotHeader(c.Version()), body...), nil
}

// DecodeSnapshot reads the header to select a codec and fully decodes.
func DecodeSnapshot(buf []byte) (*Snapshot, error) {
	version, body, err := splitSnapshotHeader(buf)
	if err != nil {
		return nil, err
	}
	c, err := codecFor(version)
	if err != nil {
		return nil, err
	}
	return c.Decode(body)
}

// DecodeSnapshotVisibility decodes only the visibility prefix, tolerating
// a corrupt tail.
func DecodeSnapshotVisibility(buf []byte) (*Snapshot, error) {
	version, body, err := splitSnapshotHeader(buf)
	if err != nil {
		return nil, err
	}
	c, err := codecFor(version)
	if err != nil {
		return nil, err
	}
	return c.DecodeVisibility(body)
}

func snapshotHeader(version byte) []byte {
	buf := make([]byte, len(snapshotMagic)+1)
	copy(buf, snapshotMagic)
	buf[len(snapshotMagic)] = version
	return buf
}

func splitSnapshotHeader(buf []byte) (byte, []byte, error) {
	hdrLen := len(snapshotMagic) + 1
	if len(buf) < hdrLen {
		return 0, nil, fmt.Errorf("snapshot: header too short")
	}
	if string(buf[:len(snapshotMagic)]) != snapshotMagic {
		return 0, nil, fmt.Errorf("snapshot: bad magic")
	}
	return buf[len(snapshotMagic)], buf[hdrLen:], nil
}

var snapshotCRCTable = crc32.MakeTable(crc32.Castagnoli)

// ───────────────────────────────────────────────────────────────────────────
// Visibility prefix (shared encode/decode helpers, both codec versions)
// ───────────────────────────────────────────────────────────────────────────

func encodeVisibilityPrefix(s *Snapshot) []byte {
	var buf []byte
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], uint64(s.Timestamp))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.ReadPointer))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.WritePointer))
	buf = append(buf, tmp[:]...)

	// In-progress map, sorted by id for determinism.
	ids := make([]ID, 0, len(s.InProgress))
	for id := range s.InProgress {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(ids)))
	buf = append(buf, cnt[:]...)
	for _, id := range ids {
		tx := s.InProgress[id]
		buf = append(buf, encodeID(id)...)
		buf = append(buf, byte(tx.Type))
		binary.LittleEndian.PutUint64(tmp[:], uint64(tx.Expiration))
		buf = append(buf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(tx.VisibilityUpperBound))
		buf = append(buf, tmp[:]...)
		buf = append(buf, encodeIDs(tx.CheckpointWritePointers)...)
	}

	buf = append(buf, encodeIDs(s.Invalid)...)
	return buf
}

// encodeVisibilityPrefixV1 omits the in-progress Type byte, matching the
// pre-epoch wire format spec §4.3 describes for back-compat fixup.
func encodeVisibilityPrefixV1(s *Snapshot) []byte {
	var buf []byte
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], uint64(s.Timestamp))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.ReadPointer))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.WritePointer))
	buf = append(buf, tmp[:]...)

	ids := make([]ID, 0, len(s.InProgress))
	for id := range s.InProgress {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(ids)))
	buf = append(buf, cnt[:]...)
	for _, id := range ids {
		tx := s.InProgress[id]
		buf = append(buf, encodeID(id)...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(tx.Expiration))
		buf = append(buf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(tx.VisibilityUpperBound))
		buf = append(buf, tmp[:]...)
		buf = append(buf, encodeIDs(tx.CheckpointWritePointers)...)
	}

	buf = append(buf, encodeIDs(s.Invalid)...)
	return buf
}

func decodeVisibilityPrefix(buf []byte, hasType bool) (*Snapshot, []byte, error) {
	if len(buf) < 24+4 {
		return nil, nil, fmt.Errorf("snapshot: visibility prefix too short")
	}
	s := &Snapshot{InProgress: map[ID]*InProgressTx{}}
	s.Timestamp = int64(binary.LittleEndian.Uint64(buf[0:8]))
	s.ReadPointer = ID(binary.LittleEndian.Uint64(buf[8:16]))
	s.WritePointer = ID(binary.LittleEndian.Uint64(buf[16:24]))
	buf = buf[24:]

	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	for i := uint32(0); i < n; i++ {
		id, rest, err := decodeID(buf)
		if err != nil {
			return nil, nil, err
		}
		buf = rest
		tx := &InProgressTx{ID: id}
		if hasType {
			if len(buf) < 1 {
				return nil, nil, fmt.Errorf("snapshot: truncated in-progress type")
			}
			tx.Type = Type(buf[0])
			buf = buf[1:]
		}
		if len(buf) < 16 {
			return nil, nil, fmt.Errorf("snapshot: truncated in-progress entry")
		}
		tx.Expiration = int64(binary.LittleEndian.Uint64(buf[0:8]))
		tx.VisibilityUpperBound = ID(binary.LittleEndian.Uint64(buf[8:16]))
		buf = buf[16:]
		cps, rest2, err := decodeIDs(buf)
		if err != nil {
			return nil, nil, err
		}
		tx.CheckpointWritePointers = cps
		buf = rest2

		if !hasType {
			// Back-compat fixup (spec §4.3): entries from codecs that
			// predate InProgressType are reinterpreted from expiration.
			if tx.Expiration == -1 {
				tx.Type = TypeLong
			} else {
				tx.Type = TypeShort
			}
		}
		s.InProgress[id] = tx
	}

	invalid, rest, err := decodeIDs(buf)
	if err != nil {
		return nil, nil, err
	}
	s.Invalid = invalid
	return s, rest, nil
}

func encodeChangeSetMap(m map[ID][]ChangeID) []byte {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf []byte
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(ids)))
	buf = append(buf, cnt[:]...)
	for _, id := range ids {
		buf = append(buf, encodeID(id)...)
		buf = append(buf, encodeChangeIDs(m[id])...)
	}
	return buf
}

func decodeChangeSetMap(buf []byte) (map[ID][]ChangeID, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("snapshot: change-set map too short")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	m := make(map[ID][]ChangeID, n)
	for i := uint32(0); i < n; i++ {
		id, rest, err := decodeID(buf)
		if err != nil {
			return nil, nil, err
		}
		cids, rest2, err := decodeChangeIDs(rest)
		if err != nil {
			return nil, nil, err
		}
		m[id] = cids
		buf = rest2
	}
	return m, buf, nil
}

// ───────────────────────────────────────────────────────────────────────────
// Codec v2 (current): visibility prefix with explicit InProgressType.
// ───────────────────────────────────────────────────────────────────────────

type codecV2 struct{}

func (codecV2) Version() byte { return 2 }

func (codecV2) Encode(s *Snapshot) ([]byte, error) {
	buf := encodeVisibilityPrefix(s)
	buf = append(buf, encodeChangeSetMap(s.CommittingChangeSets)...)
	buf = append(buf, encodeChangeSetMap(s.CommittedChangeSets)...)
	return withCRC(buf), nil
}

func (codecV2) Decode(buf []byte) (*Snapshot, error) {
	body, err := verifyCRC(buf)
	if err != nil {
		return nil, err
	}
	s, rest, err := decodeVisibilityPrefix(body, true)
	if err != nil {
		return nil, err
	}
	committing, rest2, err := decodeChangeSetMap(rest)
	if err != nil {
		return nil, err
	}
	committed, _, err := decodeChangeSetMap(rest2)
	if err != nil {
		return nil, err
	}
	s.CommittingChangeSets = committing
	s.CommittedChangeSets = committed
	return s, nil
}

func (codecV2) DecodeVisibility(buf []byte) (*Snapshot, error) {
	// Tolerant: CRC covers the whole body, but a visibility-only reader
	// must still succeed even if the tail (committing/committed maps) is
	// corrupt, so skip CRC verification and stop after the prefix.
	if len(buf) < 4 {
		return nil, fmt.Errorf("snapshot: truncated body")
	}
	body := buf[:len(buf)-4]
	s, _, err := decodeVisibilityPrefix(body, true)
	return s, err
}

// ───────────────────────────────────────────────────────────────────────────
// Codec v1: legacy, omits InProgressType (spec §4.3 back-compat fixup).
// ───────────────────────────────────────────────────────────────────────────

type codecV1 struct{}

func (codecV1) Version() byte { return 1 }

func (codecV1) Encode(s *Snapshot) ([]byte, error) {
	buf := encodeVisibilityPrefixV1(s)
	buf = append(buf, encodeChangeSetMap(s.CommittingChangeSets)...)
	buf = append(buf, encodeChangeSetMap(s.CommittedChangeSets)...)
	return withCRC(buf), nil
}

func (codecV1) Decode(buf []byte) (*Snapshot, error) {
	body, err := verifyCRC(buf)
	if err != nil {
		return nil, err
	}
	s, rest, err := decodeVisibilityPrefix(body, false)
	if err != nil {
		return nil, err
	}
	committing, rest2, err := decodeChangeSetMap(rest)
	if err != nil {
		return nil, err
	}
	committed, _, err := decodeChangeSetMap(rest2)
	if err != nil {
		return nil, err
	}
	s.CommittingChangeSets = committing
	s.CommittedChangeSets = committed
	return s, nil
}

func (codecV1) DecodeVisibility(buf []byte) (*Snapshot, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("snapshot: truncated body")
	}
	body := buf[:len(buf)-4]
	s, _, err := decodeVisibilityPrefix(body, false)
	return s, err
}

func withCRC(body []byte) []byte {
	h := crc32.New(snapshotCRCTable)
	h.Write(body)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], h.Sum32())
	return append(body, tmp[:]...)
}

func verifyCRC(buf []byte) ([]byte, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("snapshot: truncated body")
	}
	body := buf[:len(buf)-4]
	stored := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	h := crc32.New(snapshotCRCTable)
	h.Write(body)
	if h.Sum32() != stored {
		return nil, fmt.Errorf("snapshot: CRC mismatch")
	}
	return body, nil
}
