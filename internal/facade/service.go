// Package facade exposes the transaction manager as a gRPC service,
// translating each RPC into exactly one manager operation (spec §4.5).
//
// Grounded on cmd/server/main.go's hand-rolled gRPC wiring: a JSON
// encoding.Codec registered with encoding.RegisterCodec, a manually
// built grpc.ServiceDesc/MethodDesc pair per RPC (no protoc-generated
// stubs), and grpc.NewServer()/net.Listen serving wiring — the same
// shape, generalized from two SQL RPCs (Exec/Query) to the thirteen
// manager operations spec §4.5 allows.
package facade

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"google.golang.org/grpc/encoding"

	"github.com/chronodb/chronon/internal/txn"
)

func millis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func millisToTime(ms int64) time.Time { return time.UnixMilli(ms) }

// jsonCodec is the wire codec, identical in shape to cmd/server/main.go's
// jsonCodec — chronon has no protobuf schema, so JSON is the simplest
// codec the grpc-go transport accepts without generated stubs.
type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Codec returns the facade's wire codec, for registration with
// encoding.RegisterCodec by the process entry point.
func Codec() encoding.Codec { return jsonCodec{} }

// ───────────────────────────────────────────────────────────────────────────
// Wire types
// ───────────────────────────────────────────────────────────────────────────

// TransactionView is the wire representation of *txn.Transaction.
type TransactionView struct {
	TransactionID           int64   `json:"transaction_id"`
	WritePointer            int64   `json:"write_pointer"`
	ReadPointer             int64   `json:"read_pointer"`
	Invalids                []int64 `json:"invalids,omitempty"`
	InProgress              []int64 `json:"in_progress,omitempty"`
	FirstShortInProgress    int64   `json:"first_short_in_progress"`
	CheckpointWritePointers []int64 `json:"checkpoint_write_pointers,omitempty"`
	Type                    uint8   `json:"type"`
}

func toView(tx *txn.Transaction) TransactionView {
	return TransactionView{
		TransactionID:           int64(tx.TransactionID),
		WritePointer:            int64(tx.WritePointer),
		ReadPointer:             int64(tx.ReadPointer),
		Invalids:                idsToInt64(tx.Invalids),
		InProgress:              idsToInt64(tx.InProgress),
		FirstShortInProgress:    int64(tx.FirstShortInProgress),
		CheckpointWritePointers: idsToInt64(tx.CheckpointWritePointers),
		Type:                    uint8(tx.Type),
	}
}

func fromView(v TransactionView) *txn.Transaction {
	return &txn.Transaction{
		TransactionID:           txn.ID(v.TransactionID),
		WritePointer:            txn.ID(v.WritePointer),
		ReadPointer:             txn.ID(v.ReadPointer),
		Invalids:                int64sToIDs(v.Invalids),
		InProgress:              int64sToIDs(v.InProgress),
		FirstShortInProgress:    txn.ID(v.FirstShortInProgress),
		CheckpointWritePointers: int64sToIDs(v.CheckpointWritePointers),
		Type:                    txn.Type(v.Type),
	}
}

func idsToInt64(ids []txn.ID) []int64 {
	if ids == nil {
		return nil
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func int64sToIDs(vs []int64) []txn.ID {
	if vs == nil {
		return nil
	}
	out := make([]txn.ID, len(vs))
	for i, v := range vs {
		out[i] = txn.ID(v)
	}
	return out
}

type StartRequest struct {
	TimeoutMillis int64 `json:"timeout_millis"`
	Long          bool  `json:"long"`
}
type StartResponse struct {
	Tx TransactionView `json:"tx"`
}
type CanCommitRequest struct {
	Tx        TransactionView `json:"tx"`
	ChangeIDs [][]byte        `json:"change_ids"`
}
type CanCommitResponse struct {
	OK bool `json:"ok"`
}
type CommitRequest struct {
	Tx TransactionView `json:"tx"`
}
type CommitResponse struct {
	OK bool `json:"ok"`
}
type AbortRequest struct {
	Tx TransactionView `json:"tx"`
}
type InvalidateRequest struct {
	ID int64 `json:"id"`
}
type InvalidateResponse struct {
	Changed bool `json:"changed"`
}
type CheckpointRequest struct {
	Tx TransactionView `json:"tx"`
}
type CheckpointResponse struct {
	Tx TransactionView `json:"tx"`
}
type TruncateInvalidTxRequest struct {
	IDs []int64 `json:"ids"`
}
type TruncateInvalidTxBeforeRequest struct {
	CutoffMillis int64 `json:"cutoff_millis"`
}
type TruncateResponse struct {
	Changed bool `json:"changed"`
}
type GetInvalidSizeResponse struct {
	Size int `json:"size"`
}
type StatusResponse struct {
	ReadPointer     int64 `json:"read_pointer"`
	WritePointer    int64 `json:"write_pointer"`
	InProgressCount int   `json:"in_progress_count"`
	InvalidCount    int   `json:"invalid_count"`
	CommittingCount int   `json:"committing_count"`
	CommittedCount  int   `json:"committed_count"`
}
type SnapshotResponse struct {
	Data []byte `json:"data"`
}
type Empty struct{}

// ───────────────────────────────────────────────────────────────────────────
// Server
// ───────────────────────────────────────────────────────────────────────────

// Server is the RPC surface spec §4.5 allows: one method per manager
// operation, nothing more.
type Server interface {
	Start(ctx context.Context, req *StartRequest) (*StartResponse, error)
	CanCommit(ctx context.Context, req *CanCommitRequest) (*CanCommitResponse, error)
	Commit(ctx context.Context, req *CommitRequest) (*CommitResponse, error)
	Abort(ctx context.Context, req *AbortRequest) (*Empty, error)
	Invalidate(ctx context.Context, req *InvalidateRequest) (*InvalidateResponse, error)
	Checkpoint(ctx context.Context, req *CheckpointRequest) (*CheckpointResponse, error)
	TruncateInvalidTx(ctx context.Context, req *TruncateInvalidTxRequest) (*TruncateResponse, error)
	TruncateInvalidTxBefore(ctx context.Context, req *TruncateInvalidTxBeforeRequest) (*TruncateResponse, error)
	GetInvalidSize(ctx context.Context, req *Empty) (*GetInvalidSizeResponse, error)
	PruneNow(ctx context.Context, req *Empty) (*Empty, error)
	ResetState(ctx context.Context, req *Empty) (*Empty, error)
	Status(ctx context.Context, req *Empty) (*StatusResponse, error)
	GetSnapshotInputStream(ctx context.Context, req *Empty) (*SnapshotResponse, error)
}

// FacadeServer implements Server by translating each RPC into one call
// on a *txn.Manager.
type FacadeServer struct {
	mgr *txn.Manager
}

// NewFacadeServer wraps mgr behind the Server RPC surface.
func NewFacadeServer(mgr *txn.Manager) *FacadeServer {
	return &FacadeServer{mgr: mgr}
}

func (s *FacadeServer) Start(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	var tx *txn.Transaction
	var err error
	if req.Long {
		tx, err = s.mgr.StartLong()
	} else {
		tx, err = s.mgr.StartShort(millis(req.TimeoutMillis))
	}
	if err != nil {
		return nil, err
	}
	return &StartResponse{Tx: toView(tx)}, nil
}

func (s *FacadeServer) CanCommit(ctx context.Context, req *CanCommitRequest) (*CanCommitResponse, error) {
	ok, err := s.mgr.CanCommit(fromView(req.Tx), bytesToChangeIDs(req.ChangeIDs))
	if err != nil {
		return nil, err
	}
	return &CanCommitResponse{OK: ok}, nil
}

func (s *FacadeServer) Commit(ctx context.Context, req *CommitRequest) (*CommitResponse, error) {
	ok, err := s.mgr.Commit(fromView(req.Tx))
	if err != nil {
		return nil, err
	}
	return &CommitResponse{OK: ok}, nil
}

func (s *FacadeServer) Abort(ctx context.Context, req *AbortRequest) (*Empty, error) {
	if err := s.mgr.Abort(fromView(req.Tx)); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *FacadeServer) Invalidate(ctx context.Context, req *InvalidateRequest) (*InvalidateResponse, error) {
	changed, err := s.mgr.Invalidate(txn.ID(req.ID))
	if err != nil {
		return nil, err
	}
	return &InvalidateResponse{Changed: changed}, nil
}

func (s *FacadeServer) Checkpoint(ctx context.Context, req *CheckpointRequest) (*CheckpointResponse, error) {
	tx, err := s.mgr.Checkpoint(fromView(req.Tx))
	if err != nil {
		return nil, err
	}
	return &CheckpointResponse{Tx: toView(tx)}, nil
}

func (s *FacadeServer) TruncateInvalidTx(ctx context.Context, req *TruncateInvalidTxRequest) (*TruncateResponse, error) {
	changed, err := s.mgr.TruncateInvalidTx(int64sToIDs(req.IDs))
	if err != nil {
		return nil, err
	}
	return &TruncateResponse{Changed: changed}, nil
}

func (s *FacadeServer) TruncateInvalidTxBefore(ctx context.Context, req *TruncateInvalidTxBeforeRequest) (*TruncateResponse, error) {
	changed, err := s.mgr.TruncateInvalidTxBefore(millisToTime(req.CutoffMillis))
	if err != nil {
		return nil, err
	}
	return &TruncateResponse{Changed: changed}, nil
}

func (s *FacadeServer) GetInvalidSize(ctx context.Context, req *Empty) (*GetInvalidSizeResponse, error) {
	return &GetInvalidSizeResponse{Size: s.mgr.GetInvalidSize()}, nil
}

func (s *FacadeServer) PruneNow(ctx context.Context, req *Empty) (*Empty, error) {
	s.mgr.PruneNow()
	return &Empty{}, nil
}

func (s *FacadeServer) ResetState(ctx context.Context, req *Empty) (*Empty, error) {
	if err := s.mgr.ResetState(); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *FacadeServer) Status(ctx context.Context, req *Empty) (*StatusResponse, error) {
	st := s.mgr.Status()
	return &StatusResponse{
		ReadPointer:     int64(st.ReadPointer),
		WritePointer:    int64(st.WritePointer),
		InProgressCount: st.InProgressCount,
		InvalidCount:    st.InvalidCount,
		CommittingCount: st.CommittingCount,
		CommittedCount:  st.CommittedCount,
	}, nil
}

func (s *FacadeServer) GetSnapshotInputStream(ctx context.Context, req *Empty) (*SnapshotResponse, error) {
	r, err := s.mgr.SnapshotInputStream()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, txn.KindWrap(txn.KindSnapshotFailure, "read snapshot stream", err)
	}
	return &SnapshotResponse{Data: data}, nil
}

func bytesToChangeIDs(raw [][]byte) []txn.ChangeID {
	if raw == nil {
		return nil
	}
	out := make([]txn.ChangeID, len(raw))
	for i, b := range raw {
		out[i] = txn.ChangeID(b)
	}
	return out
}
