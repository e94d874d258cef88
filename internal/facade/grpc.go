package facade

import (
	"context"

	"google.golang.org/grpc"
)

// RegisterChrononServer mirrors cmd/server/main.go's registerTinySQLServer:
// a manual grpc.ServiceDesc naming every method by hand, since chronon has
// no protobuf schema to generate one from.
func RegisterChrononServer(s *grpc.Server, srv Server) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "chronon.Chronon",
		HandlerType: (*Server)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Start", Handler: _Chronon_Start_Handler},
			{MethodName: "CanCommit", Handler: _Chronon_CanCommit_Handler},
			{MethodName: "Commit", Handler: _Chronon_Commit_Handler},
			{MethodName: "Abort", Handler: _Chronon_Abort_Handler},
			{MethodName: "Invalidate", Handler: _Chronon_Invalidate_Handler},
			{MethodName: "Checkpoint", Handler: _Chronon_Checkpoint_Handler},
			{MethodName: "TruncateInvalidTx", Handler: _Chronon_TruncateInvalidTx_Handler},
			{MethodName: "TruncateInvalidTxBefore", Handler: _Chronon_TruncateInvalidTxBefore_Handler},
			{MethodName: "GetInvalidSize", Handler: _Chronon_GetInvalidSize_Handler},
			{MethodName: "PruneNow", Handler: _Chronon_PruneNow_Handler},
			{MethodName: "ResetState", Handler: _Chronon_ResetState_Handler},
			{MethodName: "Status", Handler: _Chronon_Status_Handler},
			{MethodName: "GetSnapshotInputStream", Handler: _Chronon_GetSnapshotInputStream_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "chronon",
	}, srv)
}

func _Chronon_Start_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Start(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Start"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Start(ctx, req.(*StartRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_CanCommit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CanCommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CanCommit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/CanCommit"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).CanCommit(ctx, req.(*CanCommitRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_Commit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Commit"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Commit(ctx, req.(*CommitRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_Abort_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AbortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Abort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Abort"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Abort(ctx, req.(*AbortRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_Invalidate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvalidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Invalidate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Invalidate"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Invalidate(ctx, req.(*InvalidateRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_Checkpoint_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Checkpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Checkpoint"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Checkpoint(ctx, req.(*CheckpointRequest)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_TruncateInvalidTx_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TruncateInvalidTxRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).TruncateInvalidTx(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/TruncateInvalidTx"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).TruncateInvalidTx(ctx, req.(*TruncateInvalidTxRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chronon_TruncateInvalidTxBefore_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TruncateInvalidTxBeforeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).TruncateInvalidTxBefore(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/TruncateInvalidTxBefore"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).TruncateInvalidTxBefore(ctx, req.(*TruncateInvalidTxBeforeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chronon_GetInvalidSize_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetInvalidSize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/GetInvalidSize"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).GetInvalidSize(ctx, req.(*Empty)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_PruneNow_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).PruneNow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/PruneNow"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).PruneNow(ctx, req.(*Empty)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_ResetState_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ResetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/ResetState"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).ResetState(ctx, req.(*Empty)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_Status_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/Status"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(Server).Status(ctx, req.(*Empty)) }
	return interceptor(ctx, in, info, handler)
}

func _Chronon_GetSnapshotInputStream_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetSnapshotInputStream(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/chronon.Chronon/GetSnapshotInputStream"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).GetSnapshotInputStream(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}
