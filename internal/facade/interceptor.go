package facade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/chronodb/chronon/internal/telemetry"
)

// LoggingInterceptor tags every RPC with a request id and logs its
// outcome and latency, the gRPC-native equivalent of the teacher's bare
// log.Printf call sites around each HTTP handler in cmd/server/main.go.
func LoggingInterceptor(log *telemetry.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = telemetry.Default
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.New().String()
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warnf("rpc=%s id=%s duration=%s error=%v", info.FullMethod, reqID, time.Since(start), err)
		} else {
			log.Debugf("rpc=%s id=%s duration=%s", info.FullMethod, reqID, time.Since(start))
		}
		return resp, err
	}
}
