//go:build grpc

package grpcmw

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/ringlog/ringlog"
)

func actualOptions(opts ...Option) options {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.traceKey == "" {
		cfg.traceKey = TraceHeader
	}

	if cfg.requestKey == "" {
		cfg.requestKey = RequestHeader
	}

	return cfg
}

// UnaryServerInterceptor enriches the gRPC context with trace/request
// metadata and logs the request's outcome through the global ringlog
// sink. If Init has not been called, the log calls are silent no-ops
// (ringlog.Info/Warn/Error already degrade gracefully when there is no
// installed sink), so the interceptor is safe to wire in unconditionally.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := actualOptions(opts...)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var traceID, requestID string

		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(cfg.traceKey); len(values) > 0 {
				traceID = values[0]
				ctx = context.WithValue(ctx, TraceKey{}, traceID)
			}

			if values := md.Get(cfg.requestKey); len(values) > 0 {
				requestID = values[0]
				ctx = context.WithValue(ctx, RequestKey{}, requestID)
			}
		}

		start := time.Now()

		resp, err := handler(ctx, req)

		elapsed := time.Since(start)

		if err != nil {
			ringlog.Error("grpc %s trace=%s request=%s duration=%s failed: %v",
				info.FullMethod, traceID, requestID, elapsed, err)
		} else {
			ringlog.Info("grpc %s trace=%s request=%s duration=%s ok",
				info.FullMethod, traceID, requestID, elapsed)
		}

		return resp, err
	}
}
