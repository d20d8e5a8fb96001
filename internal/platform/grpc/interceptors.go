package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the metadata key carrying the per-call request id.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// WithRequestID stores a request id to be sent with the next outbound call.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id carried by ctx, looking at values set by
// WithRequestID first and incoming metadata second.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(RequestIDHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}

// ClientRequestIDInterceptor attaches a request id to every outbound unary
// call, generating one when the caller did not provide it.
func ClientRequestIDInterceptor() gogrpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn, invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
		requestID := RequestID(ctx)
		if requestID == "" {
			requestID = "rpc-" + uuid.NewString()
			ctx = WithRequestID(ctx, requestID)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// ClientLoggingInterceptor logs each outbound unary call with its status and
// duration. A nil logf disables logging.
func ClientLoggingInterceptor(logf func(string, ...any)) gogrpc.UnaryClientInterceptor {
	logf = logfOrNop(logf)
	return func(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn, invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logf("gRPC call %s request_id=%s status=%s duration=%s", method, RequestID(ctx), status.Code(err), time.Since(start))
		return err
	}
}

// ServerLoggingInterceptor logs each inbound unary call with the caller's
// address and request id. A panicking handler is logged with its stack and
// answered with codes.Internal; panic details never reach the caller.
func ServerLoggingInterceptor(logf func(string, ...any)) gogrpc.UnaryServerInterceptor {
	logf = logfOrNop(logf)
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (resp any, err error) {
		peerAddr := ""
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			peerAddr = p.Addr.String()
		}
		defer func() {
			if r := recover(); r != nil {
				logf("%s from peer %s request_id=%s panicked: %v\n%s", info.FullMethod, peerAddr, RequestID(ctx), r, debug.Stack())
				resp = nil
				err = status.Errorf(codes.Internal, "%s: internal error", info.FullMethod)
			}
		}()
		start := time.Now()
		resp, err = handler(ctx, req)
		if err != nil {
			logf("%s from peer %s request_id=%s failed: %v", info.FullMethod, peerAddr, RequestID(ctx), err)
			return resp, err
		}
		logf("%s from peer %s request_id=%s completed in %s", info.FullMethod, peerAddr, RequestID(ctx), time.Since(start))
		return resp, nil
	}
}
