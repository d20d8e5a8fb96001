package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Dialer describes how a client connection is constructed.
type Dialer interface {
	Dial(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// DialerFunc adapts a dial function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// Dial implements Dialer for DialerFunc.
func (fn DialerFunc) Dial(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return fn(ctx, addr, opts...)
}

// NewClientDialer builds connections with grpc.NewClient. Construction does
// no I/O; readiness is established separately by WaitForReady.
func NewClientDialer() Dialer {
	return DialerFunc(func(_ context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
		return gogrpc.NewClient(addr, opts...)
	})
}

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates the client connection could not be built.
	DialStageConnect DialStage = "connect"
	// DialStageReady indicates the connection never reached READY.
	DialStageReady DialStage = "ready"
	// DialStageHealth indicates the health check failed.
	DialStageHealth DialStage = "health"
)

// DialError wraps dial, readiness and health check failures with a stage
// indicator and the last observed connectivity state.
type DialError struct {
	Stage DialStage
	State connectivity.State
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	if e.Stage == DialStageReady {
		return fmt.Sprintf("gRPC %s error (state %s): %v", e.Stage, e.State, e.Err)
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns the standard dial options for outbound
// clients. A nil creds selects plaintext transport. OTel stats handling and
// request-id/logging interceptors are always installed.
func DefaultClientDialOptions(creds credentials.TransportCredentials, logf func(string, ...any)) []gogrpc.DialOption {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(creds),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		gogrpc.WithChainUnaryInterceptor(
			ClientRequestIDInterceptor(),
			ClientLoggingInterceptor(logf),
		),
	}
}

// Dial builds a client connection and blocks until it is READY, the
// connection fails, or dialTimeout elapses. The connection is closed on
// failure.
func Dial(ctx context.Context, dialer Dialer, addr string, dialTimeout time.Duration, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dialer == nil {
		dialer = NewClientDialer()
	}

	dialCtx := ctx
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}

	conn, err := dialer.Dial(dialCtx, addr, opts...)
	if err != nil {
		return nil, &DialError{Stage: DialStageConnect, Err: err}
	}
	if err := WaitForReady(dialCtx, conn); err != nil {
		state := conn.GetState()
		_ = conn.Close()
		return nil, &DialError{Stage: DialStageReady, State: state, Err: err}
	}
	return conn, nil
}

// DialWithHealth dials a gRPC endpoint and waits for the health check of
// service ("" is the whole server) to serve. dialTimeout bounds both steps.
// It closes the connection if the health check fails.
func DialWithHealth(ctx context.Context, dialer Dialer, addr string, dialTimeout time.Duration, service string, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dialCtx := ctx
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}

	conn, err := Dial(dialCtx, dialer, addr, 0, opts...)
	if err != nil {
		return nil, err
	}
	if err := WaitForHealth(dialCtx, conn, service, logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Stage: DialStageHealth, State: connectivity.Ready, Err: err}
	}
	return conn, nil
}
