package grpc

import (
	"context"
	"errors"
	"fmt"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// ErrTransientFailure reports that a connection attempt failed: the peer
// refused or could not be reached, or the security handshake was rejected.
var ErrTransientFailure = errors.New("connection entered TRANSIENT_FAILURE")

// ErrConnectionShutdown reports that the connection was closed while waiting.
var ErrConnectionShutdown = errors.New("connection is shut down")

// WaitForReady kicks the connection out of IDLE and blocks until it is READY.
// It fails fast on TRANSIENT_FAILURE instead of letting the channel back off
// and retry, and returns the context error when ctx ends first.
func WaitForReady(ctx context.Context, conn *gogrpc.ClientConn) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return ErrTransientFailure
		case connectivity.Shutdown:
			return ErrConnectionShutdown
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("wait for gRPC ready: %w", ctx.Err())
		}
	}
}
