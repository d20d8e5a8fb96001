package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flogram-lab/wayout/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrNotServing is joined into the health wait error when the last probe
// reached the server but it did not report SERVING.
var ErrNotServing = errors.New("gRPC health check is not SERVING")

// WaitForHealth blocks until the gRPC health check reports SERVING for service
// or the context ends. Probes back off from 200ms up to one second.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	var lastErr error
	for {
		probeCtx, cancel := context.WithTimeout(ctx, timeouts.HealthProbe)
		response, err := healthClient.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			lastErr = err
			logfOrNop(logf)("waiting for gRPC health: %v", err)
		case response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logfOrNop(logf)("gRPC health check is SERVING")
			return nil
		default:
			lastErr = fmt.Errorf("%w: status %s", ErrNotServing, response.GetStatus())
			logfOrNop(logf)("waiting for gRPC health: status %s", response.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff = min(backoff*2, time.Second)
		}
	}
}

func logfOrNop(logf func(string, ...any)) func(string, ...any) {
	if logf == nil {
		return func(string, ...any) {}
	}
	return logf
}
