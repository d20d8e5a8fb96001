package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const testHealthService = "flotg.FlotgService"

type healthFixture struct {
	addr   string
	health *health.Server
	stop   func()
}

func (f *healthFixture) set(service string, next grpc_health_v1.HealthCheckResponse_ServingStatus) {
	f.health.SetServingStatus(service, next)
}

func TestWaitForHealth(t *testing.T) {
	tests := []struct {
		name    string
		service string
		initial grpc_health_v1.HealthCheckResponse_ServingStatus
		later   grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{name: "server serving", service: "", initial: grpc_health_v1.HealthCheckResponse_SERVING},
		{name: "named service serving", service: testHealthService, initial: grpc_health_v1.HealthCheckResponse_SERVING},
		{
			name:    "named service becomes serving",
			service: testHealthService,
			initial: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
			later:   grpc_health_v1.HealthCheckResponse_SERVING,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
			fixture.set(testHealthService, tt.initial)
			conn := dialHealthServer(t, fixture.addr)

			if tt.later != grpc_health_v1.HealthCheckResponse_UNKNOWN {
				time.AfterFunc(200*time.Millisecond, func() { fixture.set(tt.service, tt.later) })
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := WaitForHealth(ctx, conn, tt.service, nil); err != nil {
				t.Fatalf("wait for health: %v", err)
			}
		})
	}
}

func TestWaitForHealthNotServingJoinsSentinel(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	conn := dialHealthServer(t, fixture.addr)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := WaitForHealth(ctx, conn, "", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, ErrNotServing) {
		t.Fatalf("expected ErrNotServing in %v", err)
	}
}

func TestWaitForHealthUnknownServiceKeepsProbeError(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
	conn := dialHealthServer(t, fixture.addr)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := WaitForHealth(ctx, conn, "flotg.Missing", nil)
	if errors.Is(err, ErrNotServing) {
		t.Fatalf("expected probe error rather than NOT_SERVING, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), codes.NotFound.String()) {
		t.Fatalf("expected deadline and NotFound probe error, got %v", err)
	}
}

func TestWaitForHealthLogsProgress(t *testing.T) {
	fixture := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	conn := dialHealthServer(t, fixture.addr)
	time.AfterFunc(250*time.Millisecond, func() { fixture.set("", grpc_health_v1.HealthCheckResponse_SERVING) })

	var (
		mu    sync.Mutex
		lines []string
	)
	logf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, "", logf); err != nil {
		t.Fatalf("wait for health: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) < 2 {
		t.Fatalf("expected a waiting line before SERVING, got %v", lines)
	}
	if lines[0] != "waiting for gRPC health: status NOT_SERVING" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[len(lines)-1] != "gRPC health check is SERVING" {
		t.Fatalf("expected SERVING log line, got %v", lines)
	}
}

func TestWaitForHealthRejectsNilConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func startHealthServer(t *testing.T, initial grpc_health_v1.HealthCheckResponse_ServingStatus) *healthFixture {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	grpcServer := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", initial)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	fixture := &healthFixture{
		addr:   listener.Addr().String(),
		health: healthServer,
		stop: func() {
			grpcServer.Stop()
			_ = listener.Close()
			select {
			case <-serveErr:
			case <-time.After(2 * time.Second):
			}
		},
	}
	t.Cleanup(fixture.stop)
	return fixture
}

func dialHealthServer(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()

	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial health server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
