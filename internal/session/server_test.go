package session

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"

	apperrors "github.com/flogram-lab/wayout/internal/platform/errors"
)

const testServiceName = "wayout.test.TestService"

var (
	emptyMethod = UnaryMethod("/"+testServiceName+"/Empty", newEmpty)
	blockMethod = UnaryMethod("/"+testServiceName+"/Block", newEmpty)
	failMethod  = UnaryMethod("/"+testServiceName+"/Fail", newEmpty)
)

func newEmpty() proto.Message { return &emptypb.Empty{} }

// testServer records Block calls so tests can wait for a call to be pending
// on the server side.
type testServer struct {
	blocked chan struct{}
}

type testService interface {
	empty(context.Context) error
	block(context.Context) error
	fail(context.Context) error
}

func (s *testServer) empty(context.Context) error { return nil }

func (s *testServer) block(ctx context.Context) error {
	s.blocked <- struct{}{}
	<-ctx.Done()
	return status.FromContextError(ctx.Err()).Err()
}

func (s *testServer) fail(context.Context) error {
	return apperrors.WithMetadata(apperrors.CodeRPC, "invalid chat filter", map[string]string{"field": "filter"}).ToGRPCStatus()
}

func unaryHandler(method string, call func(testService, context.Context) error) gogrpc.MethodDesc {
	return gogrpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, _ any) (any, error) {
				if err := call(srv.(testService), ctx); err != nil {
					return nil, err
				}
				return &emptypb.Empty{}, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: "/" + testServiceName + "/" + method}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var testServiceDesc = gogrpc.ServiceDesc{
	ServiceName: testServiceName,
	HandlerType: (*testService)(nil),
	Methods: []gogrpc.MethodDesc{
		unaryHandler("Empty", testService.empty),
		unaryHandler("Block", testService.block),
		unaryHandler("Fail", testService.fail),
	},
	Streams: []gogrpc.StreamDesc{},
}

type runningServer struct {
	endpoint Endpoint
	server   *testServer
	health   *health.Server
	stop     func()
}

func startTestServer(t *testing.T, opts ...gogrpc.ServerOption) *runningServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &testServer{blocked: make(chan struct{}, 16)}
	grpcServer := gogrpc.NewServer(opts...)
	grpcServer.RegisterService(&testServiceDesc, srv)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		grpcServer.Stop()
		_ = listener.Close()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}
	t.Cleanup(stop)

	return &runningServer{
		endpoint: loopbackEndpoint(t, listener.Addr().String()),
		server:   srv,
		health:   healthServer,
		stop:     stop,
	}
}

func (r *runningServer) waitBlocked(t *testing.T) {
	t.Helper()

	select {
	case <-r.server.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Block to reach the server")
	}
}

func loopbackEndpoint(t *testing.T, addr string) Endpoint {
	t.Helper()

	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port %q: %v", portText, err)
	}
	return Endpoint{Host: host, Port: port, Security: SecurityPlaintext}
}

// closedEndpoint returns a loopback endpoint nothing listens on.
func closedEndpoint(t *testing.T) Endpoint {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	endpoint := loopbackEndpoint(t, listener.Addr().String())
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return endpoint
}

// silentEndpoint accepts TCP connections and never completes the HTTP/2
// handshake.
func silentEndpoint(t *testing.T) Endpoint {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	accepted := make(chan net.Conn, 16)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		for {
			select {
			case conn := <-accepted:
				_ = conn.Close()
			default:
				return
			}
		}
	})
	return loopbackEndpoint(t, listener.Addr().String())
}

func newTestExecutor(t *testing.T, concurrency int) *Executor {
	t.Helper()

	exec, err := NewExecutor(concurrency, WithExecutorLogf(nil))
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	t.Cleanup(func() { exec.Shutdown(context.Background()) })
	return exec
}

func openTestSession(t *testing.T, endpoint Endpoint, exec *Executor, opts ...Option) *Session {
	t.Helper()

	opts = append([]Option{WithLogf(nil)}, opts...)
	s, err := Open(context.Background(), endpoint, exec, opts...)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func requireCode(t *testing.T, err error, want apperrors.Code) *apperrors.Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperrors.GetCode(err); got != want {
		t.Fatalf("expected %s error, got %s: %v", want, got, err)
	}
	var appErr *apperrors.Error
	_ = errors.As(err, &appErr)
	return appErr
}
