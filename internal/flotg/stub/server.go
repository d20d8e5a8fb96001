// Package stub runs a local FlotgService so wayout has a peer to talk to.
package stub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/flogram-lab/wayout/internal/flotg"
	platformgrpc "github.com/flogram-lab/wayout/internal/platform/grpc"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Options configures the stub server.
type Options struct {
	// TLSAuthority is a directory holding ca-cert.pem, server-cert.pem and
	// server-key.pem. Empty serves plaintext.
	TLSAuthority string
	// Unready starts the service reporting not ready.
	Unready bool
}

// Server hosts the FlotgService stub and its gRPC lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	service    *Service
	tls        bool
}

// New creates a stub server listening on the provided port.
func New(port int, opts Options) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port), opts)
}

// NewWithAddr creates a stub server for the provided address.
func NewWithAddr(addr string, opts Options) (*Server, error) {
	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(platformgrpc.ServerLoggingInterceptor(log.Printf)),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	authority := strings.TrimSpace(opts.TLSAuthority)
	if authority != "" {
		creds, err := platformgrpc.LoadServerTLS(platformgrpc.ServerAuthorityFiles(authority))
		if err != nil {
			return nil, fmt.Errorf("load TLS credentials from %s: %w", authority, err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer(serverOpts...)
	service := NewService(!opts.Unready)
	healthServer := health.NewServer()
	flotg.RegisterServer(grpcServer, service)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		service:    service,
		tls:        authority != "",
	}
	s.SetReady(!opts.Unready)
	return s, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Service returns the FlotgService implementation being served.
func (s *Server) Service() *Service {
	return s.service
}

// SetReady updates both the Ready answer and the health status.
func (s *Server) SetReady(ready bool) {
	s.service.SetReady(ready)
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(flotg.ServiceName, status)
}

// Run creates and serves a stub server until context cancellation.
func Run(ctx context.Context, port int, opts Options) error {
	server, err := New(port, opts)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("flotg stub listening at %v, TLS = %t", s.listener.Addr(), s.tls)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return serveResult(<-serveErr)
	case err := <-serveErr:
		return serveResult(err)
	}
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

// Close releases stub server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
