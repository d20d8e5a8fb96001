package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/flogram-lab/wayout/internal/platform/errors"
	platformgrpc "github.com/flogram-lab/wayout/internal/platform/grpc"
	"github.com/flogram-lab/wayout/internal/platform/timeouts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/proto"
)

const tracerName = "github.com/flogram-lab/wayout/internal/session"

var (
	errCallCancelled = errors.New("call cancelled by caller")
	errSessionClosed = errors.New("session closed while call was pending")
)

type sessionConfig struct {
	dialTimeout   time.Duration
	callTimeout   time.Duration
	waitForHealth bool
	healthService string
	logf          func(string, ...any)
	dialer        platformgrpc.Dialer
	dialOptions   []gogrpc.DialOption
}

// Option customizes Open.
type Option func(*sessionConfig)

// WithDialTimeout bounds how long Open waits for the connection. Zero leaves
// only the caller's context as the bound.
func WithDialTimeout(d time.Duration) Option {
	return func(cfg *sessionConfig) {
		cfg.dialTimeout = d
	}
}

// WithCallTimeout sets the deadline applied to calls whose context has none.
// Zero disables the default deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(cfg *sessionConfig) {
		cfg.callTimeout = d
	}
}

// WithHealthCheck makes Open wait until the standard gRPC health service
// reports SERVING for service ("" is the whole server).
func WithHealthCheck(service string) Option {
	return func(cfg *sessionConfig) {
		cfg.waitForHealth = true
		cfg.healthService = service
	}
}

// WithLogf routes session logs. A nil logf silences them.
func WithLogf(logf func(string, ...any)) Option {
	return func(cfg *sessionConfig) {
		cfg.logf = logf
	}
}

// WithDialer replaces how the client connection is built.
func WithDialer(dialer platformgrpc.Dialer) Option {
	return func(cfg *sessionConfig) {
		cfg.dialer = dialer
	}
}

// WithKeepalive enables client keepalive pings on the session connection.
func WithKeepalive(interval, timeout time.Duration) Option {
	return WithDialOptions(gogrpc.WithKeepaliveParams(keepalive.ClientParameters{
		Time:                interval,
		Timeout:             timeout,
		PermitWithoutStream: true,
	}))
}

// WithDialOptions appends raw gRPC dial options after the defaults.
func WithDialOptions(opts ...gogrpc.DialOption) Option {
	return func(cfg *sessionConfig) {
		cfg.dialOptions = append(cfg.dialOptions, opts...)
	}
}

// Session owns one client connection to one endpoint. It is safe for
// concurrent use; it must not be used after Close.
type Session struct {
	endpoint Endpoint
	exec     *Executor
	conn     *gogrpc.ClientConn
	cfg      sessionConfig

	// ctx is cancelled by Close and parents every call context.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	calls  sync.WaitGroup
}

// Open connects to endpoint using exec as the execution context and returns
// once the connection is READY (and SERVING, with WithHealthCheck).
//
// A refused or unreachable peer and a rejected TLS handshake fail with
// CONNECTION; running out of dial time fails with TIMEOUT.
func Open(ctx context.Context, endpoint Endpoint, exec *Executor, opts ...Option) (_ *Session, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := sessionConfig{
		dialTimeout: timeouts.GRPCDial,
		callTimeout: timeouts.GRPCRequest,
		logf:        log.Printf,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logf == nil {
		cfg.logf = func(string, ...any) {}
	}

	if exec == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "open session: execution context is required")
	}
	if err := endpoint.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("open session: %v", err), err)
	}
	if endpoint.Security == "" {
		endpoint.Security = SecurityPlaintext
	}
	creds, err := endpoint.transportCredentials()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("open session to %s: load TLS credentials: %v", endpoint, err), err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "session.Open", trace.WithAttributes(
		attribute.String("server.address", endpoint.Host),
		attribute.Int("server.port", endpoint.Port),
		attribute.String("wayout.transport_security", string(endpoint.Security)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	s := &Session{
		endpoint: endpoint,
		exec:     exec,
		cfg:      cfg,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := exec.attach(s); err != nil {
		s.cancel()
		return nil, err
	}

	// Executor shutdown closes s, which must abort the dial as well.
	dialCtx, cancelDial := context.WithCancel(ctx)
	stopDial := context.AfterFunc(s.ctx, cancelDial)
	dialOpts := append(platformgrpc.DefaultClientDialOptions(creds, cfg.logf), cfg.dialOptions...)
	var conn *gogrpc.ClientConn
	if cfg.waitForHealth {
		conn, err = platformgrpc.DialWithHealth(dialCtx, cfg.dialer, endpoint.Address(), cfg.dialTimeout, cfg.healthService, cfg.logf, dialOpts...)
	} else {
		conn, err = platformgrpc.Dial(dialCtx, cfg.dialer, endpoint.Address(), cfg.dialTimeout, dialOpts...)
	}
	stopDial()
	cancelDial()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if conn != nil {
			if closeErr := conn.Close(); closeErr != nil {
				cfg.logf("close session to %s: %v", endpoint, closeErr)
			}
		}
		return nil, apperrors.New(apperrors.CodeResourceExhausted, fmt.Sprintf("open session to %s: execution context shut down while connecting", endpoint))
	}
	if err != nil {
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		exec.detach(s)
		return nil, classifyDialError(endpoint, err)
	}
	s.conn = conn
	s.mu.Unlock()

	cfg.logf("session opened to %s", endpoint)
	return s, nil
}

// Endpoint returns the endpoint the session is connected to.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// State returns the current connectivity state of the connection.
func (s *Session) State() connectivity.State {
	return s.conn.GetState()
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Invoke sends req as a unary call and waits for the single response. It is
// equivalent to Go followed by Wait. No retries are attempted.
func (s *Session) Invoke(ctx context.Context, method Method, req proto.Message) (proto.Message, error) {
	return s.Go(ctx, method, req).Wait()
}

// Go starts a unary call on the execution context and returns without waiting
// for the response. When every executor slot is busy, Go blocks until one
// frees up or ctx ends. The call observes ctx, the session default deadline, Call.Cancel, and
// Close; whichever ends it first determines its error.
func (s *Session) Go(ctx context.Context, method Method, req proto.Message) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	call := newCall(method)

	if err := method.Validate(); err != nil {
		call.finish(nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err))
		return call
	}
	if req == nil {
		call.finish(nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("%s: request message is required", method.FullName)))
		return call
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		call.finish(nil, apperrors.New(apperrors.CodeSessionClosed, fmt.Sprintf("%s: session to %s is closed", method.FullName, s.endpoint)))
		return call
	}
	s.calls.Add(1)
	s.mu.Unlock()

	callCtx, cancelCause := context.WithCancelCause(ctx)
	stopOnClose := context.AfterFunc(s.ctx, func() { cancelCause(errSessionClosed) })
	cancelTimeout := context.CancelFunc(func() {})
	if _, ok := callCtx.Deadline(); !ok && s.cfg.callTimeout > 0 {
		callCtx, cancelTimeout = context.WithTimeout(callCtx, s.cfg.callTimeout)
	}
	call.cancel = func() { cancelCause(errCallCancelled) }

	complete := func(resp proto.Message, err error) {
		call.finish(resp, classifyCallError(callCtx, method, err))
		stopOnClose()
		cancelTimeout()
		cancelCause(nil)
		s.calls.Done()
	}

	err := s.exec.submit(callCtx, func() {
		resp := method.NewResponse()
		err := s.conn.Invoke(callCtx, method.FullName, req, resp)
		complete(resp, err)
	})
	if err != nil {
		complete(nil, err)
	}
	return call
}

// Close cancels outstanding calls, waits for them to return, closes the
// connection and detaches from the execution context. Calling Close more
// than once is a no-op. Teardown errors are logged, never returned.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	s.calls.Wait()
	if conn == nil {
		s.exec.detach(s)
		s.cfg.logf("session to %s closed before connecting", s.endpoint)
		return
	}
	if err := conn.Close(); err != nil {
		s.cfg.logf("close session to %s: %v", s.endpoint, err)
	}
	s.exec.detach(s)
	s.cfg.logf("session closed to %s", s.endpoint)
}

func classifyDialError(endpoint Endpoint, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	message := fmt.Sprintf("open session to %s: %v", endpoint, err)
	switch {
	case errors.Is(err, platformgrpc.ErrNotServing):
		return apperrors.Wrap(apperrors.CodeConnection, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeTimeout, message, err)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.CodeCancelled, message, err)
	default:
		return apperrors.Wrap(apperrors.CodeConnection, message, err)
	}
}

// classifyCallError maps a call failure onto the error taxonomy. Local
// context state wins over the status code so that caller cancellation,
// session close and deadlines are reported consistently.
func classifyCallError(ctx context.Context, method Method, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		message := fmt.Sprintf("%s: %v", method.FullName, cause)
		switch {
		case errors.Is(cause, context.DeadlineExceeded):
			return apperrors.Wrap(apperrors.CodeTimeout, message, cause)
		case errors.Is(cause, errSessionClosed), errors.Is(cause, errCallCancelled), errors.Is(cause, context.Canceled):
			return apperrors.Wrap(apperrors.CodeCancelled, message, cause)
		}
	}
	return apperrors.FromRPC(method.FullName, err)
}
