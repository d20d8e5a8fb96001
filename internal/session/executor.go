package session

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	apperrors "github.com/flogram-lab/wayout/internal/platform/errors"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency caps the concurrency hint accepted by NewExecutor.
const DefaultMaxConcurrency = 4096

type executorConfig struct {
	maxConcurrency int
	logf           func(string, ...any)
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*executorConfig)

// WithMaxConcurrency overrides the largest concurrency hint NewExecutor accepts.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.maxConcurrency = n
	}
}

// WithExecutorLogf routes executor teardown logs. A nil logf silences them.
func WithExecutorLogf(logf func(string, ...any)) ExecutorOption {
	return func(cfg *executorConfig) {
		cfg.logf = logf
	}
}

// Executor is the execution context shared by sessions. It admits at most
// Concurrency unary calls at a time; further calls wait for a slot or for
// their context to end.
type Executor struct {
	concurrency int
	slots       *semaphore.Weighted
	logf        func(string, ...any)

	mu       sync.Mutex
	closed   bool
	sessions []*Session // in attach order
	tasks    sync.WaitGroup
}

// NewExecutor allocates an execution context sized to concurrency.
func NewExecutor(concurrency int, opts ...ExecutorOption) (*Executor, error) {
	cfg := executorConfig{
		maxConcurrency: DefaultMaxConcurrency,
		logf:           log.Printf,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logf == nil {
		cfg.logf = func(string, ...any) {}
	}

	if concurrency <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("executor concurrency must be positive, got %d", concurrency))
	}
	if concurrency > cfg.maxConcurrency {
		return nil, apperrors.WithMetadata(apperrors.CodeResourceExhausted,
			fmt.Sprintf("executor concurrency %d exceeds limit %d", concurrency, cfg.maxConcurrency),
			map[string]string{"limit": fmt.Sprint(cfg.maxConcurrency)})
	}

	return &Executor{
		concurrency: concurrency,
		slots:       semaphore.NewWeighted(int64(concurrency)),
		logf:        cfg.logf,
	}, nil
}

// Concurrency returns the number of calls that may run at once.
func (e *Executor) Concurrency() int {
	return e.concurrency
}

// Sessions returns the number of sessions currently attached.
func (e *Executor) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// IsShutdown reports whether Shutdown has been called.
func (e *Executor) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Shutdown closes any session still attached, then blocks until in-flight
// work completes or ctx ends, in which case the remaining work is abandoned.
// Sessions should be closed before Shutdown; a session found open is logged
// and closed here so that the connection is still released first. Shutdown
// is idempotent.
func (e *Executor) Shutdown(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	open := slices.Clone(e.sessions)
	e.mu.Unlock()

	if len(open) > 0 {
		e.logf("executor shutdown: %d session(s) still open, closing them first", len(open))
		for i := len(open) - 1; i >= 0; i-- {
			open[i].Close()
		}
	}

	drained := make(chan struct{})
	go func() {
		e.tasks.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		e.logf("executor shutdown: abandoning in-flight work: %v", ctx.Err())
	}
}

func (e *Executor) attach(s *Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errExecutorShutdown()
	}
	e.sessions = append(e.sessions, s)
	return nil
}

func (e *Executor) detach(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := slices.Index(e.sessions, s); i >= 0 {
		e.sessions = slices.Delete(e.sessions, i, i+1)
	}
}

// submit waits for a free slot and runs task on its own goroutine. It fails
// when the executor is shut down or ctx ends before a slot frees up; in that
// case task never runs.
func (e *Executor) submit(ctx context.Context, task func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errExecutorShutdown()
	}
	e.tasks.Add(1)
	e.mu.Unlock()

	if err := e.slots.Acquire(ctx, 1); err != nil {
		e.tasks.Done()
		return err
	}
	go func() {
		defer e.tasks.Done()
		defer e.slots.Release(1)
		task()
	}()
	return nil
}

func errExecutorShutdown() error {
	return apperrors.New(apperrors.CodeResourceExhausted, "execution context is shut down")
}
