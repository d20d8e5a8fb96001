package session

import (
	"context"

	"github.com/flogram-lab/wayout/internal/platform/timeouts"
)

// WithExecutor allocates an execution context, passes it to fn and shuts it
// down when fn returns, whatever the outcome. Shutdown waits at most
// timeouts.Shutdown for in-flight work.
func WithExecutor(concurrency int, fn func(*Executor) error, opts ...ExecutorOption) error {
	exec, err := NewExecutor(concurrency, opts...)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		exec.Shutdown(ctx)
	}()
	return fn(exec)
}

// WithSession opens a session on e, passes it to fn and closes it when fn
// returns, whatever the outcome.
func (e *Executor) WithSession(ctx context.Context, endpoint Endpoint, fn func(*Session) error, opts ...Option) error {
	s, err := Open(ctx, endpoint, e, opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
