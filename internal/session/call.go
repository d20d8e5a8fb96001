package session

import (
	"sync"

	"google.golang.org/protobuf/proto"
)

// Call is a pending unary invocation. Its result becomes available once Done
// is closed.
type Call struct {
	Method Method

	done   chan struct{}
	once   sync.Once
	resp   proto.Message
	err    error
	cancel func()
}

func newCall(method Method) *Call {
	return &Call{
		Method: method,
		done:   make(chan struct{}),
		cancel: func() {},
	}
}

// Done is closed when the call has completed.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes and returns its result.
func (c *Call) Wait() (proto.Message, error) {
	<-c.done
	return c.resp, c.err
}

// Err returns the call error, or nil while the call is still pending.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Cancel asks the transport to abandon the call. The call then completes
// with a CANCELLED error unless it already finished. Other calls on the same
// session are not affected.
func (c *Call) Cancel() {
	c.cancel()
}

func (c *Call) finish(resp proto.Message, err error) {
	c.once.Do(func() {
		if err != nil {
			resp = nil
		}
		c.resp = resp
		c.err = err
		close(c.done)
	})
}
