// Package flotg describes the FlotgService surface used by wayout: its unary
// method descriptors, a typed client over a session, and the server-side
// service descriptor.
package flotg

import (
	"context"
	"errors"

	apperrors "github.com/flogram-lab/wayout/internal/platform/errors"
	"github.com/flogram-lab/wayout/internal/session"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ServiceName is the fully qualified protobuf service name.
const ServiceName = "flotg.FlotgService"

var (
	// MethodReady reports whether the service can take requests.
	MethodReady = session.UnaryMethod("/"+ServiceName+"/Ready", newEmpty)
	// MethodGetChats lists the chats known to the service.
	MethodGetChats = session.UnaryMethod("/"+ServiceName+"/GetChats", newEmpty)
)

func newEmpty() proto.Message { return &emptypb.Empty{} }

// Client issues FlotgService calls over a session. It does not own the
// session.
type Client struct {
	session *session.Session
}

// NewClient wraps s.
func NewClient(s *session.Session) *Client {
	return &Client{session: s}
}

// Ready asks the service whether it is ready. A service that answers but is
// not ready fails with SERVICE_NOT_READY.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.session.Invoke(ctx, MethodReady, &emptypb.Empty{})
	return notReady(err)
}

// GetChats sends an empty request and returns the empty response.
func (c *Client) GetChats(ctx context.Context) (*emptypb.Empty, error) {
	resp, err := c.session.Invoke(ctx, MethodGetChats, &emptypb.Empty{})
	if err != nil {
		return nil, notReady(err)
	}
	return resp.(*emptypb.Empty), nil
}

// notReady turns an RPC failure whose ErrorInfo reason is SERVICE_NOT_READY
// back into that code.
func notReady(err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return err
	}
	if appErr.Metadata["reason"] != string(apperrors.CodeServiceNotReady) {
		return err
	}
	return &apperrors.Error{
		Code:     apperrors.CodeServiceNotReady,
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
		Cause:    appErr,
		RPCCode:  appErr.RPCCode,
	}
}
