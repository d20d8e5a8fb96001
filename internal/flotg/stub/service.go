package stub

import (
	"context"
	"log"
	"sync/atomic"

	apperrors "github.com/flogram-lab/wayout/internal/platform/errors"
	platformgrpc "github.com/flogram-lab/wayout/internal/platform/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Service answers FlotgService calls with empty messages.
type Service struct {
	ready atomic.Bool
	calls atomic.Int64
}

// NewService returns a service in the given readiness state.
func NewService(ready bool) *Service {
	s := &Service{}
	s.ready.Store(ready)
	return s
}

// SetReady flips the readiness reported by Ready.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Calls returns how many calls the service has answered.
func (s *Service) Calls() int64 {
	return s.calls.Load()
}

// Ready fails with SERVICE_NOT_READY while the service is marked unready.
func (s *Service) Ready(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.calls.Add(1)
	if !s.ready.Load() {
		log.Printf("Ready rejected: request_id=%s", platformgrpc.RequestID(ctx))
		return nil, apperrors.WithMetadata(apperrors.CodeServiceNotReady, "not ready: queue", map[string]string{
			"component": "queue",
		}).ToGRPCStatus()
	}
	return &emptypb.Empty{}, nil
}

// GetChats returns an empty response.
func (s *Service) GetChats(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	s.calls.Add(1)
	return &emptypb.Empty{}, nil
}
