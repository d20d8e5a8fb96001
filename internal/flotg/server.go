package flotg

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Server is the FlotgService server API.
type Server interface {
	Ready(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetChats(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterServer registers srv on registrar under ServiceName.
func RegisterServer(registrar gogrpc.ServiceRegistrar, srv Server) {
	registrar.RegisterService(&serviceDesc, srv)
}

var serviceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "Ready", Handler: unaryHandler(MethodReady.FullName, Server.Ready)},
		{MethodName: "GetChats", Handler: unaryHandler(MethodGetChats.FullName, Server.GetChats)},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "flotg.proto",
}

type emptyMethod func(Server, context.Context, *emptypb.Empty) (*emptypb.Empty, error)

func unaryHandler(fullMethod string, method emptyMethod) gogrpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(Server), ctx, in)
		}
		info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(Server), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
