package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "powerobserver.CacheControl"

const (
	methodStats     = "/" + ServiceName + "/Stats"
	methodListNodes = "/" + ServiceName + "/ListNodes"
	methodClear     = "/" + ServiceName + "/Clear"
)

// CacheControlServer is the server API for the CacheControl service.
// Messages are protobuf well-known types.
type CacheControlServer interface {
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListNodes(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Clear(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

func RegisterCacheControlServer(s grpc.ServiceRegistrar, srv CacheControlServer) {
	s.RegisterService(&CacheControl_ServiceDesc, srv)
}

var CacheControl_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CacheControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: statsHandler},
		{MethodName: "ListNodes", Handler: listNodesHandler},
		{MethodName: "Clear", Handler: clearHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "power_observer/cache_control.proto",
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CacheControlServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStats}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CacheControlServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listNodesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CacheControlServer).ListNodes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListNodes}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CacheControlServer).ListNodes(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func clearHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CacheControlServer).Clear(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodClear}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CacheControlServer).Clear(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type CacheControlClient struct {
	cc grpc.ClientConnInterface
}

func NewCacheControlClient(cc grpc.ClientConnInterface) *CacheControlClient {
	return &CacheControlClient{cc: cc}
}

func (c *CacheControlClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStats, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CacheControlClient) ListNodes(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListNodes, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops the cached days of node, or every entry when node is empty.
func (c *CacheControlClient) Clear(ctx context.Context, node string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodClear, wrapperspb.String(node), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
