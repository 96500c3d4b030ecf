package orbitrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "orbits.v1.OrbitService"

	DecodeMethod       = "/" + ServiceName + "/Decode"
	ProjectMethod      = "/" + ServiceName + "/Project"
	ListElementsMethod = "/" + ServiceName + "/ListElements"
)

// OrbitServiceServer is the server API of orbits.v1.OrbitService.
type OrbitServiceServer interface {
	Decode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Project(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListElements(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterOrbitServiceServer attaches srv to s.
func RegisterOrbitServiceServer(s grpc.ServiceRegistrar, srv OrbitServiceServer) {
	s.RegisterService(&OrbitServiceDesc, srv)
}

// OrbitServiceDesc describes orbits.v1.OrbitService for grpc.Server.
var OrbitServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrbitServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: unaryHandler(DecodeMethod, OrbitServiceServer.Decode)},
		{MethodName: "Project", Handler: unaryHandler(ProjectMethod, OrbitServiceServer.Project)},
		{MethodName: "ListElements", Handler: unaryHandler(ListElementsMethod, OrbitServiceServer.ListElements)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orbits/v1/orbit_service.proto",
}

type unaryMethod func(OrbitServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrbitServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(OrbitServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is a typed client for orbits.v1.OrbitService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Decode(ctx context.Context, req *DecodeRequest, opts ...grpc.CallOption) (*DecodeResponse, error) {
	return invoke[DecodeResponse](ctx, c.cc, DecodeMethod, req, opts...)
}

func (c *Client) Project(ctx context.Context, req *ProjectRequest, opts ...grpc.CallOption) (*ProjectResponse, error) {
	return invoke[ProjectResponse](ctx, c.cc, ProjectMethod, req, opts...)
}

func (c *Client) ListElements(ctx context.Context, req *ListElementsRequest, opts ...grpc.CallOption) (*ListElementsResponse, error) {
	return invoke[ListElementsResponse](ctx, c.cc, ListElementsMethod, req, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := FromStruct(out, resp); err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}
