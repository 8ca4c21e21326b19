package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service speaks google.protobuf.Struct on the wire, so no generated
// code is needed: requests and responses are JSON-shaped documents.
const (
	ServiceName  = "framekeeper.v1.ValidationService"
	FilterMethod = "/" + ServiceName + "/Filter"
	SampleMethod = "/" + ServiceName + "/Sample"
)

// ValidationServer is the server side of the validation service.
type ValidationServer interface {
	Filter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sample(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterValidationServer registers srv with s.
func RegisterValidationServer(s grpc.ServiceRegistrar, srv ValidationServer) {
	s.RegisterService(&ValidationServiceDesc, srv)
}

// ValidationServiceDesc describes the service for grpc.Server.
var ValidationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ValidationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Filter", Handler: unaryHandler(FilterMethod, ValidationServer.Filter)},
		{MethodName: "Sample", Handler: unaryHandler(SampleMethod, ValidationServer.Sample)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "framekeeper/v1/validation.proto",
}

func unaryHandler(method string, call func(ValidationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ValidationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ValidationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ValidationClient calls the validation service.
type ValidationClient struct {
	cc grpc.ClientConnInterface
}

// NewValidationClient wraps a client connection.
func NewValidationClient(cc grpc.ClientConnInterface) *ValidationClient {
	return &ValidationClient{cc: cc}
}

// Filter splits rows into valid rows and failure statistics.
func (c *ValidationClient) Filter(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FilterMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Sample generates valid rows.
func (c *ValidationClient) Sample(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SampleMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
