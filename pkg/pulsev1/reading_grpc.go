package pulsev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName              = "pulsebridge.v1.ReadingService"
	PutReadingFullMethodName = "/" + ServiceName + "/PutReading"
)

// AgentIDHeader is the metadata key carrying the sending agent's id.
const AgentIDHeader = "x-agent-id"

// ReadingServiceClient is the client API for ReadingService.
type ReadingServiceClient interface {
	PutReading(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type readingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReadingServiceClient wraps cc in a ReadingServiceClient.
func NewReadingServiceClient(cc grpc.ClientConnInterface) ReadingServiceClient {
	return &readingServiceClient{cc: cc}
}

func (c *readingServiceClient) PutReading(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PutReadingFullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadingServiceServer is the server API for ReadingService.
type ReadingServiceServer interface {
	PutReading(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// UnimplementedReadingServiceServer can be embedded to satisfy
// ReadingServiceServer with methods that return codes.Unimplemented.
type UnimplementedReadingServiceServer struct{}

func (UnimplementedReadingServiceServer) PutReading(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method PutReading not implemented")
}

// RegisterReadingServiceServer registers srv on s.
func RegisterReadingServiceServer(s grpc.ServiceRegistrar, srv ReadingServiceServer) {
	s.RegisterService(&ReadingServiceDesc, srv)
}

func putReadingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadingServiceServer).PutReading(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PutReadingFullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReadingServiceServer).PutReading(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ReadingServiceDesc is the grpc.ServiceDesc for ReadingService.
var ReadingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReadingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PutReading",
			Handler:    putReadingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulsebridge/v1/reading.proto",
}
