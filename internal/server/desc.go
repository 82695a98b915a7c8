package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "intake.v1.IntakeService"

const (
	MethodCreateSession     = "CreateSession"
	MethodCloseSession      = "CloseSession"
	MethodUploadPoster      = "UploadPoster"
	MethodSetPhoto          = "SetPhoto"
	MethodClearPhoto        = "ClearPhoto"
	MethodEditFields        = "EditFields"
	MethodEditContact       = "EditContact"
	MethodSelectLocation    = "SelectLocation"
	MethodSetManualLocation = "SetManualLocation"
	MethodGetDraft          = "GetDraft"
	MethodSubmit            = "Submit"
)

// IntakeServiceServer is the server API. Every message is a google.protobuf.Struct
// so clients only need the well-known types.
type IntakeServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UploadPoster(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPhoto(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearPhoto(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetManualLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(IntakeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IntakeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IntakeServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes IntakeService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntakeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodCreateSession, IntakeServiceServer.CreateSession),
		unaryMethod(MethodCloseSession, IntakeServiceServer.CloseSession),
		unaryMethod(MethodUploadPoster, IntakeServiceServer.UploadPoster),
		unaryMethod(MethodSetPhoto, IntakeServiceServer.SetPhoto),
		unaryMethod(MethodClearPhoto, IntakeServiceServer.ClearPhoto),
		unaryMethod(MethodEditFields, IntakeServiceServer.EditFields),
		unaryMethod(MethodEditContact, IntakeServiceServer.EditContact),
		unaryMethod(MethodSelectLocation, IntakeServiceServer.SelectLocation),
		unaryMethod(MethodSetManualLocation, IntakeServiceServer.SetManualLocation),
		unaryMethod(MethodGetDraft, IntakeServiceServer.GetDraft),
		unaryMethod(MethodSubmit, IntakeServiceServer.Submit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "intake/v1/intake.proto",
}

func RegisterIntakeServiceServer(s grpc.ServiceRegistrar, srv IntakeServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls IntakeService methods by name.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with fields as the request struct.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
