package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The admin API is described directly on protobuf well-known types, so no
// generated stubs are needed. Method shapes:
//
//	GetStats(Empty) Struct
//	ListBans(Empty) ListValue
//	IsBanned(StringValue origin) BoolValue
//	Ban(Struct{participantId, origin, reason}) Empty
//	Unban(StringValue origin) BoolValue
//	Disconnect(StringValue participantId) Empty
const ServiceName = "rendezvous.admin.v1.AdminService"

type AdminServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListBans(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	IsBanned(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Ban(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Unban(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Disconnect(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unaryMethod[Req proto.Message, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(AdminServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newEmpty() *emptypb.Empty {
	return new(emptypb.Empty)
}

func newString() *wrapperspb.StringValue {
	return new(wrapperspb.StringValue)
}

func newStruct() *structpb.Struct {
	return new(structpb.Struct)
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetStats", newEmpty, AdminServer.GetStats),
		unaryMethod("ListBans", newEmpty, AdminServer.ListBans),
		unaryMethod("IsBanned", newString, AdminServer.IsBanned),
		unaryMethod("Ban", newStruct, AdminServer.Ban),
		unaryMethod("Unban", newString, AdminServer.Unban),
		unaryMethod("Disconnect", newString, AdminServer.Disconnect),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rendezvous/admin/v1/admin.proto",
}

// AdminClient calls the admin service over any client connection.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func invoke[Resp proto.Message](ctx context.Context, cc grpc.ClientConnInterface, name string, in proto.Message, out Resp, opts ...grpc.CallOption) (Resp, error) {
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		var zero Resp
		return zero, err
	}
	return out, nil
}

func (c *AdminClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "GetStats", &emptypb.Empty{}, new(structpb.Struct), opts...)
}

func (c *AdminClient) ListBans(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c.cc, "ListBans", &emptypb.Empty{}, new(structpb.ListValue), opts...)
}

func (c *AdminClient) IsBanned(ctx context.Context, origin string, opts ...grpc.CallOption) (bool, error) {
	out, err := invoke(ctx, c.cc, "IsBanned", wrapperspb.String(origin), new(wrapperspb.BoolValue), opts...)
	if err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *AdminClient) Ban(ctx context.Context, participantID, origin, reason string, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(map[string]any{
		"participantId": participantID,
		"origin":        origin,
		"reason":        reason,
	})
	if err != nil {
		return err
	}
	_, err = invoke(ctx, c.cc, "Ban", in, new(emptypb.Empty), opts...)
	return err
}

func (c *AdminClient) Unban(ctx context.Context, origin string, opts ...grpc.CallOption) (bool, error) {
	out, err := invoke(ctx, c.cc, "Unban", wrapperspb.String(origin), new(wrapperspb.BoolValue), opts...)
	if err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *AdminClient) Disconnect(ctx context.Context, participantID string, opts ...grpc.CallOption) error {
	_, err := invoke(ctx, c.cc, "Disconnect", wrapperspb.String(participantID), new(emptypb.Empty), opts...)
	return err
}
