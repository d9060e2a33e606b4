package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	BookingServiceName = "patientbooking.v1.BookingService"

	addBookingMethod            = "/" + BookingServiceName + "/AddBooking"
	cancelBookingMethod         = "/" + BookingServiceName + "/CancelBooking"
	getPatientNextBookingMethod = "/" + BookingServiceName + "/GetPatientNextBooking"
)

// BookingServiceServer is the server API of patientbooking.v1.BookingService.
// Messages are protobuf well-known types so the service needs no generated code.
type BookingServiceServer interface {
	AddBooking(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	CancelBooking(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	GetPatientNextBooking(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Value, error)
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddBooking", Handler: addBookingHandler},
		{MethodName: "CancelBooking", Handler: cancelBookingHandler},
		{MethodName: "GetPatientNextBooking", Handler: getPatientNextBookingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "patientbooking/v1/booking_service.proto",
}

func addBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).AddBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: addBookingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).AddBooking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).CancelBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: cancelBookingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).CancelBooking(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getPatientNextBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).GetPatientNextBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getPatientNextBookingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).GetPatientNextBooking(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// BookingServiceClient calls patientbooking.v1.BookingService.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) AddBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, addBookingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) CancelBooking(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, cancelBookingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetPatientNextBooking(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Value, error) {
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, getPatientNextBookingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
