package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"
	"homeservices/internal/service"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	AvailabilityServiceName = "homeservices.v1.AvailabilityService"

	availabilityProtoFile   = "homeservices/v1/availability.proto"
	methodGetAvailability   = "/" + AvailabilityServiceName + "/GetAvailability"
	methodCheckAvailability = "/" + AvailabilityServiceName + "/CheckAvailability"
)

// homeservices.v1 schema. It is registered in the global registry so server
// reflection can describe it to grpcurl and friends.
//
//	message GetAvailabilityRequest   { string service_id = 1; string date = 2; }
//	message Slot                     { string time = 1; bool available = 2; }
//	message GetAvailabilityResponse  { string date = 1; repeated Slot slots = 2; }
//	message CheckAvailabilityRequest { string service_id = 1; string date = 2; string time = 3; }
//	message CheckAvailabilityResponse { bool available = 1; }
var (
	availabilityFile = mustRegisterAvailabilityFile()

	getAvailabilityRequest    = availabilityFile.Messages().ByName("GetAvailabilityRequest")
	getAvailabilityResponse   = availabilityFile.Messages().ByName("GetAvailabilityResponse")
	slotMessage               = availabilityFile.Messages().ByName("Slot")
	checkAvailabilityRequest  = availabilityFile.Messages().ByName("CheckAvailabilityRequest")
	checkAvailabilityResponse = availabilityFile.Messages().ByName("CheckAvailabilityResponse")
)

func protoField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func mustRegisterAvailabilityFile() protoreflect.FileDescriptor {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	boolean := descriptorpb.FieldDescriptorProto_TYPE_BOOL

	slots := protoField("slots", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	slots.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	slots.TypeName = proto.String(".homeservices.v1.Slot")

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(availabilityProtoFile),
		Package: proto.String("homeservices.v1"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("GetAvailabilityRequest"), Field: []*descriptorpb.FieldDescriptorProto{
				protoField("service_id", 1, str), protoField("date", 2, str),
			}},
			{Name: proto.String("Slot"), Field: []*descriptorpb.FieldDescriptorProto{
				protoField("time", 1, str), protoField("available", 2, boolean),
			}},
			{Name: proto.String("GetAvailabilityResponse"), Field: []*descriptorpb.FieldDescriptorProto{
				protoField("date", 1, str), slots,
			}},
			{Name: proto.String("CheckAvailabilityRequest"), Field: []*descriptorpb.FieldDescriptorProto{
				protoField("service_id", 1, str), protoField("date", 2, str), protoField("time", 3, str),
			}},
			{Name: proto.String("CheckAvailabilityResponse"), Field: []*descriptorpb.FieldDescriptorProto{
				protoField("available", 1, boolean),
			}},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("AvailabilityService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("GetAvailability"),
					InputType:  proto.String(".homeservices.v1.GetAvailabilityRequest"),
					OutputType: proto.String(".homeservices.v1.GetAvailabilityResponse"),
				},
				{
					Name:       proto.String("CheckAvailability"),
					InputType:  proto.String(".homeservices.v1.CheckAvailabilityRequest"),
					OutputType: proto.String(".homeservices.v1.CheckAvailabilityResponse"),
				},
			},
		}},
	}

	fd, err := protodesc.NewFile(file, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("build %s: %v", availabilityProtoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s: %v", availabilityProtoFile, err))
	}
	return fd
}

type availabilityServer interface {
	GetAvailability(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	CheckAvailability(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: AvailabilityServiceName,
	HandlerType: (*availabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unaryHandler(getAvailabilityRequest, methodGetAvailability, availabilityServer.GetAvailability)},
		{MethodName: "CheckAvailability", Handler: unaryHandler(checkAvailabilityRequest, methodCheckAvailability, availabilityServer.CheckAvailability)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: availabilityProtoFile,
}

// unaryHandler decodes into a dynamic message of the request type and runs the
// call through the server interceptor chain.
func unaryHandler(in protoreflect.MessageDescriptor, fullMethod string, call func(availabilityServer, context.Context, *dynamicpb.Message) (*dynamicpb.Message, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := dynamicpb.NewMessage(in)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(availabilityServer), ctx, req.(*dynamicpb.Message))
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// availabilityService answers slot queries for booking clients over gRPC.
type availabilityService struct {
	bookings *service.BookingService
}

func (s *availabilityService) GetAvailability(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	serviceID := stringField(req, "service_id")
	date := stringField(req, "date")
	if serviceID == "" {
		return nil, grpcError(domain.FieldError("service_id", "is required"))
	}

	slots, err := s.bookings.GetAvailability(ctx, serviceID, date)
	if err != nil {
		return nil, grpcError(err)
	}

	resp := dynamicpb.NewMessage(getAvailabilityResponse)
	resp.Set(getAvailabilityResponse.Fields().ByName("date"), protoreflect.ValueOfString(date))
	list := resp.Mutable(getAvailabilityResponse.Fields().ByName("slots")).List()
	for _, slot := range slots {
		m := dynamicpb.NewMessage(slotMessage)
		m.Set(slotMessage.Fields().ByName("time"), protoreflect.ValueOfString(slot.Time))
		m.Set(slotMessage.Fields().ByName("available"), protoreflect.ValueOfBool(slot.Available))
		list.Append(protoreflect.ValueOfMessage(m))
	}
	return resp, nil
}

func (s *availabilityService) CheckAvailability(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	serviceID := stringField(req, "service_id")
	date := stringField(req, "date")
	slot := stringField(req, "time")

	verr := domain.NewValidationError()
	if serviceID == "" {
		verr.Add("service_id", "is required")
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		verr.Add("date", "must be in YYYY-MM-DD format")
	}
	if _, err := time.Parse("15:04", slot); err != nil {
		verr.Add("time", "must be in HH:MM format")
	}
	if verr.HasErrors() {
		return nil, grpcError(verr)
	}

	available := true
	if err := s.bookings.CheckAvailability(ctx, serviceID, date, slot); err != nil {
		if !errors.Is(err, domain.ErrSlotUnavailable) {
			return nil, grpcError(err)
		}
		available = false
	}

	resp := dynamicpb.NewMessage(checkAvailabilityResponse)
	resp.Set(checkAvailabilityResponse.Fields().ByName("available"), protoreflect.ValueOfBool(available))
	return resp, nil
}

func stringField(m *dynamicpb.Message, name protoreflect.Name) string {
	return strings.TrimSpace(m.Get(m.Descriptor().Fields().ByName(name)).String())
}

// grpcError maps service errors onto status codes the same way writeServiceError
// maps them onto HTTP statuses. Field violations travel as a BadRequest detail.
func grpcError(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		st := status.New(codes.InvalidArgument, domain.ErrValidationFailed.Error())
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		br := &errdetails.BadRequest{}
		for _, f := range fields {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f, Description: verr.Fields[f]})
		}
		if detailed, derr := st.WithDetails(br); derr == nil {
			st = detailed
		}
		return st.Err()
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, domain.ErrStoreUnavailable.Error())
	case errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentModification):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
