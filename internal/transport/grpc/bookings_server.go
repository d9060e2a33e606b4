package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/service/bookings"
	"patientbooking/backend/internal/store"
)

type BookingsServer struct {
	svc bookingsService
	log *zap.Logger
}

type bookingsService interface {
	AddBooking(ctx context.Context, req bookings.AddBookingRequest) error
	CancelBooking(ctx context.Context, bookingID uuid.UUID) error
	GetPatientNextBooking(ctx context.Context, patientID int64) (*domain.BookingSummary, error)
}

var _ BookingServiceServer = (*BookingsServer)(nil)

func NewBookingsServer(svc bookingsService, log *zap.Logger) *BookingsServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingsServer{
		svc: svc,
		log: log.With(zap.String("component", "grpc.bookings")),
	}
}

func (s *BookingsServer) AddBooking(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(zap.String("rpc", "AddBooking"))

	if req == nil {
		log.Warn("invalid request", zap.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	in, err := addBookingInput(req)
	if err != nil {
		log.Warn("invalid request", zap.Error(err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.svc.AddBooking(ctx, in); err != nil {
		return nil, s.statusError(log, err, "booking add failed", zap.String("booking_id", in.ID.String()))
	}
	return &emptypb.Empty{}, nil
}

func (s *BookingsServer) CancelBooking(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	log := s.log.With(zap.String("rpc", "CancelBooking"))

	if req == nil {
		log.Warn("invalid request", zap.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.GetValue()))
	if err != nil {
		log.Warn("invalid request", zap.String("reason", "bad_booking_id"), zap.String("booking_id", req.GetValue()))
		return nil, status.Error(codes.InvalidArgument, "booking id must be a valid UUID")
	}

	if err := s.svc.CancelBooking(ctx, id); err != nil {
		return nil, s.statusError(log, err, "booking cancel failed", zap.String("booking_id", id.String()))
	}
	return &emptypb.Empty{}, nil
}

func (s *BookingsServer) GetPatientNextBooking(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Value, error) {
	log := s.log.With(zap.String("rpc", "GetPatientNextBooking"))

	if req == nil {
		log.Warn("invalid request", zap.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	summary, err := s.svc.GetPatientNextBooking(ctx, req.GetValue())
	if err != nil {
		return nil, s.statusError(log, err, "next booking lookup failed", zap.Int64("patient_id", req.GetValue()))
	}
	if summary == nil {
		return structpb.NewNullValue(), nil
	}

	v, err := toProtoSummary(*summary)
	if err != nil {
		log.Error("next booking encode failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return v, nil
}

func (s *BookingsServer) statusError(log *zap.Logger, err error, msg string, fields ...zap.Field) error {
	var vErr *bookings.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Info("request rejected", append(fields, zap.String("reason", vErr.Error()))...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info("booking id conflict", fields...)
		return status.Error(codes.AlreadyExists, "a booking with this id already exists")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, append(fields, zap.Error(err))...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		log.Error(msg, append(fields, zap.Error(err))...)
		return status.Error(codes.Internal, "internal error")
	}
}

func addBookingInput(req *structpb.Struct) (bookings.AddBookingRequest, error) {
	fields := req.GetFields()

	rawID := strings.TrimSpace(fields["id"].GetStringValue())
	if rawID == "" {
		return bookings.AddBookingRequest{}, errors.New("id is required")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return bookings.AddBookingRequest{}, errors.New("id must be a valid UUID")
	}

	start, err := timeField(fields, "start_time")
	if err != nil {
		return bookings.AddBookingRequest{}, err
	}
	end, err := timeField(fields, "end_time")
	if err != nil {
		return bookings.AddBookingRequest{}, err
	}
	patientID, err := int64Field(fields, "patient_id")
	if err != nil {
		return bookings.AddBookingRequest{}, err
	}
	doctorID, err := int64Field(fields, "doctor_id")
	if err != nil {
		return bookings.AddBookingRequest{}, err
	}

	return bookings.AddBookingRequest{
		ID:        id,
		StartTime: start,
		EndTime:   end,
		PatientID: patientID,
		DoctorID:  doctorID,
	}, nil
}

func timeField(fields map[string]*structpb.Value, name string) (time.Time, error) {
	raw := strings.TrimSpace(fields[name].GetStringValue())
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

// int64Field accepts a JSON number or a decimal string, since numbers above
// 2^53 do not survive the double encoding of structpb.
func int64Field(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", name)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}

func toProtoSummary(s domain.BookingSummary) (*structpb.Value, error) {
	st, err := structpb.NewStruct(map[string]any{
		"id":         s.ID.String(),
		"start_time": s.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":   s.EndTime.UTC().Format(time.RFC3339Nano),
		"doctor_id":  s.DoctorID,
		"status":     s.Status.String(),
	})
	if err != nil {
		return nil, err
	}
	return structpb.NewStructValue(st), nil
}
