package grpc

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/service/bookings"
	"patientbooking/backend/internal/store"
)

type fakeBookingsService struct {
	addFn     func(ctx context.Context, req bookings.AddBookingRequest) error
	cancelFn  func(ctx context.Context, bookingID uuid.UUID) error
	getNextFn func(ctx context.Context, patientID int64) (*domain.BookingSummary, error)
}

func (f *fakeBookingsService) AddBooking(ctx context.Context, req bookings.AddBookingRequest) error {
	if f.addFn == nil {
		panic("AddBooking not configured")
	}
	return f.addFn(ctx, req)
}

func (f *fakeBookingsService) CancelBooking(ctx context.Context, bookingID uuid.UUID) error {
	if f.cancelFn == nil {
		panic("CancelBooking not configured")
	}
	return f.cancelFn(ctx, bookingID)
}

func (f *fakeBookingsService) GetPatientNextBooking(ctx context.Context, patientID int64) (*domain.BookingSummary, error) {
	if f.getNextFn == nil {
		panic("GetPatientNextBooking not configured")
	}
	return f.getNextFn(ctx, patientID)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func validAddRequest(t *testing.T) *structpb.Struct {
	return mustStruct(t, map[string]any{
		"id":         "00000000-0000-0000-0000-000000000601",
		"start_time": "2026-09-01T09:00:00Z",
		"end_time":   "2026-09-01T09:30:00+00:00",
		"patient_id": 12,
		"doctor_id":  "34",
	})
}

func TestAddBooking_PassesParsedRequest(t *testing.T) {
	var got bookings.AddBookingRequest
	srv := NewBookingsServer(&fakeBookingsService{
		addFn: func(ctx context.Context, req bookings.AddBookingRequest) error {
			got = req
			return nil
		},
	}, zap.NewNop())

	if _, err := srv.AddBooking(context.Background(), validAddRequest(t)); err != nil {
		t.Fatalf("AddBooking error: %v", err)
	}

	if got.ID != uuid.MustParse("00000000-0000-0000-0000-000000000601") {
		t.Fatalf("ID = %s", got.ID)
	}
	if !got.StartTime.Equal(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)) || !got.EndTime.Equal(time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("times = %s - %s", got.StartTime, got.EndTime)
	}
	if got.PatientID != 12 || got.DoctorID != 34 {
		t.Fatalf("ids = (%d, %d), want (12, 34)", got.PatientID, got.DoctorID)
	}
}

func TestAddBooking_RejectsMalformedInput(t *testing.T) {
	srv := NewBookingsServer(&fakeBookingsService{}, zap.NewNop())

	tests := []struct {
		name string
		req  *structpb.Struct
	}{
		{name: "nil", req: nil},
		{name: "missing id", req: mustStruct(t, map[string]any{"start_time": "2026-09-01T09:00:00Z", "end_time": "2026-09-01T09:30:00Z", "patient_id": 1, "doctor_id": 1})},
		{name: "bad time", req: mustStruct(t, map[string]any{"id": uuid.NewString(), "start_time": "tomorrow", "end_time": "2026-09-01T09:30:00Z", "patient_id": 1, "doctor_id": 1})},
		{name: "fractional doctor", req: mustStruct(t, map[string]any{"id": uuid.NewString(), "start_time": "2026-09-01T09:00:00Z", "end_time": "2026-09-01T09:30:00Z", "patient_id": 1, "doctor_id": 1.5})},
		{name: "doctor beyond int64", req: mustStruct(t, map[string]any{"id": uuid.NewString(), "start_time": "2026-09-01T09:00:00Z", "end_time": "2026-09-01T09:30:00Z", "patient_id": 1, "doctor_id": float64(1 << 63)})},
		{name: "doctor string beyond int64", req: mustStruct(t, map[string]any{"id": uuid.NewString(), "start_time": "2026-09-01T09:00:00Z", "end_time": "2026-09-01T09:30:00Z", "patient_id": 1, "doctor_id": "9223372036854775808"})},
		{name: "missing patient", req: mustStruct(t, map[string]any{"id": uuid.NewString(), "start_time": "2026-09-01T09:00:00Z", "end_time": "2026-09-01T09:30:00Z", "doctor_id": 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.AddBooking(context.Background(), tt.req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
			}
		})
	}
}

func TestAddBooking_MapsServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
		wantMsg  string
	}{
		{name: "validation", err: &bookings.ValidationError{}, wantCode: codes.InvalidArgument},
		{name: "duplicate id", err: store.ErrConflict, wantCode: codes.AlreadyExists},
		{name: "fault", err: errors.New("db exploded"), wantCode: codes.Internal, wantMsg: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewBookingsServer(&fakeBookingsService{
				addFn: func(ctx context.Context, req bookings.AddBookingRequest) error { return tt.err },
			}, zap.NewNop())

			_, err := srv.AddBooking(context.Background(), validAddRequest(t))
			if status.Code(err) != tt.wantCode {
				t.Fatalf("code = %s, want %s", status.Code(err), tt.wantCode)
			}
			if tt.wantMsg != "" && status.Convert(err).Message() != tt.wantMsg {
				t.Fatalf("message = %q, want %q", status.Convert(err).Message(), tt.wantMsg)
			}
		})
	}
}

func TestInt64Field_Bounds(t *testing.T) {
	fields := map[string]*structpb.Value{
		"min":   structpb.NewNumberValue(math.MinInt64),
		"below": structpb.NewNumberValue(-(1 << 62)),
		"big":   structpb.NewStringValue("9223372036854775807"),
	}

	if got, err := int64Field(fields, "min"); err != nil || got != math.MinInt64 {
		t.Fatalf("min = (%d, %v)", got, err)
	}
	if got, err := int64Field(fields, "below"); err != nil || got != -(1<<62) {
		t.Fatalf("below = (%d, %v)", got, err)
	}
	if got, err := int64Field(fields, "big"); err != nil || got != math.MaxInt64 {
		t.Fatalf("big = (%d, %v)", got, err)
	}
}

func TestCancelBooking(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000602")
	var got uuid.UUID
	srv := NewBookingsServer(&fakeBookingsService{
		cancelFn: func(ctx context.Context, bookingID uuid.UUID) error {
			got = bookingID
			return nil
		},
	}, zap.NewNop())

	if _, err := srv.CancelBooking(context.Background(), wrapperspb.String(id.String())); err != nil {
		t.Fatalf("CancelBooking error: %v", err)
	}
	if got != id {
		t.Fatalf("cancelled %s, want %s", got, id)
	}

	_, err := srv.CancelBooking(context.Background(), wrapperspb.String("not-a-uuid"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestGetPatientNextBooking(t *testing.T) {
	summary := &domain.BookingSummary{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000603"),
		StartTime: time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 2, 9, 30, 0, 0, time.UTC),
		DoctorID:  5,
		Status:    domain.BookingStatusActive,
	}

	srv := NewBookingsServer(&fakeBookingsService{
		getNextFn: func(ctx context.Context, patientID int64) (*domain.BookingSummary, error) {
			if patientID == 1 {
				return summary, nil
			}
			return nil, nil
		},
	}, zap.NewNop())

	v, err := srv.GetPatientNextBooking(context.Background(), wrapperspb.Int64(1))
	if err != nil {
		t.Fatalf("GetPatientNextBooking error: %v", err)
	}
	fields := v.GetStructValue().GetFields()
	if fields["id"].GetStringValue() != summary.ID.String() ||
		fields["start_time"].GetStringValue() != "2026-09-02T09:00:00Z" ||
		fields["doctor_id"].GetNumberValue() != 5 ||
		fields["status"].GetStringValue() != "active" {
		t.Fatalf("fields = %v", fields)
	}
	if _, ok := fields["patient_id"]; ok {
		t.Fatalf("summary leaks patient_id")
	}

	v, err = srv.GetPatientNextBooking(context.Background(), wrapperspb.Int64(2))
	if err != nil {
		t.Fatalf("GetPatientNextBooking error: %v", err)
	}
	if _, ok := v.GetKind().(*structpb.Value_NullValue); !ok {
		t.Fatalf("absent booking = %v, want null", v)
	}
}

func TestBookingService_OverTheWire(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterBookingServiceServer(gs, NewBookingsServer(&fakeBookingsService{
		addFn: func(ctx context.Context, req bookings.AddBookingRequest) error { return nil },
		getNextFn: func(ctx context.Context, patientID int64) (*domain.BookingSummary, error) {
			return nil, errors.New("unexpected")
		},
	}, zap.NewNop()))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client := NewBookingServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.AddBooking(ctx, validAddRequest(t)); err != nil {
		t.Fatalf("AddBooking error: %v", err)
	}
	_, err = client.GetPatientNextBooking(ctx, wrapperspb.Int64(1))
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Internal)
	}
}
