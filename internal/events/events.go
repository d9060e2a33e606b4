package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
)

const (
	TypeBookingAdded     = "booking.added"
	TypeBookingCancelled = "booking.cancelled"

	DefaultTopic = "booking.events"
)

// BookingEvent records a committed change to a booking.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	PatientID  int64     `json:"patient_id"`
	DoctorID   int64     `json:"doctor_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b domain.Booking, occurredAt time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		PatientID:  b.PatientID,
		DoctorID:   b.DoctorID,
		StartTime:  b.StartTime.UTC(),
		EndTime:    b.EndTime.UTC(),
		OccurredAt: occurredAt.UTC(),
	}
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt BookingEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
