package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus int16

const (
	BookingStatusActive    BookingStatus = 0
	BookingStatusCancelled BookingStatus = 1
)

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusActive:
		return "active"
	case BookingStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s BookingStatus) IsValid() bool {
	return s == BookingStatusActive || s == BookingStatusCancelled
}

// Booking is a reservation of a doctor's time for a patient over the
// half-open interval [StartTime, EndTime). Bookings are never deleted;
// cancellation moves Status from Active to Cancelled.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID        uuid.UUID     `bun:"id,pk,type:uuid"`
	PatientID int64         `bun:"patient_id,notnull"`
	DoctorID  int64         `bun:"doctor_id,notnull"`
	StartTime time.Time     `bun:"start_time,notnull"`
	EndTime   time.Time     `bun:"end_time,notnull"`
	Status    BookingStatus `bun:"status,notnull"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) IsActive() bool {
	return b.Status == BookingStatusActive
}

// Occupies reports whether a request for [start, end) lands in b's slot.
// The request is rejected when its start falls inside [b.StartTime, b.EndTime)
// or its end falls inside (b.StartTime, b.EndTime]. A request that strictly
// contains b on both sides is not caught by this rule.
func (b Booking) Occupies(start, end time.Time) bool {
	startInside := !start.Before(b.StartTime) && start.Before(b.EndTime)
	endInside := end.After(b.StartTime) && !end.After(b.EndTime)
	return startInside || endInside
}

func (b Booking) Summary() BookingSummary {
	return BookingSummary{
		ID:        b.ID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		DoctorID:  b.DoctorID,
		Status:    b.Status,
	}
}

// BookingSummary is the outward view of a booking returned by the
// next-booking lookup. It omits the patient reference.
type BookingSummary struct {
	ID        uuid.UUID     `json:"id"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	DoctorID  int64         `json:"doctorId"`
	Status    BookingStatus `json:"status"`
}
