package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"patientbooking/backend/internal/store"
)

type AddBookingRequest struct {
	ID        uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	PatientID int64
	DoctorID  int64
}

type AddBookingValidator struct {
	now func() time.Time
}

func NewAddBookingValidator(now func() time.Time) *AddBookingValidator {
	if now == nil {
		now = utcNow
	}
	return &AddBookingValidator{now: now}
}

// Validate applies, in order: the time frame is well formed, the booking does
// not start in the past, and the doctor's slot is free.
func (v *AddBookingValidator) Validate(ctx context.Context, bookings store.BookingReader, req AddBookingRequest) (ValidationResult, error) {
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	return runChecks(ctx,
		validTimeFrame(start, end),
		notInPast(start, v.now().UTC()),
		slotAvailable(bookings, req.DoctorID, start, end),
	)
}

func validTimeFrame(start, end time.Time) check {
	return func(context.Context) (string, error) {
		if !start.Before(end) {
			return MsgInvalidTimeFrame, nil
		}
		return "", nil
	}
}

func notInPast(start, now time.Time) check {
	return func(context.Context) (string, error) {
		if start.Before(now) {
			return MsgDateInPast, nil
		}
		return "", nil
	}
}

func slotAvailable(bookings store.BookingReader, doctorID int64, start, end time.Time) check {
	return func(ctx context.Context) (string, error) {
		existing, err := bookings.ListDoctorBookings(ctx, doctorID)
		if err != nil {
			return "", fmt.Errorf("listing bookings for doctor %d: %w", doctorID, err)
		}
		for _, b := range existing {
			// Cancelled bookings release their slot.
			if b.DoctorID != doctorID || !b.IsActive() {
				continue
			}
			if b.Occupies(start, end) {
				return MsgSlotAlreadyBooked, nil
			}
		}
		return "", nil
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
