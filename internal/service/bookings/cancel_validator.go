package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/store"
)

type CancelBookingValidator struct{}

func NewCancelBookingValidator() *CancelBookingValidator {
	return &CancelBookingValidator{}
}

// Validate checks that the booking exists and is still active.
func (v *CancelBookingValidator) Validate(ctx context.Context, bookings store.BookingReader, bookingID uuid.UUID) (ValidationResult, error) {
	var found domain.Booking

	return runChecks(ctx,
		func(ctx context.Context) (string, error) {
			b, err := bookings.GetBooking(ctx, bookingID)
			if errors.Is(err, store.ErrNotFound) {
				return MsgBookingNotFound, nil
			}
			if err != nil {
				return "", fmt.Errorf("loading booking %s: %w", bookingID, err)
			}
			found = b
			return "", nil
		},
		func(context.Context) (string, error) {
			if found.Status == domain.BookingStatusCancelled {
				return MsgAlreadyCancelled, nil
			}
			return "", nil
		},
	)
}
