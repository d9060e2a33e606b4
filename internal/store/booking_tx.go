package store

import (
	"context"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
)

type BookingTx interface {
	BookingReader

	// InsertBooking returns ErrConflict when the id is already taken.
	InsertBooking(ctx context.Context, b domain.Booking) error
	// UpdateBookingStatus returns ErrNotFound when no booking has the given id.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error
}
