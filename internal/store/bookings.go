package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
)

type BookingReader interface {
	// GetBooking returns ErrNotFound when no booking has the given id.
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	// ListDoctorBookings returns every booking of the doctor regardless of status.
	ListDoctorBookings(ctx context.Context, doctorID int64) ([]domain.Booking, error)
	// ListPatientBookings returns every booking of the patient regardless of status.
	ListPatientBookings(ctx context.Context, patientID int64) ([]domain.Booking, error)
}

type BookingRepository interface {
	BookingReader

	// InTransaction runs fn in a unit of work serialized against every other
	// unit of work holding the same lock key.
	InTransaction(ctx context.Context, lockKey string, fn func(ctx context.Context, tx BookingTx) error) error
}

type PatientDirectory interface {
	PatientExists(ctx context.Context, patientID int64) (bool, error)
}

func DoctorLockKey(doctorID int64) string {
	return fmt.Sprintf("doctor:%d", doctorID)
}

func BookingLockKey(id uuid.UUID) string {
	return "booking:" + id.String()
}
