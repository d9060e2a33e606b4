package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/store"
)

func TestStore_InsertGetAndConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := domain.Booking{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		PatientID: 1,
		DoctorID:  2,
		StartTime: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	err := s.InTransaction(ctx, store.DoctorLockKey(2), func(ctx context.Context, tx store.BookingTx) error {
		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		t.Fatalf("InsertBooking error: %v", err)
	}

	got, err := s.GetBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBooking error: %v", err)
	}
	if got.PatientID != 1 || got.CreatedAt.IsZero() {
		t.Fatalf("GetBooking = %+v, want stored booking with timestamps", got)
	}

	err = s.InTransaction(ctx, store.DoctorLockKey(2), func(ctx context.Context, tx store.BookingTx) error {
		return tx.InsertBooking(ctx, b)
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate insert error = %v, want %v", err, store.ErrConflict)
	}

	if _, err := s.GetBooking(ctx, uuid.MustParse("00000000-0000-0000-0000-000000000999")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetBooking missing error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestStore_UpdateStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.MustParse("00000000-0000-0000-0000-000000000102")

	err := s.InTransaction(ctx, store.BookingLockKey(id), func(ctx context.Context, tx store.BookingTx) error {
		return tx.UpdateBookingStatus(ctx, id, domain.BookingStatusCancelled)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("UpdateBookingStatus error = %v, want %v", err, store.ErrNotFound)
	}

	_ = s.InTransaction(ctx, store.DoctorLockKey(1), func(ctx context.Context, tx store.BookingTx) error {
		return tx.InsertBooking(ctx, domain.Booking{ID: id, DoctorID: 1, PatientID: 1})
	})
	err = s.InTransaction(ctx, store.BookingLockKey(id), func(ctx context.Context, tx store.BookingTx) error {
		return tx.UpdateBookingStatus(ctx, id, domain.BookingStatusCancelled)
	})
	if err != nil {
		t.Fatalf("UpdateBookingStatus error: %v", err)
	}
	got, _ := s.GetBooking(ctx, id)
	if got.Status != domain.BookingStatusCancelled {
		t.Fatalf("status = %s, want %s", got.Status, domain.BookingStatusCancelled)
	}

	err = s.InTransaction(ctx, store.BookingLockKey(id), func(ctx context.Context, tx store.BookingTx) error {
		return tx.UpdateBookingStatus(ctx, id, domain.BookingStatus(7))
	})
	if err == nil {
		t.Fatalf("UpdateBookingStatus accepted an unknown status")
	}
	got, _ = s.GetBooking(ctx, id)
	if got.Status != domain.BookingStatusCancelled {
		t.Fatalf("status = %s after rejected update, want %s", got.Status, domain.BookingStatusCancelled)
	}
}

func TestStore_ListsFilterAndOrderByStart(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	rows := []domain.Booking{
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000201"), PatientID: 1, DoctorID: 1, StartTime: base.Add(2 * time.Hour)},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000202"), PatientID: 2, DoctorID: 1, StartTime: base},
		{ID: uuid.MustParse("00000000-0000-0000-0000-000000000203"), PatientID: 1, DoctorID: 2, StartTime: base.Add(time.Hour)},
	}
	for _, b := range rows {
		b := b
		_ = s.InTransaction(ctx, store.DoctorLockKey(b.DoctorID), func(ctx context.Context, tx store.BookingTx) error {
			return tx.InsertBooking(ctx, b)
		})
	}

	doctor1, _ := s.ListDoctorBookings(ctx, 1)
	if len(doctor1) != 2 || doctor1[0].ID != rows[1].ID || doctor1[1].ID != rows[0].ID {
		t.Fatalf("ListDoctorBookings(1) = %+v, want rows 2 then 1", doctor1)
	}

	patient1, _ := s.ListPatientBookings(ctx, 1)
	if len(patient1) != 2 || patient1[0].ID != rows[2].ID {
		t.Fatalf("ListPatientBookings(1) = %+v, want rows 3 then 1", patient1)
	}
}

func TestStore_InTransactionSerializesSameKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTransaction(ctx, "doctor:1", func(ctx context.Context, tx store.BookingTx) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent units of work = %d, want 1", maxSeen)
	}
	if len(s.locks) != 0 {
		t.Fatalf("lock table size = %d, want 0 after release", len(s.locks))
	}
}

func TestStore_InTransactionHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.InTransaction(ctx, "doctor:1", func(ctx context.Context, tx store.BookingTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want %v", err, context.Canceled)
	}
	if called {
		t.Fatalf("fn called with cancelled context")
	}
}

func TestStore_PatientExists(t *testing.T) {
	s := New(5)
	s.AddPatient(6)

	for _, id := range []int64{5, 6} {
		if ok, _ := s.PatientExists(context.Background(), id); !ok {
			t.Fatalf("PatientExists(%d) = false, want true", id)
		}
	}
	if ok, _ := s.PatientExists(context.Background(), 7); ok {
		t.Fatalf("PatientExists(7) = true, want false")
	}
}
