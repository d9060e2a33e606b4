package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/store"
)

// Store keeps bookings and known patients in process memory. Units of work
// are serialized per lock key; writes inside a unit of work are applied
// immediately and are not rolled back when the unit of work fails.
type Store struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	order    []uuid.UUID
	patients map[int64]struct{}

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func New(patientIDs ...int64) *Store {
	s := &Store{
		bookings: make(map[uuid.UUID]domain.Booking),
		patients: make(map[int64]struct{}),
		locks:    make(map[string]*keyLock),
	}
	for _, id := range patientIDs {
		s.patients[id] = struct{}{}
	}
	return s
}

func (s *Store) AddPatient(patientID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patientID] = struct{}{}
}

func (s *Store) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.patients[patientID]
	return ok, nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListDoctorBookings(ctx context.Context, doctorID int64) ([]domain.Booking, error) {
	return s.list(func(b domain.Booking) bool { return b.DoctorID == doctorID }), nil
}

func (s *Store) ListPatientBookings(ctx context.Context, patientID int64) ([]domain.Booking, error) {
	return s.list(func(b domain.Booking) bool { return b.PatientID == patientID }), nil
}

func (s *Store) list(keep func(domain.Booking) bool) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for _, id := range s.order {
		if b := s.bookings[id]; keep(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (s *Store) InTransaction(ctx context.Context, lockKey string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	l := s.acquire(lockKey)
	defer s.release(lockKey, l)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, storeTx{Store: s})
}

func (s *Store) acquire(key string) *keyLock {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store) release(key string, l *keyLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.locksMu.Unlock()
}

type storeTx struct {
	*Store
}

func (t storeTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.bookings[b.ID]; exists {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	t.bookings[b.ID] = b
	t.order = append(t.order, b.ID)
	return nil
}

func (t storeTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("memory: unknown booking status %d", status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	t.bookings[id] = b
	return nil
}
