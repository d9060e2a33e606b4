package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/events"
	"patientbooking/backend/internal/metrics"
	"patientbooking/backend/internal/store"
)

const (
	opAdd     = "add"
	opCancel  = "cancel"
	opGetNext = "get_next"

	// sideEffectTimeout bounds post-commit work, which no longer follows the
	// request context.
	sideEffectTimeout = 5 * time.Second
)

var tracer = otel.Tracer("patientbooking/backend/internal/service/bookings")

// NextBookingCache holds next-booking answers per patient. A cached nil
// summary means the patient has no active booking.
//
// Every Invalidate bumps the patient's version. Set stores an answer only
// while the version still equals the one read before the answer was computed,
// so a fill racing a write is dropped instead of overwriting the invalidation.
type NextBookingCache interface {
	Get(ctx context.Context, patientID int64) (summary *domain.BookingSummary, found bool, err error)
	Version(ctx context.Context, patientID int64) (int64, error)
	Set(ctx context.Context, patientID int64, version int64, summary *domain.BookingSummary) error
	Invalidate(ctx context.Context, patientID int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, evt events.BookingEvent) error
}

type Service struct {
	repo     store.BookingRepository
	patients store.PatientDirectory

	addValidator    *AddBookingValidator
	cancelValidator *CancelBookingValidator

	now       func() time.Time
	cache     NextBookingCache
	publisher EventPublisher
	metrics   *metrics.Collector
	log       *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithCache(c NextBookingCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo store.BookingRepository, patients store.PatientDirectory, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		patients:  patients,
		now:       utcNow,
		publisher: events.NoopPublisher{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.addValidator = NewAddBookingValidator(s.now)
	s.cancelValidator = NewCancelBookingValidator()
	s.log = s.log.With(zap.String("component", "service.bookings"))
	return s
}

// AddBooking admits a new active booking. Admission for one doctor is
// serialized so two overlapping requests cannot both pass the slot check.
func (s *Service) AddBooking(ctx context.Context, req AddBookingRequest) error {
	ctx, span := tracer.Start(ctx, "bookings.AddBooking", trace.WithAttributes(
		attribute.String("booking.id", req.ID.String()),
		attribute.Int64("booking.doctor_id", req.DoctorID),
		attribute.Int64("booking.patient_id", req.PatientID),
	))
	defer span.End()

	booking := domain.Booking{
		ID:        req.ID,
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Status:    domain.BookingStatusActive,
	}

	err := s.repo.InTransaction(ctx, store.DoctorLockKey(req.DoctorID), func(ctx context.Context, tx store.BookingTx) error {
		res, err := s.addValidator.Validate(ctx, tx, req)
		if err != nil {
			return err
		}
		if !res.Passed {
			return validationError(res.FirstError())
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		return s.fail(span, opAdd, err)
	}

	s.metrics.ObserveOperation(opAdd, metrics.OutcomeOK)
	s.log.Info("booking added",
		zap.String("booking_id", booking.ID.String()),
		zap.Int64("patient_id", booking.PatientID),
		zap.Int64("doctor_id", booking.DoctorID),
		zap.Time("start_time", booking.StartTime),
		zap.Time("end_time", booking.EndTime),
	)
	s.afterCommit(ctx, events.TypeBookingAdded, booking)
	return nil
}

// CancelBooking moves an active booking to cancelled.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "bookings.CancelBooking", trace.WithAttributes(
		attribute.String("booking.id", bookingID.String()),
	))
	defer span.End()

	var cancelled domain.Booking
	err := s.repo.InTransaction(ctx, store.BookingLockKey(bookingID), func(ctx context.Context, tx store.BookingTx) error {
		res, err := s.cancelValidator.Validate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !res.Passed {
			return validationError(res.FirstError())
		}

		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("locating booking %s: %w", bookingID, err)
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, domain.BookingStatusCancelled); err != nil {
			return fmt.Errorf("cancelling booking %s: %w", bookingID, err)
		}
		b.Status = domain.BookingStatusCancelled
		cancelled = b
		return nil
	})
	if err != nil {
		return s.fail(span, opCancel, err)
	}

	s.metrics.ObserveOperation(opCancel, metrics.OutcomeOK)
	s.log.Info("booking cancelled",
		zap.String("booking_id", cancelled.ID.String()),
		zap.Int64("patient_id", cancelled.PatientID),
		zap.Int64("doctor_id", cancelled.DoctorID),
	)
	s.afterCommit(ctx, events.TypeBookingCancelled, cancelled)
	return nil
}

// GetPatientNextBooking returns the patient's active booking with the latest
// start time, or nil when the patient has no active booking.
func (s *Service) GetPatientNextBooking(ctx context.Context, patientID int64) (*domain.BookingSummary, error) {
	ctx, span := tracer.Start(ctx, "bookings.GetPatientNextBooking", trace.WithAttributes(
		attribute.Int64("booking.patient_id", patientID),
	))
	defer span.End()

	exists, err := s.patients.PatientExists(ctx, patientID)
	if err != nil {
		return nil, s.fail(span, opGetNext, fmt.Errorf("checking patient %d: %w", patientID, err))
	}
	if !exists {
		return nil, s.fail(span, opGetNext, validationError(MsgWrongPatientID))
	}

	if summary, ok := s.cachedNext(ctx, patientID); ok {
		s.metrics.ObserveOperation(opGetNext, metrics.OutcomeOK)
		return summary, nil
	}
	version, fill := s.cacheVersion(ctx, patientID)

	all, err := s.repo.ListPatientBookings(ctx, patientID)
	if err != nil {
		return nil, s.fail(span, opGetNext, fmt.Errorf("listing bookings for patient %d: %w", patientID, err))
	}

	var out *domain.BookingSummary
	if next, ok := NextActiveBooking(all); ok {
		summary := next.Summary()
		out = &summary
	}

	if fill {
		if err := s.cache.Set(ctx, patientID, version, out); err != nil {
			s.log.Warn("next booking cache fill failed", zap.Error(err), zap.Int64("patient_id", patientID))
		}
	}

	s.metrics.ObserveOperation(opGetNext, metrics.OutcomeOK)
	return out, nil
}

// NextActiveBooking picks the active booking with the maximum start time.
// The first booking wins when start times are equal.
func NextActiveBooking(all []domain.Booking) (domain.Booking, bool) {
	var (
		next  domain.Booking
		found bool
	)
	for _, b := range all {
		if !b.IsActive() {
			continue
		}
		if !found || b.StartTime.After(next.StartTime) {
			next = b
			found = true
		}
	}
	return next, found
}

func (s *Service) cachedNext(ctx context.Context, patientID int64) (*domain.BookingSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	summary, found, err := s.cache.Get(ctx, patientID)
	if err != nil {
		s.log.Warn("next booking cache read failed", zap.Error(err), zap.Int64("patient_id", patientID))
		return nil, false
	}
	s.metrics.ObserveCacheLookup(found)
	return summary, found
}

// cacheVersion must be read before the store is listed.
func (s *Service) cacheVersion(ctx context.Context, patientID int64) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx, patientID)
	if err != nil {
		s.log.Warn("next booking cache version read failed", zap.Error(err), zap.Int64("patient_id", patientID))
		return 0, false
	}
	return version, true
}

// afterCommit runs side effects of a committed write. Their failures are
// logged and never undo the write. The caller's cancellation is dropped so a
// request abandoned right after commit still invalidates the cache.
func (s *Service) afterCommit(ctx context.Context, eventType string, b domain.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, b.PatientID); err != nil {
			s.log.Warn("next booking cache invalidation failed", zap.Error(err), zap.Int64("patient_id", b.PatientID))
		}
	}

	err := s.publisher.Publish(ctx, events.NewBookingEvent(eventType, b, s.now()))
	s.metrics.ObserveEvent(eventType, err)
	if err != nil {
		s.log.Error("booking event publish failed",
			zap.Error(err),
			zap.String("type", eventType),
			zap.String("booking_id", b.ID.String()),
		)
	}
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		s.metrics.ObserveOperation(op, metrics.OutcomeRejected)
		s.metrics.ObserveValidationFailure(op, vErr.Error())
		span.SetAttributes(attribute.String("booking.rejected", vErr.Error()))
		return err
	}
	s.metrics.ObserveOperation(op, metrics.OutcomeError)
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}
