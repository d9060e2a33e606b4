package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/store"
)

const pgUniqueViolation = "23505"

type BookingRepo struct {
	bookingQueries
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{bookingQueries: bookingQueries{db: db}, db: db}
}

// bookingQueries holds the reads shared by the repository and its transactions.
type bookingQueries struct {
	db bun.IDB
}

type bookingTx struct {
	bookingQueries
	tx bun.Tx
}

func (r *BookingRepo) InTransaction(ctx context.Context, lockKey string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockKeyed(ctx, tx, lockKey); err != nil {
			return err
		}
		return fn(ctx, bookingTx{bookingQueries: bookingQueries{db: tx}, tx: tx})
	})
}

func lockKeyed(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func (q bookingQueries) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := q.db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (q bookingQueries) ListDoctorBookings(ctx context.Context, doctorID int64) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := q.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		OrderExpr("start_time ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q bookingQueries) ListPatientBookings(ctx context.Context, patientID int64) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := q.db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID).
		OrderExpr("start_time ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t bookingTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	m := domain.Booking{
		ID:        b.ID,
		PatientID: b.PatientID,
		DoctorID:  b.DoctorID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (t bookingTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("postgres: unknown booking status %d", status)
	}
	res, err := t.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
