package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"patientbooking/backend/internal/domain"
	"patientbooking/backend/internal/store"
)

type PatientRepo struct {
	db *bun.DB
}

func NewPatientRepo(db *bun.DB) *PatientRepo {
	return &PatientRepo{db: db}
}

func (r *PatientRepo) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Patient)(nil)).
		Where("id = ?", patientID).
		Exists(ctx)
}

func (r *PatientRepo) CreatePatient(ctx context.Context, p domain.Patient) error {
	_, err := r.db.NewInsert().Model(&p).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrConflict
		}
		return err
	}
	return nil
}
