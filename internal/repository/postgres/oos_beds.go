package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
)

const oosBedColumns = `id, premises_id, bed_id, start_date, end_date, reason, reference_number, notes,
	created_at, cancelled_at, cancellation_notes`

func scanOOSBed(row pgx.Row) (*domain.OutOfServiceBed, error) {
	var o domain.OutOfServiceBed
	err := row.Scan(&o.ID, &o.PremisesID, &o.BedID, &o.StartDate, &o.EndDate, &o.Reason, &o.ReferenceNumber,
		&o.Notes, &o.CreatedAt, &o.CancelledAt, &o.CancellationNotes)
	return &o, err
}

func (s *Store) CreateOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error {
	_, err := s.db.Exec(ctx, `INSERT INTO out_of_service_beds (`+oosBedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.PremisesID, o.BedID, o.StartDate, o.EndDate, o.Reason, o.ReferenceNumber,
		o.Notes, o.CreatedAt, o.CancelledAt, o.CancellationNotes)
	return one(err, "create out-of-service bed")
}

func (s *Store) GetOutOfServiceBed(ctx context.Context, id string) (*domain.OutOfServiceBed, error) {
	o, err := scanOOSBed(s.db.QueryRow(ctx, `SELECT `+oosBedColumns+` FROM out_of_service_beds WHERE id = $1`, id))
	if err := one(err, "get out-of-service bed"); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) CancelOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error {
	tag, err := s.db.Exec(ctx, `UPDATE out_of_service_beds SET cancelled_at = $2, cancellation_notes = $3
		WHERE id = $1`, o.ID, o.CancelledAt, o.CancellationNotes)
	return mustAffect(tag, err, "cancel out-of-service bed")
}

func (s *Store) ListOutOfServiceBeds(ctx context.Context, premisesID string) ([]domain.OutOfServiceBed, error) {
	rows, err := s.db.Query(ctx, `SELECT `+oosBedColumns+` FROM out_of_service_beds
		WHERE premises_id = $1 AND cancelled_at IS NULL ORDER BY start_date`, premisesID)
	return collect(rows, err, "list out-of-service beds", scanOOSBed)
}

func (s *Store) FindConflictingOutOfServiceBed(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.OutOfServiceBed, error) {
	o, err := scanOOSBed(s.db.QueryRow(ctx, `SELECT `+oosBedColumns+` FROM out_of_service_beds
		WHERE bed_id = $1 AND id <> $2 AND cancelled_at IS NULL
		  AND start_date <= $4 AND end_date >= $3
		ORDER BY start_date LIMIT 1`, bedID, excludeID, r.Start, r.End))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conflicting out-of-service bed: %w", err)
	}
	return o, nil
}
