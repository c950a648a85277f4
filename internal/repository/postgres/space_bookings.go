package postgres

import (
	"context"

	"approvedpremises.io/cas/internal/domain"
)

func (s *Store) CreateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error {
	_, err := s.db.Exec(ctx, `INSERT INTO space_bookings (
		id, premises_id, placement_request_id, application_id, offline_application_id, crn,
		created_by_user_id, created_at, expected_arrival_date, expected_departure_date,
		canonical_arrival_date, canonical_departure_date
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.PremisesID, b.PlacementRequestID, b.ApplicationID, b.OfflineApplicationID, b.CRN,
		b.CreatedByUserID, b.CreatedAt, b.ExpectedArrivalDate, b.ExpectedDepartureDate,
		b.CanonicalArrivalDate, b.CanonicalDepartureDate)
	return one(err, "create space booking")
}

func (s *Store) GetSpaceBooking(ctx context.Context, id string) (*domain.SpaceBooking, error) {
	var b domain.SpaceBooking
	err := s.db.QueryRow(ctx, `SELECT id, premises_id, placement_request_id, application_id,
		offline_application_id, crn, created_by_user_id, created_at, expected_arrival_date,
		expected_departure_date, actual_arrival_date, actual_departure_date, canonical_arrival_date,
		canonical_departure_date, non_arrival_confirmed_at, non_arrival_reason_id, non_arrival_notes,
		departure_reason_id, departure_move_on_category_id, departure_notes, cancellation_occurred_at,
		cancellation_recorded_at, cancellation_reason_id, cancellation_notes
		FROM space_bookings WHERE id = $1`, id).Scan(
		&b.ID, &b.PremisesID, &b.PlacementRequestID, &b.ApplicationID,
		&b.OfflineApplicationID, &b.CRN, &b.CreatedByUserID, &b.CreatedAt, &b.ExpectedArrivalDate,
		&b.ExpectedDepartureDate, &b.ActualArrivalDate, &b.ActualDepartureDate, &b.CanonicalArrivalDate,
		&b.CanonicalDepartureDate, &b.NonArrivalConfirmedAt, &b.NonArrivalReasonID, &b.NonArrivalNotes,
		&b.DepartureReasonID, &b.DepartureMoveOnCategoryID, &b.DepartureNotes, &b.CancellationOccurredAt,
		&b.CancellationRecordedAt, &b.CancellationReasonID, &b.CancellationNotes)
	if err := one(err, "get space booking"); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateSpaceBooking rewrites every mutable column; identity and creation
// fields are fixed at insert.
func (s *Store) UpdateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error {
	tag, err := s.db.Exec(ctx, `UPDATE space_bookings SET
		expected_arrival_date = $2, expected_departure_date = $3, actual_arrival_date = $4,
		actual_departure_date = $5, canonical_arrival_date = $6, canonical_departure_date = $7,
		non_arrival_confirmed_at = $8, non_arrival_reason_id = $9, non_arrival_notes = $10,
		departure_reason_id = $11, departure_move_on_category_id = $12, departure_notes = $13,
		cancellation_occurred_at = $14, cancellation_recorded_at = $15, cancellation_reason_id = $16,
		cancellation_notes = $17
		WHERE id = $1`,
		b.ID, b.ExpectedArrivalDate, b.ExpectedDepartureDate, b.ActualArrivalDate,
		b.ActualDepartureDate, b.CanonicalArrivalDate, b.CanonicalDepartureDate,
		b.NonArrivalConfirmedAt, b.NonArrivalReasonID, b.NonArrivalNotes,
		b.DepartureReasonID, b.DepartureMoveOnCategoryID, b.DepartureNotes,
		b.CancellationOccurredAt, b.CancellationRecordedAt, b.CancellationReasonID,
		b.CancellationNotes)
	return mustAffect(tag, err, "update space booking")
}
