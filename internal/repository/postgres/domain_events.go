package postgres

import (
	"context"

	"approvedpremises.io/cas/internal/domain"
)

func (s *Store) CreateDomainEvent(ctx context.Context, e *domain.DomainEvent) error {
	_, err := s.db.Exec(ctx, `INSERT INTO domain_events (
		id, application_id, assessment_id, booking_id, crn, noms_number, type, occurred_at,
		created_at, data, triggered_by_user_id, service
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::json, $11, $12)`,
		e.ID, e.ApplicationID, e.AssessmentID, e.BookingID, e.CRN, e.NomsNumber, string(e.Type), e.OccurredAt,
		e.CreatedAt, e.Data, e.TriggeredByUserID, string(e.Service))
	return one(err, "create domain event")
}

func (s *Store) GetDomainEvent(ctx context.Context, id string) (*domain.DomainEvent, error) {
	var (
		e            domain.DomainEvent
		typ, service string
	)
	err := s.db.QueryRow(ctx, `SELECT id, application_id, assessment_id, booking_id, crn, noms_number,
		type, occurred_at, created_at, data::text, triggered_by_user_id, service
		FROM domain_events WHERE id = $1`, id).Scan(
		&e.ID, &e.ApplicationID, &e.AssessmentID, &e.BookingID, &e.CRN, &e.NomsNumber,
		&typ, &e.OccurredAt, &e.CreatedAt, &e.Data, &e.TriggeredByUserID, &service)
	if err := one(err, "get domain event"); err != nil {
		return nil, err
	}
	e.Type, e.Service = domain.EventType(typ), domain.ServiceName(service)
	return &e, nil
}
