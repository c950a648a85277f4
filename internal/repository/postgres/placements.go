package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
)

// Placement requirements

const requirementsColumns = `id, application_id, assessment_id, gender, ap_type, postcode_district_id,
	radius, essential_criteria, desirable_criteria, created_at`

func scanRequirements(row pgx.Row) (*domain.PlacementRequirements, error) {
	var (
		r              domain.PlacementRequirements
		gender, apType string
	)
	if err := row.Scan(&r.ID, &r.ApplicationID, &r.AssessmentID, &gender, &apType, &r.PostcodeDistrictID,
		&r.Radius, &r.EssentialCriteria, &r.DesirableCriteria, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Gender, r.ApType = domain.Gender(gender), domain.ApType(apType)
	return &r, nil
}

func (s *Store) CreatePlacementRequirements(ctx context.Context, r *domain.PlacementRequirements) error {
	_, err := s.db.Exec(ctx, `INSERT INTO placement_requirements (`+requirementsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.ApplicationID, r.AssessmentID, string(r.Gender), string(r.ApType), r.PostcodeDistrictID,
		r.Radius, nonNil(r.EssentialCriteria), nonNil(r.DesirableCriteria), r.CreatedAt)
	return one(err, "create placement requirements")
}

func (s *Store) GetPlacementRequirements(ctx context.Context, id string) (*domain.PlacementRequirements, error) {
	r, err := scanRequirements(s.db.QueryRow(ctx,
		`SELECT `+requirementsColumns+` FROM placement_requirements WHERE id = $1`, id))
	return r, one(err, "get placement requirements")
}

func (s *Store) LatestPlacementRequirements(ctx context.Context, applicationID string) (*domain.PlacementRequirements, error) {
	r, err := scanRequirements(s.db.QueryRow(ctx, `SELECT `+requirementsColumns+`
		FROM placement_requirements WHERE application_id = $1 ORDER BY created_at DESC LIMIT 1`, applicationID))
	return r, one(err, "latest placement requirements")
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// Placement requests

const requestColumns = `id, application_id, assessment_id, placement_requirements_id,
	placement_application_id, expected_arrival, duration, notes, space_booking_id,
	allocated_to_user_id, is_withdrawn, withdrawal_reason, reallocated_at, created_at`

func scanRequest(row pgx.Row) (*domain.PlacementRequest, error) {
	var r domain.PlacementRequest
	err := row.Scan(&r.ID, &r.ApplicationID, &r.AssessmentID, &r.PlacementRequirementsID,
		&r.PlacementApplicationID, &r.ExpectedArrival, &r.Duration, &r.Notes, &r.SpaceBookingID,
		&r.AllocatedToUserID, &r.IsWithdrawn, &r.WithdrawalReason, &r.ReallocatedAt, &r.CreatedAt)
	return &r, err
}

func (s *Store) CreatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error {
	_, err := s.db.Exec(ctx, `INSERT INTO placement_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.ApplicationID, r.AssessmentID, r.PlacementRequirementsID,
		r.PlacementApplicationID, r.ExpectedArrival, r.Duration, r.Notes, r.SpaceBookingID,
		r.AllocatedToUserID, r.IsWithdrawn, r.WithdrawalReason, r.ReallocatedAt, r.CreatedAt)
	return one(err, "create placement request")
}

func (s *Store) GetPlacementRequest(ctx context.Context, id string) (*domain.PlacementRequest, error) {
	r, err := scanRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM placement_requests WHERE id = $1`, id))
	return r, one(err, "get placement request")
}

func (s *Store) UpdatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error {
	tag, err := s.db.Exec(ctx, `UPDATE placement_requests SET
		space_booking_id = $2, allocated_to_user_id = $3, is_withdrawn = $4, withdrawal_reason = $5,
		reallocated_at = $6, notes = $7
		WHERE id = $1`,
		r.ID, r.SpaceBookingID, r.AllocatedToUserID, r.IsWithdrawn, r.WithdrawalReason,
		r.ReallocatedAt, r.Notes)
	return mustAffect(tag, err, "update placement request")
}

func (s *Store) ListPlacementRequestsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementRequest, error) {
	rows, err := s.db.Query(ctx, `SELECT `+requestColumns+`
		FROM placement_requests WHERE application_id = $1 ORDER BY created_at`, applicationID)
	return collect(rows, err, "list placement requests", scanRequest)
}

// Placement applications

const placementAppColumns = `id, application_id, created_by_user_id, schema_version, data::text,
	document::text, placement_type, submitted_at, decision, decision_made_at, is_withdrawn,
	withdrawal_reason, created_at`

func scanPlacementApp(row pgx.Row) (*domain.PlacementApplication, error) {
	var (
		p        domain.PlacementApplication
		pType    *string
		decision *string
	)
	if err := row.Scan(&p.ID, &p.ApplicationID, &p.CreatedByUserID, &p.SchemaVersion, &p.Data,
		&p.Document, &pType, &p.SubmittedAt, &decision, &p.DecisionMadeAt, &p.IsWithdrawn,
		&p.WithdrawalReason, &p.CreatedAt); err != nil {
		return nil, err
	}
	if pType != nil {
		t := domain.PlacementType(*pType)
		p.PlacementType = &t
	}
	if decision != nil {
		d := domain.PlacementApplicationDecision(*decision)
		p.Decision = &d
	}
	return &p, nil
}

func placementAppArgs(p *domain.PlacementApplication) (pType, decision *string) {
	if p.PlacementType != nil {
		v := string(*p.PlacementType)
		pType = &v
	}
	if p.Decision != nil {
		v := string(*p.Decision)
		decision = &v
	}
	return pType, decision
}

func (s *Store) CreatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error {
	pType, decision := placementAppArgs(p)
	if _, err := s.db.Exec(ctx, `INSERT INTO placement_applications (
		id, application_id, created_by_user_id, schema_version, data, document, placement_type,
		submitted_at, decision, decision_made_at, is_withdrawn, withdrawal_reason, created_at
	) VALUES ($1, $2, $3, $4, $5::json, $6::json, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.ApplicationID, p.CreatedByUserID, p.SchemaVersion, p.Data, p.Document, pType,
		p.SubmittedAt, decision, p.DecisionMadeAt, p.IsWithdrawn, p.WithdrawalReason, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("create placement application: %w", err)
	}
	return s.replacePlacementDates(ctx, p)
}

func (s *Store) replacePlacementDates(ctx context.Context, p *domain.PlacementApplication) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM placement_application_dates WHERE placement_application_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear placement dates: %w", err)
	}
	for i, d := range p.Dates {
		if _, err := s.db.Exec(ctx, `INSERT INTO placement_application_dates
			(placement_application_id, position, expected_arrival, duration) VALUES ($1, $2, $3, $4)`,
			p.ID, i, d.ExpectedArrival, d.Duration); err != nil {
			return fmt.Errorf("insert placement date: %w", err)
		}
	}
	return nil
}

func (s *Store) loadPlacementAppChildren(ctx context.Context, p *domain.PlacementApplication) error {
	rows, err := s.db.Query(ctx, `SELECT expected_arrival, duration FROM placement_application_dates
		WHERE placement_application_id = $1 ORDER BY position`, p.ID)
	dates, err := collect(rows, err, "list placement dates", func(row pgx.Row) (*domain.PlacementDate, error) {
		var d domain.PlacementDate
		err := row.Scan(&d.ExpectedArrival, &d.Duration)
		return &d, err
	})
	if err != nil {
		return err
	}
	p.Dates = dates

	rows, err = s.db.Query(ctx, `SELECT `+requestColumns+`
		FROM placement_requests WHERE placement_application_id = $1 ORDER BY created_at`, p.ID)
	reqs, err := collect(rows, err, "list placement application requests", scanRequest)
	if err != nil {
		return err
	}
	p.PlacementRequests = reqs
	return nil
}

func (s *Store) GetPlacementApplication(ctx context.Context, id string) (*domain.PlacementApplication, error) {
	p, err := scanPlacementApp(s.db.QueryRow(ctx,
		`SELECT `+placementAppColumns+` FROM placement_applications WHERE id = $1`, id))
	if err := one(err, "get placement application"); err != nil {
		return nil, err
	}
	if err := s.loadPlacementAppChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) UpdatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error {
	pType, decision := placementAppArgs(p)
	tag, err := s.db.Exec(ctx, `UPDATE placement_applications SET
		schema_version = $2, data = $3::json, document = $4::json, placement_type = $5,
		submitted_at = $6, decision = $7, decision_made_at = $8, is_withdrawn = $9,
		withdrawal_reason = $10
		WHERE id = $1`,
		p.ID, p.SchemaVersion, p.Data, p.Document, pType,
		p.SubmittedAt, decision, p.DecisionMadeAt, p.IsWithdrawn, p.WithdrawalReason)
	if err := mustAffect(tag, err, "update placement application"); err != nil {
		return err
	}
	return s.replacePlacementDates(ctx, p)
}

func (s *Store) ListPlacementApplicationsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementApplication, error) {
	rows, err := s.db.Query(ctx, `SELECT `+placementAppColumns+`
		FROM placement_applications WHERE application_id = $1 ORDER BY created_at`, applicationID)
	apps, err := collect(rows, err, "list placement applications", scanPlacementApp)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if err := s.loadPlacementAppChildren(ctx, &apps[i]); err != nil {
			return nil, err
		}
	}
	return apps, nil
}
