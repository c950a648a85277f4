package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

const cas2Columns = `a.id, a.crn, a.noms_number, a.created_by_user_id, a.data::text, a.document::text,
	a.schema_version, a.created_at, a.submitted_at, a.abandoned_at, a.referring_prison_code,
	a.preferred_areas, a.hdc_eligibility_date, a.conditional_release_date, a.telephone_number`

func scanCas2(row pgx.Row) (*domain.Cas2Application, error) {
	var a domain.Cas2Application
	err := row.Scan(&a.ID, &a.CRN, &a.NomsNumber, &a.CreatedByUserID, &a.Data, &a.Document,
		&a.SchemaVersion, &a.CreatedAt, &a.SubmittedAt, &a.AbandonedAt, &a.ReferringPrisonCode,
		&a.PreferredAreas, &a.HDCEligibilityDate, &a.ConditionalReleaseDate, &a.TelephoneNumber)
	return &a, err
}

// currentPrison is the latest assignment's prison, else the referring prison.
const currentPrison = `COALESCE((SELECT x.prison_code FROM cas2_application_assignments x
	WHERE x.application_id = a.id ORDER BY x.created_at DESC LIMIT 1), a.referring_prison_code, '')`

func (s *Store) CreateCas2Application(ctx context.Context, app *domain.Cas2Application) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cas2_applications (
		id, crn, noms_number, created_by_user_id, data, document, schema_version, created_at,
		submitted_at, abandoned_at, referring_prison_code, preferred_areas, hdc_eligibility_date,
		conditional_release_date, telephone_number
	) VALUES ($1, $2, $3, $4, $5::json, $6::json, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		app.ID, app.CRN, app.NomsNumber, app.CreatedByUserID, app.Data, app.Document, app.SchemaVersion,
		app.CreatedAt, app.SubmittedAt, app.AbandonedAt, app.ReferringPrisonCode, app.PreferredAreas,
		app.HDCEligibilityDate, app.ConditionalReleaseDate, app.TelephoneNumber)
	return one(err, "create cas2 application")
}

func (s *Store) getCas2(ctx context.Context, id, suffix string) (*domain.Cas2Application, error) {
	a, err := scanCas2(s.db.QueryRow(ctx, `SELECT `+cas2Columns+` FROM cas2_applications a WHERE a.id = $1`+suffix, id))
	if err := one(err, "get cas2 application"); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetCas2Application(ctx context.Context, id string) (*domain.Cas2Application, error) {
	return s.getCas2(ctx, id, "")
}

func (s *Store) GetCas2ApplicationForUpdate(ctx context.Context, id string) (*domain.Cas2Application, error) {
	if s.tx == nil {
		return nil, fmt.Errorf("get cas2 application for update: no transaction")
	}
	return s.getCas2(ctx, id, " FOR UPDATE")
}

func (s *Store) loadAssignments(ctx context.Context, a *domain.Cas2Application) error {
	rows, err := s.db.Query(ctx, `SELECT id, application_id, prison_code, allocated_pom_user_id, created_at
		FROM cas2_application_assignments WHERE application_id = $1 ORDER BY created_at`, a.ID)
	assignments, err := collect(rows, err, "list cas2 assignments", func(row pgx.Row) (*domain.Cas2ApplicationAssignment, error) {
		var x domain.Cas2ApplicationAssignment
		err := row.Scan(&x.ID, &x.ApplicationID, &x.PrisonCode, &x.AllocatedPomUserID, &x.CreatedAt)
		return &x, err
	})
	if err != nil {
		return err
	}
	a.Assignments = assignments
	return nil
}

// UpdateCas2Application leaves assignments alone; they are only appended
// through CreateCas2Assignment.
func (s *Store) UpdateCas2Application(ctx context.Context, app *domain.Cas2Application) error {
	tag, err := s.db.Exec(ctx, `UPDATE cas2_applications SET
		data = $2::json, document = $3::json, schema_version = $4, submitted_at = $5, abandoned_at = $6,
		referring_prison_code = $7, preferred_areas = $8, hdc_eligibility_date = $9,
		conditional_release_date = $10, telephone_number = $11
		WHERE id = $1`,
		app.ID, app.Data, app.Document, app.SchemaVersion, app.SubmittedAt, app.AbandonedAt,
		app.ReferringPrisonCode, app.PreferredAreas, app.HDCEligibilityDate,
		app.ConditionalReleaseDate, app.TelephoneNumber)
	return mustAffect(tag, err, "update cas2 application")
}

func (s *Store) ListCas2Applications(ctx context.Context, f repository.Cas2Filter) ([]domain.Cas2Application, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cas2Columns+` FROM cas2_applications a
		WHERE ($1 = '' OR a.created_by_user_id = $1)
		  AND ($2 = '' OR `+currentPrison+` = $2)
		ORDER BY a.created_at`, f.CreatedByUserID, f.PrisonCode)
	apps, err := collect(rows, err, "list cas2 applications", scanCas2)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if err := s.loadAssignments(ctx, &apps[i]); err != nil {
			return nil, err
		}
	}
	return apps, nil
}

func (s *Store) LatestCas2ApplicationByNoms(ctx context.Context, nomsNumber string) (*domain.Cas2Application, error) {
	a, err := scanCas2(s.db.QueryRow(ctx, `SELECT `+cas2Columns+` FROM cas2_applications a
		WHERE a.noms_number = $1 ORDER BY a.created_at DESC LIMIT 1`, nomsNumber))
	if err := one(err, "latest cas2 application"); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateCas2Assignment(ctx context.Context, a *domain.Cas2ApplicationAssignment) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cas2_application_assignments
		(id, application_id, prison_code, allocated_pom_user_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ApplicationID, a.PrisonCode, a.AllocatedPomUserID, a.CreatedAt)
	return one(err, "create cas2 assignment")
}

// AbandonStaleCas2Applications marks unsubmitted applications created
// before createdBefore as abandoned at now.
func (s *Store) AbandonStaleCas2Applications(ctx context.Context, createdBefore, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE cas2_applications SET abandoned_at = $2
		WHERE submitted_at IS NULL AND abandoned_at IS NULL AND created_at < $1`, createdBefore, now)
	if err != nil {
		return 0, fmt.Errorf("abandon stale cas2 applications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateCas2Assessment(ctx context.Context, a *domain.Cas2Assessment) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cas2_assessments
		(id, application_id, nacro_referral_id, assessor_name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ApplicationID, a.NacroReferralID, a.AssessorName, a.CreatedAt)
	return one(err, "create cas2 assessment")
}

func (s *Store) GetCas2Assessment(ctx context.Context, id string) (*domain.Cas2Assessment, error) {
	var a domain.Cas2Assessment
	err := s.db.QueryRow(ctx, `SELECT id, application_id, nacro_referral_id, assessor_name, created_at
		FROM cas2_assessments WHERE id = $1`, id).
		Scan(&a.ID, &a.ApplicationID, &a.NacroReferralID, &a.AssessorName, &a.CreatedAt)
	if err := one(err, "get cas2 assessment"); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreateCas2StatusUpdate(ctx context.Context, u *domain.Cas2StatusUpdate) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cas2_status_updates
		(id, assessment_id, application_id, status_name, label, description, assessor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.AssessmentID, u.ApplicationID, u.StatusName, u.Label, u.Description, u.AssessorID, u.CreatedAt)
	return one(err, "create cas2 status update")
}

func (s *Store) ListCas2StatusUpdates(ctx context.Context, applicationID string) ([]domain.Cas2StatusUpdate, error) {
	rows, err := s.db.Query(ctx, `SELECT id, assessment_id, application_id, status_name, label, description,
		assessor_id, created_at
		FROM cas2_status_updates WHERE application_id = $1 ORDER BY created_at`, applicationID)
	return collect(rows, err, "list cas2 status updates", func(row pgx.Row) (*domain.Cas2StatusUpdate, error) {
		var u domain.Cas2StatusUpdate
		err := row.Scan(&u.ID, &u.AssessmentID, &u.ApplicationID, &u.StatusName, &u.Label, &u.Description,
			&u.AssessorID, &u.CreatedAt)
		return &u, err
	})
}
