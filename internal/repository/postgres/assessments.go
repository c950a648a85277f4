package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

const assessmentColumns = `a.id, a.application_id, a.service, a.allocated_to_user_id, a.allocated_at,
	a.reallocated_at, a.schema_version, a.data::text, a.document::text, a.decision,
	a.rejection_rationale, a.submitted_at, a.created_at, a.referral_status`

func scanAssessment(row pgx.Row) (*domain.Assessment, error) {
	var (
		a        domain.Assessment
		service  string
		decision *string
		referral string
	)
	if err := row.Scan(&a.ID, &a.ApplicationID, &service, &a.AllocatedToUserID, &a.AllocatedAt,
		&a.ReallocatedAt, &a.SchemaVersion, &a.Data, &a.Document, &decision,
		&a.RejectionRationale, &a.SubmittedAt, &a.CreatedAt, &referral); err != nil {
		return nil, err
	}
	a.Service = domain.ServiceName(service)
	a.ReferralStatus = domain.ReferralStatus(referral)
	if decision != nil {
		d := domain.AssessmentDecision(*decision)
		a.Decision = &d
	}
	return &a, nil
}

func decisionArg(d *domain.AssessmentDecision) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func (s *Store) CreateAssessment(ctx context.Context, a *domain.Assessment) error {
	_, err := s.db.Exec(ctx, `INSERT INTO assessments (
		id, application_id, service, allocated_to_user_id, allocated_at, reallocated_at,
		schema_version, data, document, decision, rejection_rationale, submitted_at, created_at,
		referral_status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::json, $9::json, $10, $11, $12, $13, $14)`,
		a.ID, a.ApplicationID, string(a.Service), a.AllocatedToUserID, a.AllocatedAt, a.ReallocatedAt,
		a.SchemaVersion, a.Data, a.Document, decisionArg(a.Decision), a.RejectionRationale,
		a.SubmittedAt, a.CreatedAt, string(a.ReferralStatus))
	return one(err, "create assessment")
}

func (s *Store) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	a, err := scanAssessment(s.db.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments a WHERE a.id = $1`, id))
	if err := one(err, "get assessment"); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT id, assessment_id, created_by_user_id, query, response,
		response_received_on, created_at
		FROM assessment_clarification_notes WHERE assessment_id = $1 ORDER BY created_at`, id)
	notes, err := collect(rows, err, "list clarification notes", scanNote)
	if err != nil {
		return nil, err
	}
	a.ClarificationNotes = notes
	return a, nil
}

func scanNote(row pgx.Row) (*domain.ClarificationNote, error) {
	var n domain.ClarificationNote
	err := row.Scan(&n.ID, &n.AssessmentID, &n.CreatedByUserID, &n.Query, &n.Response,
		&n.ResponseReceivedOn, &n.CreatedAt)
	return &n, err
}

func (s *Store) UpdateAssessment(ctx context.Context, a *domain.Assessment) error {
	tag, err := s.db.Exec(ctx, `UPDATE assessments SET
		allocated_to_user_id = $2, allocated_at = $3, reallocated_at = $4, schema_version = $5,
		data = $6::json, document = $7::json, decision = $8, rejection_rationale = $9,
		submitted_at = $10, referral_status = $11
		WHERE id = $1`,
		a.ID, a.AllocatedToUserID, a.AllocatedAt, a.ReallocatedAt, a.SchemaVersion,
		a.Data, a.Document, decisionArg(a.Decision), a.RejectionRationale,
		a.SubmittedAt, string(a.ReferralStatus))
	return mustAffect(tag, err, "update assessment")
}

func (s *Store) ListAssessments(ctx context.Context, f repository.AssessmentFilter) ([]domain.Assessment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+assessmentColumns+`
		FROM assessments a JOIN applications app ON app.id = a.application_id
		WHERE ($1 = '' OR a.service = $1)
		  AND ($2 = '' OR a.allocated_to_user_id = $2)
		  AND ($3 = '' OR app.probation_region_id = $3)
		  AND ($4 OR a.reallocated_at IS NULL)
		ORDER BY a.created_at`,
		string(f.Service), f.AllocatedToUserID, f.ProbationRegionID, f.IncludeReassigned)
	return collect(rows, err, "list assessments", scanAssessment)
}

func (s *Store) CreateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error {
	_, err := s.db.Exec(ctx, `INSERT INTO assessment_clarification_notes
		(id, assessment_id, created_by_user_id, query, response, response_received_on, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.AssessmentID, n.CreatedByUserID, n.Query, n.Response, n.ResponseReceivedOn, n.CreatedAt)
	return one(err, "create clarification note")
}

func (s *Store) UpdateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error {
	tag, err := s.db.Exec(ctx, `UPDATE assessment_clarification_notes
		SET response = $2, response_received_on = $3 WHERE id = $1`,
		n.ID, n.Response, n.ResponseReceivedOn)
	return mustAffect(tag, err, "update clarification note")
}

func (s *Store) CreateAssessmentStatusChange(ctx context.Context, c *domain.AssessmentStatusChange) error {
	_, err := s.db.Exec(ctx, `INSERT INTO assessment_referral_history
		(id, assessment_id, from_status, to_status, changed_by_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.AssessmentID, string(c.FromStatus), string(c.ToStatus), c.ChangedByUserID, c.CreatedAt)
	return one(err, "create assessment status change")
}

func (s *Store) ListAssessmentStatusChanges(ctx context.Context, assessmentID string) ([]domain.AssessmentStatusChange, error) {
	rows, err := s.db.Query(ctx, `SELECT id, assessment_id, from_status, to_status, changed_by_user_id, created_at
		FROM assessment_referral_history WHERE assessment_id = $1 ORDER BY created_at`, assessmentID)
	return collect(rows, err, "list assessment status changes", func(row pgx.Row) (*domain.AssessmentStatusChange, error) {
		var (
			c        domain.AssessmentStatusChange
			from, to string
		)
		if err := row.Scan(&c.ID, &c.AssessmentID, &from, &to, &c.ChangedByUserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.FromStatus, c.ToStatus = domain.ReferralStatus(from), domain.ReferralStatus(to)
		return &c, nil
	})
}
