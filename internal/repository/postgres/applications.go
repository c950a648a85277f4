package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

// data and document are json (not jsonb) columns read back as text, so the
// stored bytes round-trip unchanged.
const applicationColumns = `id, service, crn, noms_number, data::text, document::text, schema_version,
	created_by_user_id, created_at, submitted_at, ap_type, is_womens_application, is_emergency,
	release_type, target_location, arrival_date, status, is_withdrawn, withdrawal_reason,
	withdrawal_other_reason, probation_region_id, is_duty_to_refer_submitted`

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var (
		a              domain.Application
		service        string
		apType         *string
		womens, emerg  *bool
		releaseType    *string
		targetLocation *string
		arrivalDate    *time.Time
		status         *string
		withdrawn      bool
		wReason        *string
		wOther         *string
		regionID       *string
		dutyToRefer    *bool
	)
	if err := row.Scan(&a.ID, &service, &a.CRN, &a.NomsNumber, &a.Data, &a.Document, &a.SchemaVersion,
		&a.CreatedByUserID, &a.CreatedAt, &a.SubmittedAt, &apType, &womens, &emerg,
		&releaseType, &targetLocation, &arrivalDate, &status, &withdrawn, &wReason,
		&wOther, &regionID, &dutyToRefer); err != nil {
		return nil, err
	}
	a.Service = domain.ServiceName(service)
	switch a.Service {
	case domain.ServiceCAS1:
		a.AP = &domain.ApprovedPremisesDetails{
			ApType:                domain.ApType(deref(apType)),
			IsWomensApplication:   womens != nil && *womens,
			IsEmergency:           emerg != nil && *emerg,
			ReleaseType:           deref(releaseType),
			TargetLocation:        deref(targetLocation),
			ArrivalDate:           arrivalDate,
			Status:                domain.ApplicationStatus(deref(status)),
			IsWithdrawn:           withdrawn,
			WithdrawalReason:      wReason,
			WithdrawalOtherReason: wOther,
		}
	case domain.ServiceCAS3:
		a.TA = &domain.TemporaryAccommodationDetails{
			ProbationRegionID:      deref(regionID),
			ArrivalDate:            arrivalDate,
			IsDutyToReferSubmitted: dutyToRefer != nil && *dutyToRefer,
		}
	}
	return &a, nil
}

// applicationArgs flattens the variant into nullable columns in
// applicationColumns order, starting at ap_type.
func applicationArgs(a *domain.Application) []any {
	var (
		apType, releaseType, targetLocation, status, regionID *string
		womens, emerg, dutyToRefer                            *bool
		arrivalDate                                           *time.Time
		withdrawn                                             bool
		wReason, wOther                                       *string
	)
	if ap := a.AP; ap != nil {
		apType = nullIfEmpty(string(ap.ApType))
		womens, emerg = &ap.IsWomensApplication, &ap.IsEmergency
		releaseType = nullIfEmpty(ap.ReleaseType)
		targetLocation = nullIfEmpty(ap.TargetLocation)
		arrivalDate = ap.ArrivalDate
		status = nullIfEmpty(string(ap.Status))
		withdrawn, wReason, wOther = ap.IsWithdrawn, ap.WithdrawalReason, ap.WithdrawalOtherReason
	}
	if ta := a.TA; ta != nil {
		regionID = nullIfEmpty(ta.ProbationRegionID)
		arrivalDate = ta.ArrivalDate
		dutyToRefer = &ta.IsDutyToReferSubmitted
	}
	return []any{apType, womens, emerg, releaseType, targetLocation, arrivalDate, status,
		withdrawn, wReason, wOther, regionID, dutyToRefer}
}

func (s *Store) CreateApplication(ctx context.Context, a *domain.Application) error {
	args := append([]any{a.ID, string(a.Service), a.CRN, a.NomsNumber, a.Data, a.Document,
		a.SchemaVersion, a.CreatedByUserID, a.CreatedAt, a.SubmittedAt}, applicationArgs(a)...)
	_, err := s.db.Exec(ctx, `INSERT INTO applications (
		id, service, crn, noms_number, data, document, schema_version,
		created_by_user_id, created_at, submitted_at, ap_type, is_womens_application, is_emergency,
		release_type, target_location, arrival_date, status, is_withdrawn, withdrawal_reason,
		withdrawal_other_reason, probation_region_id, is_duty_to_refer_submitted
	) VALUES ($1, $2, $3, $4, $5::json, $6::json, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22)`, args...)
	return one(err, "create application")
}

func (s *Store) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	a, err := scanApplication(s.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	return a, one(err, "get application")
}

func (s *Store) UpdateApplication(ctx context.Context, a *domain.Application) error {
	args := append([]any{a.ID, a.NomsNumber, a.Data, a.Document, a.SchemaVersion, a.SubmittedAt},
		applicationArgs(a)...)
	tag, err := s.db.Exec(ctx, `UPDATE applications SET
		noms_number = $2, data = $3::json, document = $4::json, schema_version = $5, submitted_at = $6,
		ap_type = $7, is_womens_application = $8, is_emergency = $9, release_type = $10,
		target_location = $11, arrival_date = $12, status = $13, is_withdrawn = $14,
		withdrawal_reason = $15, withdrawal_other_reason = $16, probation_region_id = $17,
		is_duty_to_refer_submitted = $18
		WHERE id = $1`, args...)
	return mustAffect(tag, err, "update application")
}

func (s *Store) ListApplications(ctx context.Context, f repository.ApplicationFilter) ([]domain.Application, error) {
	rows, err := s.db.Query(ctx, `SELECT `+applicationColumns+` FROM applications
		WHERE ($1 = '' OR service = $1)
		  AND ($2 = '' OR created_by_user_id = $2)
		  AND ($3 = '' OR probation_region_id = $3)
		ORDER BY created_at`, string(f.Service), f.CreatedByUserID, f.ProbationRegionID)
	return collect(rows, err, "list applications", scanApplication)
}

func (s *Store) FindApplicationByCRN(ctx context.Context, service domain.ServiceName, crn string) (*domain.Application, error) {
	a, err := scanApplication(s.db.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications
		WHERE service = $1 AND crn = $2 ORDER BY created_at DESC LIMIT 1`, string(service), crn))
	return a, one(err, "find application by crn")
}

func (s *Store) CreateOfflineApplication(ctx context.Context, o *domain.OfflineApplication) error {
	_, err := s.db.Exec(ctx, `INSERT INTO offline_applications
		(id, service, crn, event_number, created_at, submitted_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, string(o.Service), o.CRN, o.EventNumber, o.CreatedAt, o.SubmittedAt)
	return one(err, "create offline application")
}
