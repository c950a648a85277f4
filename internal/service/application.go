package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// NewApplication is the input of ApplicationService.Create.
type NewApplication struct {
	Service    domain.ServiceName
	CRN        string
	NomsNumber *string

	// CAS1
	ApType              domain.ApType
	IsWomensApplication bool
	IsEmergency         bool
	ReleaseType         string
	TargetLocation      string
	ArrivalDate         *time.Time

	// CAS3; defaults to the creator's region.
	ProbationRegionID string
}

// ApplicationSubmission is the input of ApplicationService.Submit.
type ApplicationSubmission struct {
	Document string

	// CAS1
	ApType              domain.ApType
	IsWomensApplication bool
	IsEmergency         bool
	ReleaseType         string
	TargetLocation      string
	ArrivalDate         *time.Time

	// CAS3
	IsDutyToReferSubmitted bool
}

// ApplicationService implements the CAS1 and CAS3 application lifecycle.
type ApplicationService struct {
	Deps
	access domain.UserAccess
}

// NewApplicationService creates the service.
func NewApplicationService(d Deps) *ApplicationService {
	return &ApplicationService{Deps: d}
}

func applicationSchemaType(s domain.ServiceName) jsonschema.Type {
	if s == domain.ServiceCAS3 {
		return jsonschema.TypeTemporaryAccommodationApplication
	}
	return jsonschema.TypeApprovedPremisesApplication
}

func assessmentSchemaType(s domain.ServiceName) jsonschema.Type {
	if s == domain.ServiceCAS3 {
		return jsonschema.TypeTemporaryAccommodationAssessment
	}
	return jsonschema.TypeApprovedPremisesAssessment
}

func (s *ApplicationService) applicationURL(id string) string {
	return strings.TrimRight(s.FrontendURL, "/") + "/applications/" + id
}

// Create starts an in-progress application stamped with the newest schema.
func (s *ApplicationService) Create(ctx context.Context, user *domain.User, in NewApplication) (result.Validatable[*domain.Application], error) {
	errs := result.ValidationErrors{}
	if strings.TrimSpace(in.CRN) == "" {
		errs.Add("$.crn", errEmpty)
	}
	if in.Service != domain.ServiceCAS1 && in.Service != domain.ServiceCAS3 {
		errs.Add("$.service", errInvalid)
	}
	if errs.Any() {
		return result.Fields[*domain.Application](errs), nil
	}

	schema, err := s.Schemas.NewestFor(applicationSchemaType(in.Service))
	if err != nil {
		return result.Validatable[*domain.Application]{}, err
	}

	app := &domain.Application{
		ID:              newID(),
		Service:         in.Service,
		CRN:             strings.TrimSpace(in.CRN),
		NomsNumber:      in.NomsNumber,
		SchemaVersion:   schema.ID,
		CreatedByUserID: user.ID,
		CreatedAt:       s.now(),
	}
	switch in.Service {
	case domain.ServiceCAS1:
		apType := in.ApType
		if apType == "" {
			apType = domain.ApTypeNormal
		}
		app.AP = &domain.ApprovedPremisesDetails{
			ApType:              apType,
			IsWomensApplication: in.IsWomensApplication,
			IsEmergency:         in.IsEmergency,
			ReleaseType:         in.ReleaseType,
			TargetLocation:      in.TargetLocation,
			ArrivalDate:         in.ArrivalDate,
			Status:              domain.AppStatusStarted,
		}
	case domain.ServiceCAS3:
		region := in.ProbationRegionID
		if region == "" && user.ProbationRegionID != nil {
			region = *user.ProbationRegionID
		}
		app.TA = &domain.TemporaryAccommodationDetails{ProbationRegionID: region, ArrivalDate: in.ArrivalDate}
	}

	if err := s.Store.CreateApplication(ctx, app); err != nil {
		return result.Validatable[*domain.Application]{}, fmt.Errorf("create application: %w", err)
	}
	return result.Valid(app), nil
}

// GetForUser loads an application the caller may view.
func (s *ApplicationService) GetForUser(ctx context.Context, user *domain.User, id string) (result.Authorisable[*domain.Application], error) {
	app, err := lookup(s.Store.GetApplication(ctx, id))
	if err != nil {
		return result.Authorisable[*domain.Application]{}, fmt.Errorf("load application %s: %w", id, err)
	}
	if app == nil {
		return result.NotFound[*domain.Application]("Application", id), nil
	}
	if !s.access.CanViewApplication(user, app) {
		return result.Unauthorised[*domain.Application](), nil
	}
	return result.Success(app), nil
}

// ListForUser lists the applications of service visible to the caller.
func (s *ApplicationService) ListForUser(ctx context.Context, user *domain.User, service domain.ServiceName) ([]domain.Application, error) {
	f := repository.ApplicationFilter{Service: service}
	switch service {
	case domain.ServiceCAS1:
		if !user.HasAnyRole(domain.RoleCAS1Assessor, domain.RoleCAS1Matcher, domain.RoleCAS1WorkflowManager, domain.RoleCAS1Manager) {
			f.CreatedByUserID = user.ID
		}
	case domain.ServiceCAS3:
		if user.HasRole(domain.RoleCAS3Assessor) && user.ProbationRegionID != nil {
			f.ProbationRegionID = *user.ProbationRegionID
		} else {
			f.CreatedByUserID = user.ID
		}
	default:
		return nil, nil
	}
	apps, err := s.Store.ListApplications(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// loadOwned loads an application for a write by its creator and applies
// the shared in-progress guards.
func (s *ApplicationService) loadOwned(ctx context.Context, tx repository.Store, user *domain.User, id string) (*domain.Application, Outcome[*domain.Application], error) {
	app, err := lookup(tx.GetApplication(ctx, id))
	if err != nil {
		return nil, Outcome[*domain.Application]{}, fmt.Errorf("load application %s: %w", id, err)
	}
	switch {
	case app == nil:
		return nil, notFound[*domain.Application]("Application", id), nil
	case app.CreatedByUserID != user.ID:
		return nil, unauthorised[*domain.Application](), nil
	case app.IsSubmitted():
		return nil, general[*domain.Application](msgAlreadySubmitted), nil
	case app.IsWithdrawn():
		return nil, general[*domain.Application](msgWithdrawn), nil
	case s.Schemas.IsOutdated(applicationSchemaType(app.Service), app.SchemaVersion):
		return nil, general[*domain.Application](msgSchemaOutdated), nil
	}
	return app, Outcome[*domain.Application]{}, nil
}

// Update replaces the in-progress data of an application.
func (s *ApplicationService) Update(ctx context.Context, user *domain.User, id, data string) (Outcome[*domain.Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Application], error) {
		app, fail, err := s.loadOwned(ctx, tx, user, id)
		if err != nil || app == nil {
			return fail, orRollback(err)
		}
		app.Data = &data
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("update application %s: %w", id, err)
		}
		return ok(app), nil
	})
}

// Submit validates and submits an application and opens its assessment.
func (s *ApplicationService) Submit(ctx context.Context, user *domain.User, id string, in ApplicationSubmission) (Outcome[*domain.Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Application], error) {
		app, fail, err := s.loadOwned(ctx, tx, user, id)
		if err != nil || app == nil {
			return fail, orRollback(err)
		}
		if verr := s.Schemas.Validate(app.SchemaVersion, app.Data); verr != "" {
			return reject(field[*domain.Application]("$.data", verr))
		}

		now := s.now()
		app.SubmittedAt = &now
		app.Document = &in.Document
		switch {
		case app.AP != nil:
			if in.ApType != "" {
				app.AP.ApType = in.ApType
			}
			app.AP.IsWomensApplication = in.IsWomensApplication
			app.AP.IsEmergency = in.IsEmergency
			app.AP.ReleaseType = in.ReleaseType
			app.AP.TargetLocation = in.TargetLocation
			if in.ArrivalDate != nil {
				app.AP.ArrivalDate = in.ArrivalDate
			}
			app.AP.Status = domain.AppStatusSubmitted
		case app.TA != nil:
			if in.ArrivalDate != nil {
				app.TA.ArrivalDate = in.ArrivalDate
			}
			app.TA.IsDutyToReferSubmitted = in.IsDutyToReferSubmitted
		}
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("submit application %s: %w", id, err)
		}

		if err := s.openAssessment(ctx, tx, app, now); err != nil {
			return Outcome[*domain.Application]{}, err
		}

		if app.Service == domain.ServiceCAS1 {
			_, err := s.Events.Emit(ctx, tx, events.Event{
				Type:              domain.EventApplicationSubmitted,
				ApplicationID:     &app.ID,
				CRN:               app.CRN,
				NomsNumber:        app.NomsNumber,
				TriggeredByUserID: &user.ID,
				OccurredAt:        now,
				Details: domain.ApplicationSubmittedDetails{
					ApplicationID:       app.ID,
					ApplicationURL:      s.applicationURL(app.ID),
					PersonReference:     person(app.CRN, app.NomsNumber),
					TargetLocation:      app.AP.TargetLocation,
					ReleaseType:         app.AP.ReleaseType,
					SubmittedAt:         now,
					SubmittedBy:         staff(user),
					IsWomensApplication: app.AP.IsWomensApplication,
				},
			})
			if err != nil {
				return Outcome[*domain.Application]{}, err
			}
		}
		if err := s.Emails.ApplicationSubmitted(ctx, tx, user, app); err != nil {
			return Outcome[*domain.Application]{}, err
		}
		return ok(app), nil
	})
}

// openAssessment creates the first assessment of a submitted application.
// CAS1 assessments go to the first assessor on record; CAS3 ones wait
// unallocated.
func (s *ApplicationService) openAssessment(ctx context.Context, tx repository.Store, app *domain.Application, now time.Time) error {
	schema, err := s.Schemas.NewestFor(assessmentSchemaType(app.Service))
	if err != nil {
		return err
	}
	a := &domain.Assessment{
		ID:            newID(),
		ApplicationID: app.ID,
		Service:       app.Service,
		SchemaVersion: schema.ID,
		CreatedAt:     now,
	}
	switch app.Service {
	case domain.ServiceCAS1:
		assessors, err := tx.ListUsersWithRole(ctx, domain.RoleCAS1Assessor)
		if err != nil {
			return fmt.Errorf("list assessors: %w", err)
		}
		if len(assessors) > 0 {
			a.AllocatedToUserID = &assessors[0].ID
			a.AllocatedAt = &now
		}
	case domain.ServiceCAS3:
		a.ReferralStatus = domain.ReferralUnallocated
	}
	if err := tx.CreateAssessment(ctx, a); err != nil {
		return fmt.Errorf("create assessment for application %s: %w", app.ID, err)
	}
	return nil
}

// Withdraw withdraws a CAS1 application with every placement application
// and request made from it.
func (s *ApplicationService) Withdraw(ctx context.Context, user *domain.User, id, reason string, otherReason *string) (Outcome[*domain.Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Application], error) {
		app, err := lookup(tx.GetApplication(ctx, id))
		if err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("load application %s: %w", id, err)
		}
		if app == nil || app.AP == nil {
			return reject(notFound[*domain.Application]("Application", id))
		}
		if app.CreatedByUserID != user.ID && !user.HasRole(domain.RoleCAS1WorkflowManager) {
			return reject(unauthorised[*domain.Application]())
		}
		if app.IsWithdrawn() {
			return ok(app), nil
		}

		requests, err := tx.ListPlacementRequestsForApplication(ctx, id)
		if err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("list placement requests: %w", err)
		}
		for i := range requests {
			if requests[i].HasBooking() {
				return reject(general[*domain.Application]("The application has bookings and cannot be withdrawn"))
			}
		}

		placementApps, err := tx.ListPlacementApplicationsForApplication(ctx, id)
		if err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("list placement applications: %w", err)
		}
		for i := range placementApps {
			pa := &placementApps[i]
			if pa.IsWithdrawn {
				continue
			}
			pa.IsWithdrawn = true
			pa.WithdrawalReason = ptr(withdrawnWithApplication)
			if err := tx.UpdatePlacementApplication(ctx, pa); err != nil {
				return Outcome[*domain.Application]{}, fmt.Errorf("withdraw placement application %s: %w", pa.ID, err)
			}
		}
		for i := range requests {
			r := &requests[i]
			if r.IsWithdrawn {
				continue
			}
			r.IsWithdrawn = true
			r.WithdrawalReason = ptr(withdrawnWithApplication)
			if err := tx.UpdatePlacementRequest(ctx, r); err != nil {
				return Outcome[*domain.Application]{}, fmt.Errorf("withdraw placement request %s: %w", r.ID, err)
			}
		}

		now := s.now()
		app.AP.IsWithdrawn = true
		app.AP.WithdrawalReason = &reason
		app.AP.WithdrawalOtherReason = otherReason
		app.AP.Status = domain.AppStatusWithdrawn
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return Outcome[*domain.Application]{}, fmt.Errorf("withdraw application %s: %w", id, err)
		}

		_, err = s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventApplicationWithdrawn,
			ApplicationID:     &app.ID,
			CRN:               app.CRN,
			NomsNumber:        app.NomsNumber,
			TriggeredByUserID: &user.ID,
			OccurredAt:        now,
			Details: domain.ApplicationWithdrawnDetails{
				ApplicationID:         app.ID,
				ApplicationURL:        s.applicationURL(app.ID),
				PersonReference:       person(app.CRN, app.NomsNumber),
				WithdrawnAt:           now,
				WithdrawnBy:           staff(user),
				WithdrawalReason:      reason,
				OtherWithdrawalReason: otherReason,
			},
		})
		if err != nil {
			return Outcome[*domain.Application]{}, err
		}
		return ok(app), nil
	})
}

// orRollback keeps infrastructure errors and otherwise marks a failed
// outcome for rollback.
func orRollback(err error) error {
	if err != nil {
		return err
	}
	return errRollback
}
