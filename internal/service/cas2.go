package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// Cas2Submission is the input of Cas2Service.Submit.
type Cas2Submission struct {
	ApplicationID          string
	Document               string
	PreferredAreas         *string
	HDCEligibilityDate     *time.Time
	ConditionalReleaseDate *time.Time
	TelephoneNumber        *string
}

// AllocationChange is a POM allocation moved by offender management.
type AllocationChange struct {
	NomsNumber  string
	PrisonCode  string
	PomUsername string
}

const (
	entityCas2Application = "Cas2Application"
	entityCas2Assessment  = "Cas2Assessment"

	msgAlreadyAbandoned = "This application has already been abandoned"
)

// Cas2Service implements short-term accommodation referrals.
type Cas2Service struct {
	Deps
	access domain.UserAccess
}

// NewCas2Service creates the service.
func NewCas2Service(d Deps) *Cas2Service {
	return &Cas2Service{Deps: d}
}

func (s *Cas2Service) applicationURL(id string) string {
	return strings.TrimRight(s.FrontendURL, "/") + "/cas2/applications/" + id
}

// Create starts a referral for a person in the caller's prison.
func (s *Cas2Service) Create(ctx context.Context, user *domain.User, crn, nomsNumber string) (result.Validatable[*domain.Cas2Application], error) {
	errs := result.ValidationErrors{}
	if strings.TrimSpace(crn) == "" {
		errs.Add("$.crn", errEmpty)
	}
	if strings.TrimSpace(nomsNumber) == "" {
		errs.Add("$.nomsNumber", errEmpty)
	}
	if errs.Any() {
		return result.Fields[*domain.Cas2Application](errs), nil
	}
	schema, err := s.Schemas.NewestFor(jsonschema.TypeCas2Application)
	if err != nil {
		return result.Validatable[*domain.Cas2Application]{}, err
	}
	app := &domain.Cas2Application{
		ID:                  newID(),
		CRN:                 strings.TrimSpace(crn),
		NomsNumber:          strings.TrimSpace(nomsNumber),
		CreatedByUserID:     user.ID,
		SchemaVersion:       schema.ID,
		CreatedAt:           s.now(),
		ReferringPrisonCode: user.PrisonCode,
	}
	if err := s.Store.CreateCas2Application(ctx, app); err != nil {
		return result.Validatable[*domain.Cas2Application]{}, fmt.Errorf("create cas2 application: %w", err)
	}
	return result.Valid(app), nil
}

func (s *Cas2Service) canView(user *domain.User, app *domain.Cas2Application) bool {
	if s.access.CanViewCas2Application(user, app) {
		return true
	}
	return app.SubmittedAt != nil && s.access.CanAssessCas2(user)
}

// GetForUser loads a referral the caller may view.
func (s *Cas2Service) GetForUser(ctx context.Context, user *domain.User, id string) (result.Authorisable[*domain.Cas2Application], error) {
	app, err := lookup(s.Store.GetCas2Application(ctx, id))
	if err != nil {
		return result.Authorisable[*domain.Cas2Application]{}, fmt.Errorf("load cas2 application %s: %w", id, err)
	}
	if app == nil {
		return result.NotFound[*domain.Cas2Application](entityCas2Application, id), nil
	}
	if !s.canView(user, app) {
		return result.Unauthorised[*domain.Cas2Application](), nil
	}
	return result.Success(app), nil
}

// ListForUser lists the caller's referrals, or those of the caller's
// prison when prisonScope is set and the caller is a POM.
func (s *Cas2Service) ListForUser(ctx context.Context, user *domain.User, prisonScope bool) ([]domain.Cas2Application, error) {
	f := repository.Cas2Filter{CreatedByUserID: user.ID}
	if prisonScope && user.HasRole(domain.RoleCAS2POM) && user.PrisonCode != nil {
		f = repository.Cas2Filter{PrisonCode: *user.PrisonCode}
	}
	list, err := s.Store.ListCas2Applications(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list cas2 applications: %w", err)
	}
	return list, nil
}

// StatusUpdates lists the assessor updates of a referral.
func (s *Cas2Service) StatusUpdates(ctx context.Context, applicationID string) ([]domain.Cas2StatusUpdate, error) {
	list, err := s.Store.ListCas2StatusUpdates(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list status updates of %s: %w", applicationID, err)
	}
	return list, nil
}

// guardWritable applies the creator and lifecycle guards in order.
func (s *Cas2Service) guardWritable(user *domain.User, app *domain.Cas2Application, id string) (Outcome[*domain.Cas2Application], bool) {
	switch {
	case app == nil:
		return notFound[*domain.Cas2Application](entityCas2Application, id), false
	case app.CreatedByUserID != user.ID:
		return unauthorised[*domain.Cas2Application](), false
	case app.AbandonedAt != nil:
		return general[*domain.Cas2Application](msgAlreadyAbandoned), false
	case app.SubmittedAt != nil:
		return general[*domain.Cas2Application](msgAlreadySubmitted), false
	case s.Schemas.IsOutdated(jsonschema.TypeCas2Application, app.SchemaVersion):
		return general[*domain.Cas2Application](msgSchemaOutdated), false
	}
	return Outcome[*domain.Cas2Application]{}, true
}

// Update replaces the in-progress data.
func (s *Cas2Service) Update(ctx context.Context, user *domain.User, id, data string) (Outcome[*domain.Cas2Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Cas2Application], error) {
		app, err := lookup(tx.GetCas2Application(ctx, id))
		if err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("load cas2 application %s: %w", id, err)
		}
		if fail, pass := s.guardWritable(user, app, id); !pass {
			return reject(fail)
		}
		app.Data = &data
		if err := tx.UpdateCas2Application(ctx, app); err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("update cas2 application %s: %w", id, err)
		}
		return ok(app), nil
	})
}

// Submit submits a referral. The application row stays write-locked until
// commit so concurrent submissions of the same id run one after another and
// the later one sees the first as submitted.
func (s *Cas2Service) Submit(ctx context.Context, user *domain.User, in Cas2Submission) (Outcome[*domain.Cas2Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Cas2Application], error) {
		app, err := lookup(tx.GetCas2ApplicationForUpdate(ctx, in.ApplicationID))
		if err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("lock cas2 application %s: %w", in.ApplicationID, err)
		}
		if fail, pass := s.guardWritable(user, app, in.ApplicationID); !pass {
			return reject(fail)
		}
		if verr := s.Schemas.Validate(app.SchemaVersion, app.Data); verr != "" {
			return reject(field[*domain.Cas2Application]("$.data", verr))
		}

		now := s.now()
		app.SubmittedAt = &now
		app.Document = &in.Document
		app.PreferredAreas = in.PreferredAreas
		app.HDCEligibilityDate = in.HDCEligibilityDate
		app.ConditionalReleaseDate = in.ConditionalReleaseDate
		app.TelephoneNumber = in.TelephoneNumber
		if app.ReferringPrisonCode == nil {
			app.ReferringPrisonCode = user.PrisonCode
		}
		if err := tx.UpdateCas2Application(ctx, app); err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("submit cas2 application %s: %w", app.ID, err)
		}

		if app.ReferringPrisonCode != nil {
			assignment := domain.Cas2ApplicationAssignment{
				ID:                 newID(),
				ApplicationID:      app.ID,
				PrisonCode:         *app.ReferringPrisonCode,
				AllocatedPomUserID: &user.ID,
				CreatedAt:          now,
			}
			if err := tx.CreateCas2Assignment(ctx, &assignment); err != nil {
				return Outcome[*domain.Cas2Application]{}, fmt.Errorf("assign cas2 application %s: %w", app.ID, err)
			}
			app.Assignments = append(app.Assignments, assignment)
		}

		assessment := &domain.Cas2Assessment{ID: newID(), ApplicationID: app.ID, CreatedAt: now}
		if err := tx.CreateCas2Assessment(ctx, assessment); err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("create cas2 assessment: %w", err)
		}

		details := domain.Cas2ApplicationSubmittedDetails{
			ApplicationID:   app.ID,
			ApplicationURL:  s.applicationURL(app.ID),
			PersonReference: person(app.CRN, &app.NomsNumber),
			SubmittedAt:     now,
			SubmittedBy:     staff(user),
		}
		if app.ReferringPrisonCode != nil {
			details.ReferringPrisonCode = *app.ReferringPrisonCode
		}
		_, err = s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventCas2ApplicationSubmitted,
			ApplicationID:     &app.ID,
			CRN:               app.CRN,
			NomsNumber:        &app.NomsNumber,
			TriggeredByUserID: &user.ID,
			OccurredAt:        now,
			Details:           details,
		})
		if err != nil {
			return Outcome[*domain.Cas2Application]{}, err
		}
		if err := s.Emails.Cas2Submitted(ctx, tx, app); err != nil {
			return Outcome[*domain.Cas2Application]{}, err
		}
		return ok(app), nil
	})
}

// Abandon marks an unsubmitted referral abandoned. Repeating it succeeds.
func (s *Cas2Service) Abandon(ctx context.Context, user *domain.User, id string) (Outcome[*domain.Cas2Application], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Cas2Application], error) {
		app, err := lookup(tx.GetCas2ApplicationForUpdate(ctx, id))
		if err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("lock cas2 application %s: %w", id, err)
		}
		switch {
		case app == nil:
			return reject(notFound[*domain.Cas2Application](entityCas2Application, id))
		case app.CreatedByUserID != user.ID:
			return reject(unauthorised[*domain.Cas2Application]())
		case app.SubmittedAt != nil:
			return reject(general[*domain.Cas2Application](msgAlreadySubmitted))
		case app.AbandonedAt != nil:
			return ok(app), nil
		}
		now := s.now()
		app.AbandonedAt = &now
		if err := tx.UpdateCas2Application(ctx, app); err != nil {
			return Outcome[*domain.Cas2Application]{}, fmt.Errorf("abandon cas2 application %s: %w", id, err)
		}
		return ok(app), nil
	})
}

// CreateStatusUpdate records an external assessor's status and tells the
// referrer.
func (s *Cas2Service) CreateStatusUpdate(ctx context.Context, assessor *domain.User, assessmentID, newStatus string) (Outcome[*domain.Cas2StatusUpdate], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Cas2StatusUpdate], error) {
		if !s.access.CanAssessCas2(assessor) {
			return reject(unauthorised[*domain.Cas2StatusUpdate]())
		}
		a, err := lookup(tx.GetCas2Assessment(ctx, assessmentID))
		if err != nil {
			return Outcome[*domain.Cas2StatusUpdate]{}, fmt.Errorf("load cas2 assessment %s: %w", assessmentID, err)
		}
		if a == nil {
			return reject(notFound[*domain.Cas2StatusUpdate](entityCas2Assessment, assessmentID))
		}
		status, known := domain.FindCas2Status(newStatus)
		if !known {
			return reject(field[*domain.Cas2StatusUpdate]("$.newStatus", errDoesNotExist))
		}
		app, err := tx.GetCas2Application(ctx, a.ApplicationID)
		if err != nil {
			return Outcome[*domain.Cas2StatusUpdate]{}, fmt.Errorf("load cas2 application %s: %w", a.ApplicationID, err)
		}

		now := s.now()
		u := &domain.Cas2StatusUpdate{
			ID:            newID(),
			AssessmentID:  a.ID,
			ApplicationID: app.ID,
			StatusName:    status.Name,
			Label:         status.Label,
			Description:   status.Description,
			AssessorID:    assessor.ID,
			CreatedAt:     now,
		}
		if err := tx.CreateCas2StatusUpdate(ctx, u); err != nil {
			return Outcome[*domain.Cas2StatusUpdate]{}, fmt.Errorf("create cas2 status update: %w", err)
		}

		_, err = s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventCas2StatusUpdated,
			ApplicationID:     &app.ID,
			CRN:               app.CRN,
			NomsNumber:        &app.NomsNumber,
			TriggeredByUserID: &assessor.ID,
			OccurredAt:        now,
			Details: domain.Cas2StatusUpdatedDetails{
				ApplicationID:   app.ID,
				ApplicationURL:  s.applicationURL(app.ID),
				PersonReference: person(app.CRN, &app.NomsNumber),
				NewStatus:       status.Name,
				NewStatusLabel:  status.Label,
				UpdatedAt:       now,
				UpdatedBy:       staff(assessor),
			},
		})
		if err != nil {
			return Outcome[*domain.Cas2StatusUpdate]{}, err
		}

		referrer, err := lookup(tx.GetUser(ctx, app.CreatedByUserID))
		if err != nil {
			return Outcome[*domain.Cas2StatusUpdate]{}, fmt.Errorf("load referrer %s: %w", app.CreatedByUserID, err)
		}
		if referrer != nil {
			if err := s.Emails.Cas2StatusUpdated(ctx, tx, referrer, app, status); err != nil {
				return Outcome[*domain.Cas2StatusUpdate]{}, err
			}
		}
		return ok(u), nil
	})
}

// RecordAllocationChange appends an assignment to the latest referral for
// the NOMS number. It reports false when no referral exists.
func (s *Cas2Service) RecordAllocationChange(ctx context.Context, c AllocationChange) (bool, error) {
	var recorded bool
	err := s.Store.InTx(ctx, func(tx repository.Store) error {
		app, err := lookup(tx.LatestCas2ApplicationByNoms(ctx, c.NomsNumber))
		if err != nil {
			return fmt.Errorf("find cas2 application for %s: %w", c.NomsNumber, err)
		}
		if app == nil {
			return nil
		}
		a := &domain.Cas2ApplicationAssignment{
			ID:            newID(),
			ApplicationID: app.ID,
			PrisonCode:    c.PrisonCode,
			CreatedAt:     s.now(),
		}
		if c.PomUsername != "" {
			pom, err := lookup(tx.GetUserByUsername(ctx, strings.ToUpper(c.PomUsername)))
			if err != nil {
				return fmt.Errorf("load pom %s: %w", c.PomUsername, err)
			}
			if pom != nil {
				a.AllocatedPomUserID = &pom.ID
			} else {
				logger.FromContext(ctx).Warn("Allocated POM is not a known user",
					zap.String("username", c.PomUsername), zap.String("application_id", app.ID))
			}
		}
		if err := tx.CreateCas2Assignment(ctx, a); err != nil {
			return fmt.Errorf("assign cas2 application %s: %w", app.ID, err)
		}
		recorded = true
		return nil
	})
	return recorded, err
}
