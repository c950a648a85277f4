package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// RequirementsInput are the matching criteria captured on acceptance.
type RequirementsInput struct {
	Gender            domain.Gender
	ApType            domain.ApType
	PostcodeDistrict  string
	Radius            int
	EssentialCriteria []string
	DesirableCriteria []string
}

// AssessmentAcceptance is the input of AssessmentService.Accept.
type AssessmentAcceptance struct {
	Data           string
	Requirements   RequirementsInput
	PlacementDates *domain.PlacementDate
	Notes          *string
}

const (
	msgDecisionTaken        = "A decision has already been taken on this assessment"
	msgReallocatedReadOnly  = "The application has been reallocated, this assessment is read only"
	msgAssessmentCompleted  = "This assessment has already been completed"
	msgAlreadyReallocated   = "This assessment has already been reallocated"
	entityAssessment        = "Assessment"
	entityClarificationNote = "ClarificationNote"
)

// AssessmentService implements assessment decisions and their bookkeeping.
type AssessmentService struct {
	Deps
	access domain.UserAccess
}

// NewAssessmentService creates the service.
func NewAssessmentService(d Deps) *AssessmentService {
	return &AssessmentService{Deps: d}
}

func (s *AssessmentService) applicationURL(id string) string {
	return strings.TrimRight(s.FrontendURL, "/") + "/applications/" + id
}

func (s *AssessmentService) assessmentURL(id string) string {
	return strings.TrimRight(s.FrontendURL, "/") + "/assessments/" + id
}

// load returns the assessment and its application, or the failed gate.
func (s *AssessmentService) load(ctx context.Context, store repository.Store, user *domain.User, id string) (*domain.Assessment, *domain.Application, Outcome[*domain.Assessment], error) {
	a, err := lookup(store.GetAssessment(ctx, id))
	if err != nil {
		return nil, nil, Outcome[*domain.Assessment]{}, fmt.Errorf("load assessment %s: %w", id, err)
	}
	if a == nil {
		return nil, nil, notFound[*domain.Assessment](entityAssessment, id), nil
	}
	app, err := store.GetApplication(ctx, a.ApplicationID)
	if err != nil {
		return nil, nil, Outcome[*domain.Assessment]{}, fmt.Errorf("load application %s: %w", a.ApplicationID, err)
	}
	if !s.access.CanViewAssessment(user, a, app) {
		return nil, nil, unauthorised[*domain.Assessment](), nil
	}
	return a, app, Outcome[*domain.Assessment]{}, nil
}

// loadWritable applies the guards shared by every write, in order.
func (s *AssessmentService) loadWritable(ctx context.Context, tx repository.Store, user *domain.User, id string) (*domain.Assessment, *domain.Application, Outcome[*domain.Assessment], error) {
	a, app, fail, err := s.load(ctx, tx, user, id)
	if err != nil || a == nil {
		return nil, nil, fail, err
	}
	switch {
	case s.Schemas.IsOutdated(assessmentSchemaType(a.Service), a.SchemaVersion):
		return nil, nil, general[*domain.Assessment](msgSchemaOutdated), nil
	case a.HasDecision():
		return nil, nil, general[*domain.Assessment](msgDecisionTaken), nil
	case a.IsReallocated():
		return nil, nil, general[*domain.Assessment](msgReallocatedReadOnly), nil
	}
	return a, app, Outcome[*domain.Assessment]{}, nil
}

// loadForDecision adds data validation to loadWritable.
func (s *AssessmentService) loadForDecision(ctx context.Context, tx repository.Store, user *domain.User, id, data string) (*domain.Assessment, *domain.Application, Outcome[*domain.Assessment], error) {
	a, app, fail, err := s.loadWritable(ctx, tx, user, id)
	if err != nil || a == nil {
		return nil, nil, fail, err
	}
	if verr := s.Schemas.Validate(a.SchemaVersion, &data); verr != "" {
		return nil, nil, field[*domain.Assessment]("$.data", verr), nil
	}
	a.Data = &data
	return a, app, Outcome[*domain.Assessment]{}, nil
}

// GetForUser loads an assessment the caller may view.
func (s *AssessmentService) GetForUser(ctx context.Context, user *domain.User, id string) (result.Authorisable[*domain.Assessment], error) {
	a, _, fail, err := s.load(ctx, s.Store, user, id)
	if err != nil {
		return result.Authorisable[*domain.Assessment]{}, err
	}
	if a == nil {
		return result.Authorisable[*domain.Assessment]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	return result.Success(a), nil
}

// ListForUser lists the live assessments of service visible to the caller.
func (s *AssessmentService) ListForUser(ctx context.Context, user *domain.User, service domain.ServiceName) ([]domain.Assessment, error) {
	f := repository.AssessmentFilter{Service: service}
	switch service {
	case domain.ServiceCAS1:
		if !user.HasRole(domain.RoleCAS1WorkflowManager) {
			f.AllocatedToUserID = user.ID
		}
	case domain.ServiceCAS3:
		if !user.HasRole(domain.RoleCAS3Assessor) || user.ProbationRegionID == nil {
			return nil, nil
		}
		f.ProbationRegionID = *user.ProbationRegionID
	default:
		return nil, nil
	}
	list, err := s.Store.ListAssessments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return list, nil
}

// Update saves in-progress assessment data.
func (s *AssessmentService) Update(ctx context.Context, user *domain.User, id, data string) (Outcome[*domain.Assessment], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Assessment], error) {
		a, _, fail, err := s.loadWritable(ctx, tx, user, id)
		if err != nil || a == nil {
			return fail, orRollback(err)
		}
		a.Data = &data
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("update assessment %s: %w", id, err)
		}
		return ok(a), nil
	})
}

// Accept records a positive decision. For CAS1 it captures the placement
// requirements and, when dates are given, the first placement request.
func (s *AssessmentService) Accept(ctx context.Context, user *domain.User, id string, in AssessmentAcceptance) (Outcome[*domain.Assessment], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Assessment], error) {
		a, app, fail, err := s.loadForDecision(ctx, tx, user, id, in.Data)
		if err != nil || a == nil {
			return fail, orRollback(err)
		}

		now := s.now()
		a.Decision = ptr(domain.DecisionAccepted)
		a.SubmittedAt = &now
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("accept assessment %s: %w", id, err)
		}

		var placementRequestID *string
		switch a.Service {
		case domain.ServiceCAS1:
			req, errs, err := s.createRequirements(ctx, tx, a, in.Requirements, now)
			if err != nil {
				return Outcome[*domain.Assessment]{}, err
			}
			if errs.Any() {
				return reject(invalid[*domain.Assessment](errs))
			}
			if in.PlacementDates != nil {
				pr := &domain.PlacementRequest{
					ID:                      newID(),
					ApplicationID:           app.ID,
					AssessmentID:            a.ID,
					PlacementRequirementsID: req.ID,
					ExpectedArrival:         domain.DateOf(in.PlacementDates.ExpectedArrival),
					Duration:                in.PlacementDates.Duration,
					Notes:                   in.Notes,
					CreatedAt:               now,
				}
				if err := tx.CreatePlacementRequest(ctx, pr); err != nil {
					return Outcome[*domain.Assessment]{}, fmt.Errorf("create placement request: %w", err)
				}
				placementRequestID = &pr.ID
			}
			app.SetStatus(domain.AppStatusAwaitingPlacement)
			if err := tx.UpdateApplication(ctx, app); err != nil {
				return Outcome[*domain.Assessment]{}, fmt.Errorf("update application %s: %w", app.ID, err)
			}
		case domain.ServiceCAS3:
			if err := s.changeReferralStatus(ctx, tx, user, a, domain.ReferralReadyToPlace, now); err != nil {
				return Outcome[*domain.Assessment]{}, err
			}
		}

		if err := s.decided(ctx, tx, user, a, app, now, "", placementRequestID, in.PlacementDates); err != nil {
			return Outcome[*domain.Assessment]{}, err
		}
		return ok(a), nil
	})
}

func (s *AssessmentService) createRequirements(ctx context.Context, tx repository.Store, a *domain.Assessment, in RequirementsInput, now time.Time) (*domain.PlacementRequirements, result.ValidationErrors, error) {
	errs := result.ValidationErrors{}
	district, err := s.Reference.PostcodeDistrict(ctx, in.PostcodeDistrict)
	if err != nil {
		return nil, nil, err
	}
	if district == nil {
		errs.Add("$.postcodeDistrict", errDoesNotExist)
	}
	for _, id := range in.EssentialCriteria {
		found, err := s.Reference.Exists(ctx, domain.KindCharacteristics, id)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			errs.Add("$.essentialCriteria", errDoesNotExist)
			break
		}
	}
	for _, id := range in.DesirableCriteria {
		found, err := s.Reference.Exists(ctx, domain.KindCharacteristics, id)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			errs.Add("$.desirableCriteria", errDoesNotExist)
			break
		}
	}
	if in.Radius <= 0 {
		errs.Add("$.radius", errMustBePositive)
	}
	if errs.Any() {
		return nil, errs, nil
	}

	req := &domain.PlacementRequirements{
		ID:                 newID(),
		ApplicationID:      a.ApplicationID,
		AssessmentID:       a.ID,
		Gender:             in.Gender,
		ApType:             in.ApType,
		PostcodeDistrictID: district.ID,
		Radius:             in.Radius,
		EssentialCriteria:  in.EssentialCriteria,
		DesirableCriteria:  in.DesirableCriteria,
		CreatedAt:          now,
	}
	if err := tx.CreatePlacementRequirements(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("create placement requirements: %w", err)
	}
	return req, nil, nil
}

// Reject records a negative decision.
func (s *AssessmentService) Reject(ctx context.Context, user *domain.User, id, data, rationale string) (Outcome[*domain.Assessment], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Assessment], error) {
		a, app, fail, err := s.loadForDecision(ctx, tx, user, id, data)
		if err != nil || a == nil {
			return fail, orRollback(err)
		}

		now := s.now()
		a.Decision = ptr(domain.DecisionRejected)
		a.RejectionRationale = &rationale
		a.SubmittedAt = &now
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("reject assessment %s: %w", id, err)
		}

		switch a.Service {
		case domain.ServiceCAS1:
			app.SetStatus(domain.AppStatusRejected)
			if err := tx.UpdateApplication(ctx, app); err != nil {
				return Outcome[*domain.Assessment]{}, fmt.Errorf("update application %s: %w", app.ID, err)
			}
		case domain.ServiceCAS3:
			if err := s.changeReferralStatus(ctx, tx, user, a, domain.ReferralRejected, now); err != nil {
				return Outcome[*domain.Assessment]{}, err
			}
		}

		if err := s.decided(ctx, tx, user, a, app, now, rationale, nil, nil); err != nil {
			return Outcome[*domain.Assessment]{}, err
		}
		return ok(a), nil
	})
}

// decided emits application.assessed for CAS1 and emails the applicant.
func (s *AssessmentService) decided(ctx context.Context, tx repository.Store, user *domain.User, a *domain.Assessment, app *domain.Application, now time.Time, rationale string, placementRequestID *string, dates *domain.PlacementDate) error {
	if a.Service == domain.ServiceCAS1 {
		details := domain.ApplicationAssessedDetails{
			ApplicationID:      app.ID,
			ApplicationURL:     s.applicationURL(app.ID),
			PersonReference:    person(app.CRN, app.NomsNumber),
			AssessedAt:         now,
			AssessedBy:         staff(user),
			Decision:           string(*a.Decision),
			DecisionRationale:  rationale,
			PlacementRequestID: placementRequestID,
		}
		if dates != nil {
			details.ArrivalDate = ptr(domain.FormatDate(dates.ExpectedArrival))
		}
		_, err := s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventApplicationAssessed,
			ApplicationID:     &app.ID,
			AssessmentID:      &a.ID,
			CRN:               app.CRN,
			NomsNumber:        app.NomsNumber,
			TriggeredByUserID: &user.ID,
			OccurredAt:        now,
			Details:           details,
		})
		if err != nil {
			return err
		}
	}

	applicant, err := lookup(tx.GetUser(ctx, app.CreatedByUserID))
	if err != nil {
		return fmt.Errorf("load applicant %s: %w", app.CreatedByUserID, err)
	}
	if applicant == nil {
		return nil
	}
	return s.Emails.AssessmentDecided(ctx, tx, applicant, app, *a.Decision)
}

// Reallocate hands an undecided assessment to another assessor. The old
// assessment becomes read-only and a copy is allocated to the assignee.
func (s *AssessmentService) Reallocate(ctx context.Context, user *domain.User, id, assigneeID string) (Outcome[*domain.Assessment], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Assessment], error) {
		a, err := lookup(tx.GetAssessment(ctx, id))
		if err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("load assessment %s: %w", id, err)
		}
		if a == nil {
			return reject(notFound[*domain.Assessment](entityAssessment, id))
		}
		app, err := tx.GetApplication(ctx, a.ApplicationID)
		if err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("load application %s: %w", a.ApplicationID, err)
		}

		assessorRole := domain.RoleCAS1Assessor
		permitted := user.HasRole(domain.RoleCAS1WorkflowManager)
		if a.Service == domain.ServiceCAS3 {
			assessorRole = domain.RoleCAS3Assessor
			permitted = user.HasRole(domain.RoleCAS3Assessor) && user.InRegion(app.ProbationRegionID())
		}
		if !permitted {
			return reject(unauthorised[*domain.Assessment]())
		}
		if a.HasDecision() {
			return reject(general[*domain.Assessment](msgAssessmentCompleted))
		}
		if a.IsReallocated() {
			return reject(general[*domain.Assessment](msgAlreadyReallocated))
		}

		assignee, err := lookup(tx.GetUser(ctx, assigneeID))
		if err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("load assignee %s: %w", assigneeID, err)
		}
		if assignee == nil {
			return reject(field[*domain.Assessment]("$.userId", errDoesNotExist))
		}
		if !assignee.HasRole(assessorRole) {
			return reject(field[*domain.Assessment]("$.userId", errLackingAssessorRole))
		}

		now := s.now()
		a.ReallocatedAt = &now
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("reallocate assessment %s: %w", id, err)
		}
		next := &domain.Assessment{
			ID:                newID(),
			ApplicationID:     a.ApplicationID,
			Service:           a.Service,
			AllocatedToUserID: &assignee.ID,
			AllocatedAt:       &now,
			SchemaVersion:     a.SchemaVersion,
			Data:              a.Data,
			CreatedAt:         now,
			ReferralStatus:    a.ReferralStatus,
		}
		if err := tx.CreateAssessment(ctx, next); err != nil {
			return Outcome[*domain.Assessment]{}, fmt.Errorf("create reallocated assessment: %w", err)
		}

		if a.Service == domain.ServiceCAS1 {
			by := staff(user)
			_, err := s.Events.Emit(ctx, tx, events.Event{
				Type:              domain.EventAssessmentAllocated,
				ApplicationID:     &app.ID,
				AssessmentID:      &next.ID,
				CRN:               app.CRN,
				NomsNumber:        app.NomsNumber,
				TriggeredByUserID: &user.ID,
				OccurredAt:        now,
				Details: domain.AssessmentAllocatedDetails{
					AssessmentID:    next.ID,
					AssessmentURL:   s.assessmentURL(next.ID),
					PersonReference: person(app.CRN, app.NomsNumber),
					AllocatedAt:     now,
					AllocatedTo:     staff(assignee),
					AllocatedBy:     &by,
				},
			})
			if err != nil {
				return Outcome[*domain.Assessment]{}, err
			}
		}
		return ok(next), nil
	})
}

// AddClarificationNote raises a question on an assessment.
func (s *AssessmentService) AddClarificationNote(ctx context.Context, user *domain.User, id, query string) (Outcome[*domain.ClarificationNote], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.ClarificationNote], error) {
		a, _, fail, err := s.load(ctx, tx, user, id)
		if err != nil || a == nil {
			return recastGate[*domain.ClarificationNote](fail), orRollback(err)
		}
		if strings.TrimSpace(query) == "" {
			return reject(field[*domain.ClarificationNote]("$.query", errEmpty))
		}
		n := &domain.ClarificationNote{
			ID:              newID(),
			AssessmentID:    a.ID,
			CreatedByUserID: user.ID,
			Query:           query,
			CreatedAt:       s.now(),
		}
		if err := tx.CreateClarificationNote(ctx, n); err != nil {
			return Outcome[*domain.ClarificationNote]{}, fmt.Errorf("create clarification note: %w", err)
		}
		return ok(n), nil
	})
}

// UpdateClarificationNote records the response to a question.
func (s *AssessmentService) UpdateClarificationNote(ctx context.Context, user *domain.User, id, noteID, response string, receivedOn time.Time) (Outcome[*domain.ClarificationNote], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.ClarificationNote], error) {
		a, _, fail, err := s.load(ctx, tx, user, id)
		if err != nil || a == nil {
			return recastGate[*domain.ClarificationNote](fail), orRollback(err)
		}
		var note *domain.ClarificationNote
		for i := range a.ClarificationNotes {
			if a.ClarificationNotes[i].ID == noteID {
				note = &a.ClarificationNotes[i]
			}
		}
		if note == nil {
			return reject(notFound[*domain.ClarificationNote](entityClarificationNote, noteID))
		}
		if strings.TrimSpace(response) == "" {
			return reject(field[*domain.ClarificationNote]("$.response", errEmpty))
		}
		note.Response = &response
		day := domain.DateOf(receivedOn)
		note.ResponseReceivedOn = &day
		if err := tx.UpdateClarificationNote(ctx, note); err != nil {
			return Outcome[*domain.ClarificationNote]{}, fmt.Errorf("update clarification note %s: %w", noteID, err)
		}
		return ok(note), nil
	})
}

// UpdateReferralStatus moves a CAS3 assessment along its referral workflow.
func (s *AssessmentService) UpdateReferralStatus(ctx context.Context, user *domain.User, id, status string) (Outcome[*domain.Assessment], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Assessment], error) {
		a, _, fail, err := s.load(ctx, tx, user, id)
		if err != nil || a == nil {
			return fail, orRollback(err)
		}
		if a.Service != domain.ServiceCAS3 {
			return reject(notFound[*domain.Assessment](entityAssessment, id))
		}
		next, valid := domain.ParseReferralStatus(status)
		if !valid {
			return reject(field[*domain.Assessment]("$.status", errInvalid))
		}
		if !a.ReferralStatus.CanTransitionTo(next) {
			return reject(general[*domain.Assessment](fmt.Sprintf("Cannot change referral status from %s to %s", a.ReferralStatus, next)))
		}

		now := s.now()
		switch next {
		case domain.ReferralInReview:
			if a.ReferralStatus == domain.ReferralUnallocated {
				a.AllocatedToUserID = &user.ID
				a.AllocatedAt = &now
			}
		case domain.ReferralUnallocated:
			a.AllocatedToUserID = nil
			a.AllocatedAt = nil
		}
		if err := s.changeReferralStatus(ctx, tx, user, a, next, now); err != nil {
			return Outcome[*domain.Assessment]{}, err
		}
		return ok(a), nil
	})
}

// changeReferralStatus stores a new CAS3 status with its history row.
func (s *AssessmentService) changeReferralStatus(ctx context.Context, tx repository.Store, user *domain.User, a *domain.Assessment, next domain.ReferralStatus, now time.Time) error {
	change := &domain.AssessmentStatusChange{
		ID:              newID(),
		AssessmentID:    a.ID,
		FromStatus:      a.ReferralStatus,
		ToStatus:        next,
		ChangedByUserID: user.ID,
		CreatedAt:       now,
	}
	a.ReferralStatus = next
	if err := tx.UpdateAssessment(ctx, a); err != nil {
		return fmt.Errorf("update referral status of %s: %w", a.ID, err)
	}
	if err := tx.CreateAssessmentStatusChange(ctx, change); err != nil {
		return fmt.Errorf("record referral status change of %s: %w", a.ID, err)
	}
	return nil
}

// recastGate carries a failed gate over to another value type.
func recastGate[U, T any](o Outcome[T]) Outcome[U] {
	if o.Kind != result.AuthSuccess {
		return result.Authorisable[result.Validatable[U]]{Kind: o.Kind, EntityType: o.EntityType, ID: o.ID}
	}
	return result.Nested(result.Recast[U](o.Value))
}
