package service

import (
	"context"
	"fmt"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

const (
	entityPlacementRequest     = "PlacementRequest"
	entityPlacementApplication = "PlacementApplication"

	withdrawnWithApplication          = "RELATED_APPLICATION_WITHDRAWN"
	withdrawnWithPlacementApplication = "RELATED_PLACEMENT_APPLICATION_WITHDRAWN"
)

// NewSpaceBooking is the input of PlacementRequestService.CreateSpaceBooking.
type NewSpaceBooking struct {
	PremisesID    string
	ArrivalDate   time.Time
	DepartureDate time.Time
}

// PlacementRequestService manages requests waiting for a bed.
type PlacementRequestService struct {
	Deps
	access domain.UserAccess
}

// NewPlacementRequestService creates the service.
func NewPlacementRequestService(d Deps) *PlacementRequestService {
	return &PlacementRequestService{Deps: d}
}

func (s *PlacementRequestService) load(ctx context.Context, store repository.Store, user *domain.User, id string) (*domain.PlacementRequest, *domain.Application, Outcome[*domain.PlacementRequest], error) {
	pr, err := lookup(store.GetPlacementRequest(ctx, id))
	if err != nil {
		return nil, nil, Outcome[*domain.PlacementRequest]{}, fmt.Errorf("load placement request %s: %w", id, err)
	}
	if pr == nil {
		return nil, nil, notFound[*domain.PlacementRequest](entityPlacementRequest, id), nil
	}
	app, err := store.GetApplication(ctx, pr.ApplicationID)
	if err != nil {
		return nil, nil, Outcome[*domain.PlacementRequest]{}, fmt.Errorf("load application %s: %w", pr.ApplicationID, err)
	}
	if !s.access.CanMatch(user) && app.CreatedByUserID != user.ID {
		return nil, nil, unauthorised[*domain.PlacementRequest](), nil
	}
	return pr, app, Outcome[*domain.PlacementRequest]{}, nil
}

// GetForUser loads a placement request for a matcher or the applicant.
func (s *PlacementRequestService) GetForUser(ctx context.Context, user *domain.User, id string) (result.Authorisable[*domain.PlacementRequest], error) {
	pr, _, fail, err := s.load(ctx, s.Store, user, id)
	if err != nil {
		return result.Authorisable[*domain.PlacementRequest]{}, err
	}
	if pr == nil {
		return result.Authorisable[*domain.PlacementRequest]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	return result.Success(pr), nil
}

// Withdraw withdraws a request that has no booking. Withdrawing twice
// succeeds without a second event.
func (s *PlacementRequestService) Withdraw(ctx context.Context, user *domain.User, id, reason string) (Outcome[*domain.PlacementRequest], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementRequest], error) {
		pr, app, fail, err := s.load(ctx, tx, user, id)
		if err != nil || pr == nil {
			return fail, orRollback(err)
		}
		if pr.IsWithdrawn {
			return ok(pr), nil
		}
		if pr.HasBooking() {
			return reject(general[*domain.PlacementRequest]("The placement request has a booking and cannot be withdrawn"))
		}
		if err := withdrawPlacementRequest(ctx, tx, s.Events, user, app, pr, reason, s.now()); err != nil {
			return Outcome[*domain.PlacementRequest]{}, err
		}
		return ok(pr), nil
	})
}

func withdrawPlacementRequest(ctx context.Context, tx repository.Store, em *events.Emitter, user *domain.User, app *domain.Application, pr *domain.PlacementRequest, reason string, now time.Time) error {
	pr.IsWithdrawn = true
	pr.WithdrawalReason = &reason
	if err := tx.UpdatePlacementRequest(ctx, pr); err != nil {
		return fmt.Errorf("withdraw placement request %s: %w", pr.ID, err)
	}
	_, err := em.Emit(ctx, tx, events.Event{
		Type:              domain.EventMatchRequestWithdrawn,
		ApplicationID:     &app.ID,
		CRN:               app.CRN,
		NomsNumber:        app.NomsNumber,
		TriggeredByUserID: &user.ID,
		OccurredAt:        now,
		Details: domain.MatchRequestWithdrawnDetails{
			ApplicationID:      app.ID,
			PlacementRequestID: pr.ID,
			PersonReference:    person(app.CRN, app.NomsNumber),
			WithdrawnAt:        now,
			WithdrawnBy:        staff(user),
			WithdrawalReason:   reason,
		},
	})
	return err
}

// CreateSpaceBooking books a space in a CAS1 premises for the request.
func (s *PlacementRequestService) CreateSpaceBooking(ctx context.Context, user *domain.User, id string, in NewSpaceBooking) (Outcome[*domain.SpaceBooking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.SpaceBooking], error) {
		pr, err := lookup(tx.GetPlacementRequest(ctx, id))
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("load placement request %s: %w", id, err)
		}
		if pr == nil {
			return reject(notFound[*domain.SpaceBooking](entityPlacementRequest, id))
		}
		if !s.access.CanMatch(user) {
			return reject(unauthorised[*domain.SpaceBooking]())
		}
		if pr.IsWithdrawn {
			return reject(general[*domain.SpaceBooking]("This placement request has been withdrawn"))
		}
		if pr.HasBooking() {
			return reject(conflict[*domain.SpaceBooking](*pr.SpaceBookingID, "A booking already exists for this placement request"))
		}

		errs := result.ValidationErrors{}
		premises, err := lookup(tx.GetPremises(ctx, in.PremisesID))
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("load premises %s: %w", in.PremisesID, err)
		}
		if premises == nil || premises.Service != domain.ServiceCAS1 {
			errs.Add("$.premisesId", errDoesNotExist)
		}
		arrival, departure := domain.DateOf(in.ArrivalDate), domain.DateOf(in.DepartureDate)
		if departure.Before(arrival) {
			errs.Add("$.departureDate", errShouldBeAfterArrival)
		}
		if errs.Any() {
			return reject(invalid[*domain.SpaceBooking](errs))
		}

		app, err := tx.GetApplication(ctx, pr.ApplicationID)
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("load application %s: %w", pr.ApplicationID, err)
		}

		now := s.now()
		sb := &domain.SpaceBooking{
			ID:                    newID(),
			PremisesID:            premises.ID,
			PlacementRequestID:    &pr.ID,
			ApplicationID:         &app.ID,
			CRN:                   app.CRN,
			CreatedByUserID:       user.ID,
			CreatedAt:             now,
			ExpectedArrivalDate:   arrival,
			ExpectedDepartureDate: departure,
		}
		sb.UpdateCanonicalDates()
		if err := tx.CreateSpaceBooking(ctx, sb); err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("create space booking: %w", err)
		}
		pr.SpaceBookingID = &sb.ID
		if err := tx.UpdatePlacementRequest(ctx, pr); err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("link placement request %s: %w", pr.ID, err)
		}
		app.SetStatus(domain.AppStatusPlacementAllocated)
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("update application %s: %w", app.ID, err)
		}

		_, err = s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventBookingMade,
			ApplicationID:     &app.ID,
			BookingID:         &sb.ID,
			CRN:               app.CRN,
			NomsNumber:        app.NomsNumber,
			TriggeredByUserID: &user.ID,
			OccurredAt:        now,
			Details: domain.BookingMadeDetails{
				ApplicationID:   &app.ID,
				BookingID:       sb.ID,
				PersonReference: person(app.CRN, app.NomsNumber),
				Premises:        premisesRef(premises),
				ArrivalOn:       domain.FormatDate(arrival),
				DepartureOn:     domain.FormatDate(departure),
				BookedAt:        now,
				BookedBy:        staff(user),
			},
		})
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, err
		}

		applicant, err := lookup(tx.GetUser(ctx, app.CreatedByUserID))
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("load applicant %s: %w", app.CreatedByUserID, err)
		}
		if applicant != nil {
			if err := s.Emails.BookingMade(ctx, tx, applicant, app.CRN, premises, sb.Range()); err != nil {
				return Outcome[*domain.SpaceBooking]{}, err
			}
		}
		return ok(sb), nil
	})
}

// PlacementApplicationSubmission is the input of PlacementApplicationService.Submit.
type PlacementApplicationSubmission struct {
	Data          string
	Document      string
	PlacementType string
	Dates         []domain.PlacementDate
}

const (
	msgPlacementNotApproved       = "You cannot request a placement for an application that has not been approved"
	msgPlacementWithdrawn         = "This placement application has been withdrawn"
	msgPlacementNotSubmitted      = "This placement application has not been submitted"
	msgPlacementDecisionTaken     = "A decision has already been taken on this placement application"
	msgPlacementHasBooking        = "The placement application has a booking and cannot be withdrawn"
	msgPlacementAlreadySubmitted  = "This placement application has already been submitted"
)

// PlacementApplicationService manages requests for further placements.
type PlacementApplicationService struct {
	Deps
	access domain.UserAccess
}

// NewPlacementApplicationService creates the service.
func NewPlacementApplicationService(d Deps) *PlacementApplicationService {
	return &PlacementApplicationService{Deps: d}
}

// Create starts a placement application on an accepted CAS1 application.
func (s *PlacementApplicationService) Create(ctx context.Context, user *domain.User, applicationID string) (Outcome[*domain.PlacementApplication], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementApplication], error) {
		app, err := lookup(tx.GetApplication(ctx, applicationID))
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load application %s: %w", applicationID, err)
		}
		if app == nil || app.Service != domain.ServiceCAS1 {
			return reject(notFound[*domain.PlacementApplication]("Application", applicationID))
		}
		if !s.access.CanViewApplication(user, app) {
			return reject(unauthorised[*domain.PlacementApplication]())
		}
		approved, err := s.isApproved(ctx, tx, app.ID)
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, err
		}
		if !approved {
			return reject(general[*domain.PlacementApplication](msgPlacementNotApproved))
		}

		schema, err := s.Schemas.NewestFor(jsonschema.TypePlacementApplication)
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, err
		}
		pa := &domain.PlacementApplication{
			ID:              newID(),
			ApplicationID:   app.ID,
			CreatedByUserID: user.ID,
			SchemaVersion:   schema.ID,
			CreatedAt:       s.now(),
		}
		if err := tx.CreatePlacementApplication(ctx, pa); err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("create placement application: %w", err)
		}
		return ok(pa), nil
	})
}

// isApproved reports whether the latest requirements of the application
// come from an accepted assessment.
func (s *PlacementApplicationService) isApproved(ctx context.Context, tx repository.Store, applicationID string) (bool, error) {
	req, err := lookup(tx.LatestPlacementRequirements(ctx, applicationID))
	if err != nil {
		return false, fmt.Errorf("load placement requirements of %s: %w", applicationID, err)
	}
	if req == nil {
		return false, nil
	}
	a, err := lookup(tx.GetAssessment(ctx, req.AssessmentID))
	if err != nil {
		return false, fmt.Errorf("load assessment %s: %w", req.AssessmentID, err)
	}
	return a != nil && a.Decision != nil && *a.Decision == domain.DecisionAccepted, nil
}

// loadOwned applies the guards shared by Update and Submit.
func (s *PlacementApplicationService) loadOwned(ctx context.Context, tx repository.Store, user *domain.User, id string) (*domain.PlacementApplication, Outcome[*domain.PlacementApplication], error) {
	pa, err := lookup(tx.GetPlacementApplication(ctx, id))
	if err != nil {
		return nil, Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load placement application %s: %w", id, err)
	}
	switch {
	case pa == nil:
		return nil, notFound[*domain.PlacementApplication](entityPlacementApplication, id), nil
	case pa.CreatedByUserID != user.ID:
		return nil, unauthorised[*domain.PlacementApplication](), nil
	case pa.IsWithdrawn:
		return nil, general[*domain.PlacementApplication](msgPlacementWithdrawn), nil
	case pa.SubmittedAt != nil:
		return nil, general[*domain.PlacementApplication](msgPlacementAlreadySubmitted), nil
	case s.Schemas.IsOutdated(jsonschema.TypePlacementApplication, pa.SchemaVersion):
		return nil, general[*domain.PlacementApplication](msgSchemaOutdated), nil
	}
	return pa, Outcome[*domain.PlacementApplication]{}, nil
}

// Update replaces the in-progress data.
func (s *PlacementApplicationService) Update(ctx context.Context, user *domain.User, id, data string) (Outcome[*domain.PlacementApplication], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementApplication], error) {
		pa, fail, err := s.loadOwned(ctx, tx, user, id)
		if err != nil || pa == nil {
			return fail, orRollback(err)
		}
		pa.Data = &data
		if err := tx.UpdatePlacementApplication(ctx, pa); err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("update placement application %s: %w", id, err)
		}
		return ok(pa), nil
	})
}

// Submit validates and submits the placement application with its dates.
func (s *PlacementApplicationService) Submit(ctx context.Context, user *domain.User, id string, in PlacementApplicationSubmission) (Outcome[*domain.PlacementApplication], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementApplication], error) {
		pa, fail, err := s.loadOwned(ctx, tx, user, id)
		if err != nil || pa == nil {
			return fail, orRollback(err)
		}

		errs := result.ValidationErrors{}
		if verr := s.Schemas.Validate(pa.SchemaVersion, &in.Data); verr != "" {
			errs.Add("$.data", verr)
		}
		placementType, valid := domain.ParsePlacementType(in.PlacementType)
		if !valid {
			errs.Add("$.placementType", errInvalid)
		}
		if len(in.Dates) == 0 {
			errs.Add("$.placementDates", errEmpty)
		}
		for _, d := range in.Dates {
			if d.Duration <= 0 {
				errs.Add("$.placementDates", errMustBePositive)
			}
		}
		if errs.Any() {
			return reject(invalid[*domain.PlacementApplication](errs))
		}

		now := s.now()
		pa.Data = &in.Data
		pa.Document = &in.Document
		pa.PlacementType = &placementType
		pa.Dates = make([]domain.PlacementDate, 0, len(in.Dates))
		for _, d := range in.Dates {
			pa.Dates = append(pa.Dates, domain.PlacementDate{ExpectedArrival: domain.DateOf(d.ExpectedArrival), Duration: d.Duration})
		}
		pa.SubmittedAt = &now
		if err := tx.UpdatePlacementApplication(ctx, pa); err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("submit placement application %s: %w", id, err)
		}
		return ok(pa), nil
	})
}

// RecordDecision stores the assessor's decision. Acceptance creates one
// placement request per requested date using the application's latest
// requirements.
func (s *PlacementApplicationService) RecordDecision(ctx context.Context, user *domain.User, id, decision string) (Outcome[*domain.PlacementApplication], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementApplication], error) {
		pa, err := lookup(tx.GetPlacementApplication(ctx, id))
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load placement application %s: %w", id, err)
		}
		if pa == nil {
			return reject(notFound[*domain.PlacementApplication](entityPlacementApplication, id))
		}
		if !user.HasAnyRole(domain.RoleCAS1Assessor, domain.RoleCAS1WorkflowManager) {
			return reject(unauthorised[*domain.PlacementApplication]())
		}
		switch {
		case pa.IsWithdrawn:
			return reject(general[*domain.PlacementApplication](msgPlacementWithdrawn))
		case pa.SubmittedAt == nil:
			return reject(general[*domain.PlacementApplication](msgPlacementNotSubmitted))
		case pa.Decision != nil:
			return reject(general[*domain.PlacementApplication](msgPlacementDecisionTaken))
		}
		d := domain.PlacementApplicationDecision(decision)
		if d != domain.PlacementDecisionAccepted && d != domain.PlacementDecisionRejected {
			return reject(field[*domain.PlacementApplication]("$.decision", errInvalid))
		}

		now := s.now()
		pa.Decision = &d
		pa.DecisionMadeAt = &now
		if err := tx.UpdatePlacementApplication(ctx, pa); err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("record decision on %s: %w", id, err)
		}
		if d != domain.PlacementDecisionAccepted {
			return ok(pa), nil
		}

		req, err := tx.LatestPlacementRequirements(ctx, pa.ApplicationID)
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load placement requirements of %s: %w", pa.ApplicationID, err)
		}
		for _, date := range pa.Dates {
			pr := domain.PlacementRequest{
				ID:                      newID(),
				ApplicationID:           pa.ApplicationID,
				AssessmentID:            req.AssessmentID,
				PlacementRequirementsID: req.ID,
				PlacementApplicationID:  &pa.ID,
				ExpectedArrival:         date.ExpectedArrival,
				Duration:                date.Duration,
				CreatedAt:               now,
			}
			if err := tx.CreatePlacementRequest(ctx, &pr); err != nil {
				return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("create placement request: %w", err)
			}
			pa.PlacementRequests = append(pa.PlacementRequests, pr)
		}
		return ok(pa), nil
	})
}

// Withdraw withdraws the placement application with its requests.
func (s *PlacementApplicationService) Withdraw(ctx context.Context, user *domain.User, id, reason string) (Outcome[*domain.PlacementApplication], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.PlacementApplication], error) {
		pa, err := lookup(tx.GetPlacementApplication(ctx, id))
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load placement application %s: %w", id, err)
		}
		if pa == nil {
			return reject(notFound[*domain.PlacementApplication](entityPlacementApplication, id))
		}
		if !s.access.CanManagePlacementApplication(user, pa) {
			return reject(unauthorised[*domain.PlacementApplication]())
		}
		if pa.IsWithdrawn {
			return ok(pa), nil
		}
		if !pa.CanBeWithdrawn() {
			return reject(general[*domain.PlacementApplication](msgPlacementHasBooking))
		}

		app, err := tx.GetApplication(ctx, pa.ApplicationID)
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("load application %s: %w", pa.ApplicationID, err)
		}
		now := s.now()
		for i := range pa.PlacementRequests {
			pr := &pa.PlacementRequests[i]
			if pr.IsWithdrawn {
				continue
			}
			if err := withdrawPlacementRequest(ctx, tx, s.Events, user, app, pr, withdrawnWithPlacementApplication, now); err != nil {
				return Outcome[*domain.PlacementApplication]{}, err
			}
		}

		pa.IsWithdrawn = true
		pa.WithdrawalReason = &reason
		if err := tx.UpdatePlacementApplication(ctx, pa); err != nil {
			return Outcome[*domain.PlacementApplication]{}, fmt.Errorf("withdraw placement application %s: %w", id, err)
		}
		_, err = s.Events.Emit(ctx, tx, events.Event{
			Type:              domain.EventPlacementApplicationWithdrawn,
			ApplicationID:     &app.ID,
			CRN:               app.CRN,
			NomsNumber:        app.NomsNumber,
			TriggeredByUserID: &user.ID,
			OccurredAt:        now,
			Details: domain.PlacementApplicationWithdrawnDetails{
				ApplicationID:          app.ID,
				PlacementApplicationID: pa.ID,
				PersonReference:        person(app.CRN, app.NomsNumber),
				WithdrawnAt:            now,
				WithdrawnBy:            staff(user),
				WithdrawalReason:       reason,
			},
		})
		if err != nil {
			return Outcome[*domain.PlacementApplication]{}, err
		}
		return ok(pa), nil
	})
}
