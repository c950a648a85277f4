package service

import (
	"context"
	"fmt"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// SpaceDepartureInput records the end of a stay in a space booking.
type SpaceDepartureInput struct {
	DepartedAt       time.Time
	ReasonID         string
	MoveOnCategoryID string
	Notes            *string
}

const entitySpaceBooking = "SpaceBooking"

// SpaceBookingService records what happens to a CAS1 space booking.
type SpaceBookingService struct {
	Deps
	access domain.UserAccess
}

// NewSpaceBookingService creates the service.
func NewSpaceBookingService(d Deps) *SpaceBookingService {
	return &SpaceBookingService{Deps: d}
}

func (s *SpaceBookingService) load(ctx context.Context, store repository.Store, user *domain.User, premisesID, id string) (*domain.Premises, *domain.SpaceBooking, Outcome[*domain.SpaceBooking], error) {
	p, fail, err := loadPremises[*domain.SpaceBooking](ctx, store, s.access, user, premisesID)
	if err != nil || p == nil {
		return nil, nil, fail, err
	}
	sb, err := lookup(store.GetSpaceBooking(ctx, id))
	if err != nil {
		return nil, nil, Outcome[*domain.SpaceBooking]{}, fmt.Errorf("load space booking %s: %w", id, err)
	}
	if sb == nil || sb.PremisesID != p.ID {
		return nil, nil, notFound[*domain.SpaceBooking](entitySpaceBooking, id), nil
	}
	return p, sb, Outcome[*domain.SpaceBooking]{}, nil
}

// Get returns a space booking of a premises.
func (s *SpaceBookingService) Get(ctx context.Context, user *domain.User, premisesID, id string) (result.Authorisable[*domain.SpaceBooking], error) {
	_, sb, fail, err := s.load(ctx, s.Store, user, premisesID, id)
	if err != nil {
		return result.Authorisable[*domain.SpaceBooking]{}, err
	}
	if sb == nil {
		return result.Authorisable[*domain.SpaceBooking]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	return result.Success(sb), nil
}

// mutate runs fn on a loaded space booking, saves it and emits the event
// fn returns.
func (s *SpaceBookingService) mutate(ctx context.Context, user *domain.User, premisesID, id string,
	fn func(p *domain.Premises, sb *domain.SpaceBooking, now time.Time) (Outcome[*domain.SpaceBooking], *events.Event, error),
) (Outcome[*domain.SpaceBooking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.SpaceBooking], error) {
		p, sb, fail, err := s.load(ctx, tx, user, premisesID, id)
		if err != nil || sb == nil {
			return fail, orRollback(err)
		}
		now := s.now()
		out, ev, err := fn(p, sb, now)
		if err != nil {
			return Outcome[*domain.SpaceBooking]{}, err
		}
		if out.Kind != result.AuthSuccess || out.Value.Kind != result.ValidSuccess {
			return reject(out)
		}
		sb.UpdateCanonicalDates()
		if err := tx.UpdateSpaceBooking(ctx, sb); err != nil {
			return Outcome[*domain.SpaceBooking]{}, fmt.Errorf("update space booking %s: %w", sb.ID, err)
		}
		if sb.IsCancelled() {
			if err := releasePlacementRequest(ctx, tx, sb); err != nil {
				return Outcome[*domain.SpaceBooking]{}, err
			}
		}
		if ev != nil {
			ev.ApplicationID = sb.ApplicationID
			ev.BookingID = &sb.ID
			ev.CRN = sb.CRN
			ev.TriggeredByUserID = &user.ID
			ev.OccurredAt = now
			if _, err := s.Events.Emit(ctx, tx, *ev); err != nil {
				return Outcome[*domain.SpaceBooking]{}, err
			}
		}
		return ok(sb), nil
	})
}

// releasePlacementRequest unlinks a cancelled booking from its placement
// request so the request can be matched again or withdrawn. The application
// goes back to awaiting placement.
func releasePlacementRequest(ctx context.Context, tx repository.Store, sb *domain.SpaceBooking) error {
	if sb.PlacementRequestID == nil {
		return nil
	}
	pr, err := lookup(tx.GetPlacementRequest(ctx, *sb.PlacementRequestID))
	if err != nil {
		return fmt.Errorf("load placement request %s: %w", *sb.PlacementRequestID, err)
	}
	if pr == nil || pr.SpaceBookingID == nil || *pr.SpaceBookingID != sb.ID {
		return nil
	}
	pr.SpaceBookingID = nil
	if err := tx.UpdatePlacementRequest(ctx, pr); err != nil {
		return fmt.Errorf("unlink placement request %s: %w", pr.ID, err)
	}
	app, err := lookup(tx.GetApplication(ctx, pr.ApplicationID))
	if err != nil {
		return fmt.Errorf("load application %s: %w", pr.ApplicationID, err)
	}
	if app == nil || app.Status() != domain.AppStatusPlacementAllocated {
		return nil
	}
	app.SetStatus(domain.AppStatusAwaitingPlacement)
	if err := tx.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("update application %s: %w", app.ID, err)
	}
	return nil
}

// RecordArrival sets the actual arrival.
func (s *SpaceBookingService) RecordArrival(ctx context.Context, user *domain.User, premisesID, id string, arrivedAt time.Time) (Outcome[*domain.SpaceBooking], error) {
	return s.mutate(ctx, user, premisesID, id, func(p *domain.Premises, sb *domain.SpaceBooking, now time.Time) (Outcome[*domain.SpaceBooking], *events.Event, error) {
		switch {
		case sb.HasArrival():
			return general[*domain.SpaceBooking](msgHasArrival), nil, nil
		case sb.IsCancelled():
			return general[*domain.SpaceBooking](msgIsCancelled), nil, nil
		case sb.HasNonArrival():
			return general[*domain.SpaceBooking](msgHasNonArrival), nil, nil
		}
		at := arrivedAt.UTC()
		sb.ActualArrivalDate = &at
		return ok(sb), &events.Event{
			Type: domain.EventPersonArrived,
			Details: domain.PersonArrivedDetails{
				ApplicationID:       sb.ApplicationID,
				BookingID:           sb.ID,
				PersonReference:     person(sb.CRN, nil),
				Premises:            premisesRef(p),
				ArrivedAt:           at,
				ExpectedDepartureOn: domain.FormatDate(sb.ExpectedDepartureDate),
				RecordedBy:          staff(user),
			},
		}, nil
	})
}

// RecordDeparture sets the actual departure with its reason.
func (s *SpaceBookingService) RecordDeparture(ctx context.Context, user *domain.User, premisesID, id string, in SpaceDepartureInput) (Outcome[*domain.SpaceBooking], error) {
	return s.mutate(ctx, user, premisesID, id, func(p *domain.Premises, sb *domain.SpaceBooking, now time.Time) (Outcome[*domain.SpaceBooking], *events.Event, error) {
		switch {
		case !sb.HasArrival():
			return general[*domain.SpaceBooking](msgHasNoArrival), nil, nil
		case sb.HasDeparture():
			return general[*domain.SpaceBooking](msgHasDeparture), nil, nil
		}
		errs := result.ValidationErrors{}
		if domain.DateOf(in.DepartedAt).Before(sb.CanonicalArrivalDate) {
			errs.Add("$.departureDate", errBeforeBookingArrivalDate)
		}
		if err := s.requireReference(ctx, errs, domain.KindDepartureReasons, in.ReasonID, "$.reasonId"); err != nil {
			return Outcome[*domain.SpaceBooking]{}, nil, err
		}
		if err := s.requireReference(ctx, errs, domain.KindMoveOnCategories, in.MoveOnCategoryID, "$.moveOnCategoryId"); err != nil {
			return Outcome[*domain.SpaceBooking]{}, nil, err
		}
		if errs.Any() {
			return invalid[*domain.SpaceBooking](errs), nil, nil
		}
		at := in.DepartedAt.UTC()
		sb.ActualDepartureDate = &at
		sb.DepartureReasonID = &in.ReasonID
		sb.DepartureMoveOnCategoryID = &in.MoveOnCategoryID
		sb.DepartureNotes = in.Notes
		return ok(sb), &events.Event{
			Type: domain.EventPersonDeparted,
			Details: domain.PersonDepartedDetails{
				ApplicationID:    sb.ApplicationID,
				BookingID:        sb.ID,
				PersonReference:  person(sb.CRN, nil),
				Premises:         premisesRef(p),
				DepartedAt:       at,
				ReasonID:         in.ReasonID,
				MoveOnCategoryID: in.MoveOnCategoryID,
				RecordedBy:       staff(user),
			},
		}, nil
	})
}

// RecordNonArrival confirms that the person never arrived.
func (s *SpaceBookingService) RecordNonArrival(ctx context.Context, user *domain.User, premisesID, id, reasonID string, notes *string) (Outcome[*domain.SpaceBooking], error) {
	return s.mutate(ctx, user, premisesID, id, func(p *domain.Premises, sb *domain.SpaceBooking, now time.Time) (Outcome[*domain.SpaceBooking], *events.Event, error) {
		switch {
		case sb.HasArrival():
			return general[*domain.SpaceBooking](msgHasArrival), nil, nil
		case sb.HasNonArrival():
			return general[*domain.SpaceBooking](msgHasNonArrival), nil, nil
		case sb.IsCancelled():
			return general[*domain.SpaceBooking](msgIsCancelled), nil, nil
		}
		errs := result.ValidationErrors{}
		if err := s.requireReference(ctx, errs, domain.KindNonArrivalReasons, reasonID, "$.reason"); err != nil {
			return Outcome[*domain.SpaceBooking]{}, nil, err
		}
		if errs.Any() {
			return invalid[*domain.SpaceBooking](errs), nil, nil
		}
		sb.NonArrivalConfirmedAt = &now
		sb.NonArrivalReasonID = &reasonID
		sb.NonArrivalNotes = notes
		return ok(sb), &events.Event{
			Type: domain.EventPersonNotArrived,
			Details: domain.PersonNotArrivedDetails{
				ApplicationID:   sb.ApplicationID,
				BookingID:       sb.ID,
				PersonReference: person(sb.CRN, nil),
				Premises:        premisesRef(p),
				ExpectedArrival: domain.FormatDate(sb.ExpectedArrivalDate),
				ReasonID:        reasonID,
				Notes:           notes,
				RecordedBy:      staff(user),
			},
		}, nil
	})
}

// Cancel cancels a space booking the person has not taken up.
func (s *SpaceBookingService) Cancel(ctx context.Context, user *domain.User, premisesID, id string, in CancellationInput) (Outcome[*domain.SpaceBooking], error) {
	return s.mutate(ctx, user, premisesID, id, func(p *domain.Premises, sb *domain.SpaceBooking, now time.Time) (Outcome[*domain.SpaceBooking], *events.Event, error) {
		switch {
		case sb.HasDeparture():
			return general[*domain.SpaceBooking](msgHasDeparture), nil, nil
		case sb.HasArrival():
			return general[*domain.SpaceBooking](msgArrivedNotCancelable), nil, nil
		case sb.HasNonArrival():
			return general[*domain.SpaceBooking](msgHasNonArrival), nil, nil
		case sb.IsCancelled():
			return general[*domain.SpaceBooking](msgIsCancelled), nil, nil
		}
		errs := result.ValidationErrors{}
		if err := s.requireReference(ctx, errs, domain.KindCancellationReasons, in.ReasonID, "$.reason"); err != nil {
			return Outcome[*domain.SpaceBooking]{}, nil, err
		}
		if errs.Any() {
			return invalid[*domain.SpaceBooking](errs), nil, nil
		}
		occurred := domain.DateOf(in.Date)
		sb.CancellationOccurredAt = &occurred
		sb.CancellationRecordedAt = &now
		sb.CancellationReasonID = &in.ReasonID
		sb.CancellationNotes = in.Notes
		return ok(sb), &events.Event{
			Type: domain.EventBookingCancelled,
			Details: domain.BookingCancelledDetails{
				ApplicationID:   sb.ApplicationID,
				BookingID:       sb.ID,
				PersonReference: person(sb.CRN, nil),
				Premises:        premisesRef(p),
				CancelledAt:     domain.FormatDate(occurred),
				ReasonID:        in.ReasonID,
				CancelledBy:     staff(user),
			},
		}, nil
	})
}
