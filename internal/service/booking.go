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

// NewBooking is the input of BookingService.Create.
type NewBooking struct {
	CRN           string
	NomsNumber    *string
	ArrivalDate   time.Time
	DepartureDate time.Time
	BedID         *string
	EventNumber   *string
}

// ArrivalInput records that the person arrived.
type ArrivalInput struct {
	ArrivalDate           time.Time
	ExpectedDepartureDate time.Time
	Notes                 *string
}

// DepartureInput records that the person left.
type DepartureInput struct {
	DateTime         time.Time
	ReasonID         string
	MoveOnCategoryID string
	Notes            *string
}

// NonArrivalInput records that the person never arrived.
type NonArrivalInput struct {
	Date     time.Time
	ReasonID string
	Notes    *string
}

// CancellationInput cancels a booking.
type CancellationInput struct {
	Date     time.Time
	ReasonID string
	Notes    *string
}

// ExtensionInput moves the departure date.
type ExtensionInput struct {
	NewDepartureDate time.Time
	Notes            *string
}

const (
	entityPremises = "Premises"
	entityBooking  = "Booking"

	msgHasArrival           = "This Booking already has an Arrival set"
	msgHasNoArrival         = "This Booking has no Arrival"
	msgHasDeparture         = "This Booking already has a Departure set"
	msgHasNonArrival        = "This Booking already has a Non Arrival set"
	msgIsCancelled          = "This Booking is cancelled"
	msgHasConfirmation      = "This Booking already has a Confirmation set"
	msgArrivedNotCancelable = "This Booking has an Arrival set and cannot be cancelled"
	msgConfirmationCAS3Only = "Confirmations are only recorded for temporary accommodation bookings"
)

func bookingConflictMessage(r domain.DateRange) string {
	return fmt.Sprintf("A Booking already exists for dates from %s to %s which overlaps with the desired dates",
		domain.FormatDate(r.Start), domain.FormatDate(r.End))
}

func outOfServiceConflictMessage(r domain.DateRange) string {
	return fmt.Sprintf("An out-of-service bed record exists for dates from %s to %s which overlaps with the desired dates",
		domain.FormatDate(r.Start), domain.FormatDate(r.End))
}

// BookingService manages legacy CAS1 and CAS3 bookings.
type BookingService struct {
	Deps
	access domain.UserAccess
}

// NewBookingService creates the service.
func NewBookingService(d Deps) *BookingService {
	return &BookingService{Deps: d}
}

// loadPremises returns the premises the caller may manage.
func loadPremises[T any](ctx context.Context, store repository.Store, access domain.UserAccess, user *domain.User, premisesID string) (*domain.Premises, Outcome[T], error) {
	p, err := lookup(store.GetPremises(ctx, premisesID))
	if err != nil {
		return nil, Outcome[T]{}, fmt.Errorf("load premises %s: %w", premisesID, err)
	}
	if p == nil {
		return nil, notFound[T](entityPremises, premisesID), nil
	}
	if !access.CanManagePremisesBookings(user, p) {
		return nil, unauthorised[T](), nil
	}
	return p, Outcome[T]{}, nil
}

func (s *BookingService) load(ctx context.Context, store repository.Store, user *domain.User, premisesID, bookingID string) (*domain.Premises, *domain.Booking, Outcome[*domain.Booking], error) {
	p, fail, err := loadPremises[*domain.Booking](ctx, store, s.access, user, premisesID)
	if err != nil || p == nil {
		return nil, nil, fail, err
	}
	b, err := lookup(store.GetBooking(ctx, bookingID))
	if err != nil {
		return nil, nil, Outcome[*domain.Booking]{}, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if b == nil || b.PremisesID != p.ID {
		return nil, nil, notFound[*domain.Booking](entityBooking, bookingID), nil
	}
	return p, b, Outcome[*domain.Booking]{}, nil
}

// Get returns one booking of a premises.
func (s *BookingService) Get(ctx context.Context, user *domain.User, premisesID, bookingID string) (result.Authorisable[*domain.Booking], error) {
	_, b, fail, err := s.load(ctx, s.Store, user, premisesID, bookingID)
	if err != nil {
		return result.Authorisable[*domain.Booking]{}, err
	}
	if b == nil {
		return result.Authorisable[*domain.Booking]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	return result.Success(b), nil
}

// List returns the bookings of a premises.
func (s *BookingService) List(ctx context.Context, user *domain.User, premisesID string) (result.Authorisable[[]domain.Booking], error) {
	p, fail, err := loadPremises[[]domain.Booking](ctx, s.Store, s.access, user, premisesID)
	if err != nil {
		return result.Authorisable[[]domain.Booking]{}, err
	}
	if p == nil {
		return result.Authorisable[[]domain.Booking]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	list, err := s.Store.ListBookingsForPremises(ctx, p.ID)
	if err != nil {
		return result.Authorisable[[]domain.Booking]{}, fmt.Errorf("list bookings of %s: %w", p.ID, err)
	}
	return result.Success(list), nil
}

// checkBedConflicts looks for bookings and out-of-service records on bedID
// overlapping r.
func checkBedConflicts[T any](ctx context.Context, tx repository.Store, bedID string, r domain.DateRange, excludeBookingID string) (Outcome[T], bool, error) {
	if b, err := lookup(tx.FindConflictingBooking(ctx, bedID, r, excludeBookingID)); err != nil {
		return Outcome[T]{}, false, fmt.Errorf("check booking conflicts on bed %s: %w", bedID, err)
	} else if b != nil {
		return conflict[T](b.ID, bookingConflictMessage(b.Range())), true, nil
	}
	if o, err := lookup(tx.FindConflictingOutOfServiceBed(ctx, bedID, r, "")); err != nil {
		return Outcome[T]{}, false, fmt.Errorf("check out-of-service conflicts on bed %s: %w", bedID, err)
	} else if o != nil {
		return conflict[T](o.ID, outOfServiceConflictMessage(o.Range())), true, nil
	}
	return Outcome[T]{}, false, nil
}

// Create books a bed in a premises. A CAS1 booking for a CRN with no online
// application is linked to a new offline application.
func (s *BookingService) Create(ctx context.Context, user *domain.User, premisesID string, in NewBooking) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		p, fail, err := loadPremises[*domain.Booking](ctx, tx, s.access, user, premisesID)
		if err != nil || p == nil {
			return fail, orRollback(err)
		}

		errs := result.ValidationErrors{}
		crn := strings.TrimSpace(in.CRN)
		if crn == "" {
			errs.Add("$.crn", errEmpty)
		}
		arrival, departure := domain.DateOf(in.ArrivalDate), domain.DateOf(in.DepartureDate)
		if departure.Before(arrival) {
			errs.Add("$.departureDate", errBeforeBookingArrivalDate)
		}
		var bed *domain.Bed
		switch {
		case in.BedID != nil && *in.BedID != "":
			bed, err = lookup(tx.GetBed(ctx, *in.BedID))
			if err != nil {
				return Outcome[*domain.Booking]{}, fmt.Errorf("load bed %s: %w", *in.BedID, err)
			}
			if bed == nil || bed.PremisesID != p.ID {
				errs.Add("$.bedId", errDoesNotExist)
			}
		case p.Service == domain.ServiceCAS3:
			errs.Add("$.bedId", errEmpty)
		}
		if errs.Any() {
			return reject(invalid[*domain.Booking](errs))
		}

		r := domain.DateRange{Start: arrival, End: departure}
		if bed != nil {
			c, found, err := checkBedConflicts[*domain.Booking](ctx, tx, bed.ID, r, "")
			if err != nil {
				return Outcome[*domain.Booking]{}, err
			}
			if found {
				return reject(c)
			}
		}

		now := s.now()
		b := &domain.Booking{
			ID:                    newID(),
			Service:               p.Service,
			PremisesID:            p.ID,
			CRN:                   crn,
			NomsNumber:            in.NomsNumber,
			ArrivalDate:           arrival,
			DepartureDate:         departure,
			OriginalArrivalDate:   arrival,
			OriginalDepartureDate: departure,
			CreatedAt:             now,
		}
		if bed != nil {
			b.BedID = &bed.ID
		}

		app, err := lookup(tx.FindApplicationByCRN(ctx, p.Service, crn))
		if err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("find application for %s: %w", crn, err)
		}
		switch {
		case app != nil:
			b.ApplicationID = &app.ID
		case p.Service == domain.ServiceCAS1:
			offline := &domain.OfflineApplication{
				ID:          newID(),
				Service:     domain.ServiceCAS1,
				CRN:         crn,
				EventNumber: in.EventNumber,
				CreatedAt:   now,
			}
			if err := tx.CreateOfflineApplication(ctx, offline); err != nil {
				return Outcome[*domain.Booking]{}, fmt.Errorf("create offline application: %w", err)
			}
			b.OfflineApplicationID = &offline.ID
		}
		if err := tx.CreateBooking(ctx, b); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create booking: %w", err)
		}

		if p.Service == domain.ServiceCAS1 {
			_, err := s.Events.Emit(ctx, tx, s.event(domain.EventBookingMade, user, b, now, domain.BookingMadeDetails{
				ApplicationID:   b.ApplicationID,
				BookingID:       b.ID,
				PersonReference: person(b.CRN, b.NomsNumber),
				Premises:        premisesRef(p),
				ArrivalOn:       domain.FormatDate(arrival),
				DepartureOn:     domain.FormatDate(departure),
				BookedAt:        now,
				BookedBy:        staff(user),
			}))
			if err != nil {
				return Outcome[*domain.Booking]{}, err
			}
			if app != nil {
				applicant, err := lookup(tx.GetUser(ctx, app.CreatedByUserID))
				if err != nil {
					return Outcome[*domain.Booking]{}, fmt.Errorf("load applicant %s: %w", app.CreatedByUserID, err)
				}
				if applicant != nil {
					if err := s.Emails.BookingMade(ctx, tx, applicant, b.CRN, p, r); err != nil {
						return Outcome[*domain.Booking]{}, err
					}
				}
			}
		}
		return ok(b), nil
	})
}

func (s *BookingService) event(t domain.EventType, user *domain.User, b *domain.Booking, at time.Time, details any) events.Event {
	return events.Event{
		Type:              t,
		ApplicationID:     b.ApplicationID,
		BookingID:         &b.ID,
		CRN:               b.CRN,
		NomsNumber:        b.NomsNumber,
		TriggeredByUserID: &user.ID,
		OccurredAt:        at,
		Details:           details,
	}
}

// emitCAS1 emits an event for CAS1 bookings only.
func (s *BookingService) emitCAS1(ctx context.Context, tx repository.Store, b *domain.Booking, ev events.Event) error {
	if b.Service != domain.ServiceCAS1 {
		return nil
	}
	_, err := s.Events.Emit(ctx, tx, ev)
	return err
}

// CreateArrival records the arrival and moves the booked dates to it.
func (s *BookingService) CreateArrival(ctx context.Context, user *domain.User, premisesID, bookingID string, in ArrivalInput) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		p, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.Arrival != nil:
			return reject(general[*domain.Booking](msgHasArrival))
		case b.IsCancelled():
			return reject(general[*domain.Booking](msgIsCancelled))
		case b.NonArrival != nil:
			return reject(general[*domain.Booking](msgHasNonArrival))
		}
		arrival, departure := domain.DateOf(in.ArrivalDate), domain.DateOf(in.ExpectedDepartureDate)
		if departure.Before(arrival) {
			return reject(field[*domain.Booking]("$.expectedDepartureDate", errBeforeBookingArrivalDate))
		}

		now := s.now()
		a := &domain.Arrival{
			ID:                    newID(),
			ArrivalDate:           arrival,
			ExpectedDepartureDate: departure,
			Notes:                 in.Notes,
			CreatedAt:             now,
		}
		if err := tx.CreateArrival(ctx, b.ID, a); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create arrival on %s: %w", b.ID, err)
		}
		b.Arrival = a
		b.ArrivalDate = arrival
		b.DepartureDate = departure
		if err := tx.UpdateBookingDates(ctx, b); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("update booking dates of %s: %w", b.ID, err)
		}

		err = s.emitCAS1(ctx, tx, b, s.event(domain.EventPersonArrived, user, b, now, domain.PersonArrivedDetails{
			ApplicationID:       b.ApplicationID,
			BookingID:           b.ID,
			PersonReference:     person(b.CRN, b.NomsNumber),
			Premises:            premisesRef(p),
			ArrivedAt:           arrival,
			ExpectedDepartureOn: domain.FormatDate(departure),
			Notes:               in.Notes,
			RecordedBy:          staff(user),
		}))
		if err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		return ok(b), nil
	})
}

// CreateDeparture records that the person left the premises.
func (s *BookingService) CreateDeparture(ctx context.Context, user *domain.User, premisesID, bookingID string, in DepartureInput) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		p, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.Arrival == nil:
			return reject(general[*domain.Booking](msgHasNoArrival))
		case b.Departure != nil:
			return reject(general[*domain.Booking](msgHasDeparture))
		}

		errs := result.ValidationErrors{}
		if domain.DateOf(in.DateTime).Before(b.ArrivalDate) {
			errs.Add("$.dateTime", errBeforeBookingArrivalDate)
		}
		if err := s.requireReference(ctx, errs, domain.KindDepartureReasons, in.ReasonID, "$.reasonId"); err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		if err := s.requireReference(ctx, errs, domain.KindMoveOnCategories, in.MoveOnCategoryID, "$.moveOnCategoryId"); err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		if errs.Any() {
			return reject(invalid[*domain.Booking](errs))
		}

		now := s.now()
		d := &domain.Departure{
			ID:               newID(),
			DateTime:         in.DateTime.UTC(),
			ReasonID:         in.ReasonID,
			MoveOnCategoryID: in.MoveOnCategoryID,
			Notes:            in.Notes,
			CreatedAt:        now,
		}
		if err := tx.CreateDeparture(ctx, b.ID, d); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create departure on %s: %w", b.ID, err)
		}
		b.Departure = d
		b.DepartureDate = domain.DateOf(d.DateTime)
		if err := tx.UpdateBookingDates(ctx, b); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("update booking dates of %s: %w", b.ID, err)
		}

		err = s.emitCAS1(ctx, tx, b, s.event(domain.EventPersonDeparted, user, b, now, domain.PersonDepartedDetails{
			ApplicationID:    b.ApplicationID,
			BookingID:        b.ID,
			PersonReference:  person(b.CRN, b.NomsNumber),
			Premises:         premisesRef(p),
			DepartedAt:       d.DateTime,
			ReasonID:         d.ReasonID,
			MoveOnCategoryID: d.MoveOnCategoryID,
			RecordedBy:       staff(user),
		}))
		if err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		return ok(b), nil
	})
}

// CreateNonArrival records that the person never arrived.
func (s *BookingService) CreateNonArrival(ctx context.Context, user *domain.User, premisesID, bookingID string, in NonArrivalInput) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		p, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.Arrival != nil:
			return reject(general[*domain.Booking](msgHasArrival))
		case b.NonArrival != nil:
			return reject(general[*domain.Booking](msgHasNonArrival))
		case b.IsCancelled():
			return reject(general[*domain.Booking](msgIsCancelled))
		}

		errs := result.ValidationErrors{}
		date := domain.DateOf(in.Date)
		if date.Before(b.ArrivalDate) {
			errs.Add("$.date", errBeforeBookingArrivalDate)
		}
		if err := s.requireReference(ctx, errs, domain.KindNonArrivalReasons, in.ReasonID, "$.reason"); err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		if errs.Any() {
			return reject(invalid[*domain.Booking](errs))
		}

		now := s.now()
		n := &domain.NonArrival{ID: newID(), Date: date, ReasonID: in.ReasonID, Notes: in.Notes, CreatedAt: now}
		if err := tx.CreateNonArrival(ctx, b.ID, n); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create non-arrival on %s: %w", b.ID, err)
		}
		b.NonArrival = n

		err = s.emitCAS1(ctx, tx, b, s.event(domain.EventPersonNotArrived, user, b, now, domain.PersonNotArrivedDetails{
			ApplicationID:   b.ApplicationID,
			BookingID:       b.ID,
			PersonReference: person(b.CRN, b.NomsNumber),
			Premises:        premisesRef(p),
			ExpectedArrival: domain.FormatDate(b.ArrivalDate),
			ReasonID:        n.ReasonID,
			Notes:           n.Notes,
			RecordedBy:      staff(user),
		}))
		if err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		return ok(b), nil
	})
}

// CreateCancellation cancels a booking the person has not taken up.
func (s *BookingService) CreateCancellation(ctx context.Context, user *domain.User, premisesID, bookingID string, in CancellationInput) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		p, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.Departure != nil:
			return reject(general[*domain.Booking](msgHasDeparture))
		case b.Arrival != nil:
			return reject(general[*domain.Booking](msgArrivedNotCancelable))
		case b.NonArrival != nil:
			return reject(general[*domain.Booking](msgHasNonArrival))
		case b.IsCancelled():
			return reject(general[*domain.Booking](msgIsCancelled))
		}

		errs := result.ValidationErrors{}
		if err := s.requireReference(ctx, errs, domain.KindCancellationReasons, in.ReasonID, "$.reason"); err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		if errs.Any() {
			return reject(invalid[*domain.Booking](errs))
		}

		now := s.now()
		c := &domain.Cancellation{ID: newID(), Date: domain.DateOf(in.Date), ReasonID: in.ReasonID, Notes: in.Notes, CreatedAt: now}
		if err := tx.CreateCancellation(ctx, b.ID, c); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create cancellation on %s: %w", b.ID, err)
		}
		b.Cancellation = c

		err = s.emitCAS1(ctx, tx, b, s.event(domain.EventBookingCancelled, user, b, now, domain.BookingCancelledDetails{
			ApplicationID:   b.ApplicationID,
			BookingID:       b.ID,
			PersonReference: person(b.CRN, b.NomsNumber),
			Premises:        premisesRef(p),
			CancelledAt:     domain.FormatDate(c.Date),
			ReasonID:        c.ReasonID,
			CancelledBy:     staff(user),
		}))
		if err != nil {
			return Outcome[*domain.Booking]{}, err
		}
		return ok(b), nil
	})
}

// CreateConfirmation confirms a provisional CAS3 booking.
func (s *BookingService) CreateConfirmation(ctx context.Context, user *domain.User, premisesID, bookingID string, notes *string) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		_, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.Service != domain.ServiceCAS3:
			return reject(general[*domain.Booking](msgConfirmationCAS3Only))
		case b.Confirmation != nil:
			return reject(general[*domain.Booking](msgHasConfirmation))
		case b.IsCancelled():
			return reject(general[*domain.Booking](msgIsCancelled))
		}
		now := s.now()
		c := &domain.Confirmation{ID: newID(), DateTime: now, Notes: notes, CreatedAt: now}
		if err := tx.CreateConfirmation(ctx, b.ID, c); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create confirmation on %s: %w", b.ID, err)
		}
		b.Confirmation = c
		return ok(b), nil
	})
}

// CreateExtension moves the departure date of a booking.
func (s *BookingService) CreateExtension(ctx context.Context, user *domain.User, premisesID, bookingID string, in ExtensionInput) (Outcome[*domain.Booking], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.Booking], error) {
		_, b, fail, err := s.load(ctx, tx, user, premisesID, bookingID)
		if err != nil || b == nil {
			return fail, orRollback(err)
		}
		switch {
		case b.IsCancelled():
			return reject(general[*domain.Booking](msgIsCancelled))
		case b.Departure != nil:
			return reject(general[*domain.Booking](msgHasDeparture))
		}
		newDeparture := domain.DateOf(in.NewDepartureDate)
		if newDeparture.Before(b.ArrivalDate) {
			return reject(field[*domain.Booking]("$.newDepartureDate", errBeforeBookingArrivalDate))
		}
		if b.BedID != nil {
			r := domain.DateRange{Start: b.ArrivalDate, End: newDeparture}
			c, found, err := checkBedConflicts[*domain.Booking](ctx, tx, *b.BedID, r, b.ID)
			if err != nil {
				return Outcome[*domain.Booking]{}, err
			}
			if found {
				return reject(c)
			}
		}

		e := &domain.Extension{
			ID:                    newID(),
			PreviousDepartureDate: b.DepartureDate,
			NewDepartureDate:      newDeparture,
			Notes:                 in.Notes,
			CreatedAt:             s.now(),
		}
		if err := tx.CreateExtension(ctx, b.ID, e); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("create extension on %s: %w", b.ID, err)
		}
		b.Extensions = append(b.Extensions, *e)
		b.DepartureDate = newDeparture
		if err := tx.UpdateBookingDates(ctx, b); err != nil {
			return Outcome[*domain.Booking]{}, fmt.Errorf("update booking dates of %s: %w", b.ID, err)
		}
		return ok(b), nil
	})
}

// requireReference adds a doesNotExist error for an unknown reference id.
func (s Deps) requireReference(ctx context.Context, errs result.ValidationErrors, kind domain.ReferenceKind, id, fieldName string) error {
	found, err := s.Reference.Exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !found {
		errs.Add(fieldName, errDoesNotExist)
	}
	return nil
}
