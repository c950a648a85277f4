package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// NewOutOfServiceBed is the input of OutOfServiceBedService.Create.
type NewOutOfServiceBed struct {
	BedID           string
	StartDate       time.Time
	EndDate         time.Time
	Reason          string
	ReferenceNumber *string
	Notes           *string
}

const entityOutOfServiceBed = "OutOfServiceBed"

// OutOfServiceBedService takes beds out of use for a period.
type OutOfServiceBedService struct {
	Deps
	access domain.UserAccess
}

// NewOutOfServiceBedService creates the service.
func NewOutOfServiceBedService(d Deps) *OutOfServiceBedService {
	return &OutOfServiceBedService{Deps: d}
}

// List returns the records of a premises.
func (s *OutOfServiceBedService) List(ctx context.Context, user *domain.User, premisesID string) (result.Authorisable[[]domain.OutOfServiceBed], error) {
	p, fail, err := loadPremises[[]domain.OutOfServiceBed](ctx, s.Store, s.access, user, premisesID)
	if err != nil {
		return result.Authorisable[[]domain.OutOfServiceBed]{}, err
	}
	if p == nil {
		return result.Authorisable[[]domain.OutOfServiceBed]{Kind: fail.Kind, EntityType: fail.EntityType, ID: fail.ID}, nil
	}
	list, err := s.Store.ListOutOfServiceBeds(ctx, p.ID)
	if err != nil {
		return result.Authorisable[[]domain.OutOfServiceBed]{}, fmt.Errorf("list out-of-service beds of %s: %w", p.ID, err)
	}
	return result.Success(list), nil
}

// Create records a bed as out of service. Overlapping bookings on the bed
// are a conflict.
func (s *OutOfServiceBedService) Create(ctx context.Context, user *domain.User, premisesID string, in NewOutOfServiceBed) (Outcome[*domain.OutOfServiceBed], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.OutOfServiceBed], error) {
		p, fail, err := loadPremises[*domain.OutOfServiceBed](ctx, tx, s.access, user, premisesID)
		if err != nil || p == nil {
			return fail, orRollback(err)
		}

		errs := result.ValidationErrors{}
		start, end := domain.DateOf(in.StartDate), domain.DateOf(in.EndDate)
		if end.Before(start) {
			errs.Add("$.endDate", errBeforeStartDate)
		}
		bed, err := lookup(tx.GetBed(ctx, in.BedID))
		if err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("load bed %s: %w", in.BedID, err)
		}
		if bed == nil || bed.PremisesID != p.ID {
			errs.Add("$.bedId", errDoesNotExist)
		}
		if strings.TrimSpace(in.Reason) == "" {
			errs.Add("$.reason", errEmpty)
		}
		if errs.Any() {
			return reject(invalid[*domain.OutOfServiceBed](errs))
		}

		r := domain.DateRange{Start: start, End: end}
		b, err := lookup(tx.FindConflictingBooking(ctx, bed.ID, r, ""))
		if err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("check booking conflicts on bed %s: %w", bed.ID, err)
		}
		if b != nil {
			return reject(conflict[*domain.OutOfServiceBed](b.ID, bookingConflictMessage(b.Range())))
		}
		o, err := lookup(tx.FindConflictingOutOfServiceBed(ctx, bed.ID, r, ""))
		if err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("check out-of-service conflicts on bed %s: %w", bed.ID, err)
		}
		if o != nil {
			return reject(conflict[*domain.OutOfServiceBed](o.ID, outOfServiceConflictMessage(o.Range())))
		}

		rec := &domain.OutOfServiceBed{
			ID:              newID(),
			PremisesID:      p.ID,
			BedID:           bed.ID,
			StartDate:       start,
			EndDate:         end,
			Reason:          in.Reason,
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
			CreatedAt:       s.now(),
		}
		if err := tx.CreateOutOfServiceBed(ctx, rec); err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("create out-of-service bed: %w", err)
		}
		return ok(rec), nil
	})
}

// Cancel puts the bed back in service.
func (s *OutOfServiceBedService) Cancel(ctx context.Context, user *domain.User, premisesID, id string, notes *string) (Outcome[*domain.OutOfServiceBed], error) {
	return runTx(ctx, s.Store, func(tx repository.Store) (Outcome[*domain.OutOfServiceBed], error) {
		p, fail, err := loadPremises[*domain.OutOfServiceBed](ctx, tx, s.access, user, premisesID)
		if err != nil || p == nil {
			return fail, orRollback(err)
		}
		rec, err := lookup(tx.GetOutOfServiceBed(ctx, id))
		if err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("load out-of-service bed %s: %w", id, err)
		}
		if rec == nil || rec.PremisesID != p.ID {
			return reject(notFound[*domain.OutOfServiceBed](entityOutOfServiceBed, id))
		}
		if !rec.IsActive() {
			return reject(general[*domain.OutOfServiceBed]("This out-of-service bed record has already been cancelled"))
		}
		now := s.now()
		rec.CancelledAt = &now
		rec.CancellationNotes = notes
		if err := tx.CancelOutOfServiceBed(ctx, rec); err != nil {
			return Outcome[*domain.OutOfServiceBed]{}, fmt.Errorf("cancel out-of-service bed %s: %w", id, err)
		}
		return ok(rec), nil
	})
}
