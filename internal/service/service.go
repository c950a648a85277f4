// Package service holds the CAS business operations.
//
// Mutating operations run inside one Store transaction: loads, guards,
// writes, the domain event and any queued email commit or roll back
// together. Business failures are returned as result values and also roll
// the transaction back; Go errors are reserved for infrastructure faults.
//
// Import Path: approvedpremises.io/cas/internal/service
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
)

// Deps are shared by every service.
type Deps struct {
	Store     repository.Store
	Reference *ReferenceDataService
	Schemas   *jsonschema.Registry
	Events    *events.Emitter
	Emails    *notification.Triggers
	// FrontendURL prefixes the links placed in event payloads.
	FrontendURL string
	Now         func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) today() time.Time { return domain.DateOf(d.now()) }

// Outcome is the nested result of a guarded, validated mutation.
type Outcome[T any] = result.Authorisable[result.Validatable[T]]

func ok[T any](v T) Outcome[T] { return result.Nested(result.Valid(v)) }

func notFound[T any](entityType, id string) Outcome[T] {
	return result.NotFound[result.Validatable[T]](entityType, id)
}

func unauthorised[T any]() Outcome[T] { return result.Unauthorised[result.Validatable[T]]() }

func general[T any](message string) Outcome[T] { return result.Nested(result.General[T](message)) }

func invalid[T any](errs result.ValidationErrors) Outcome[T] {
	return result.Nested(result.Fields[T](errs))
}

func conflict[T any](id, message string) Outcome[T] {
	return result.Nested(result.Conflict[T](id, message))
}

func field[T any](name, errorType string) Outcome[T] {
	return invalid[T](result.ValidationErrors{name: errorType})
}

// errRollback aborts a transaction whose outcome is a business failure.
var errRollback = errors.New("rollback business failure")

// runTx runs fn in a transaction. fn returns errRollback with a failed
// outcome to discard its writes while still handing the outcome back.
func runTx[T any](ctx context.Context, store repository.Store, fn func(tx repository.Store) (T, error)) (T, error) {
	var out T
	err := store.InTx(ctx, func(tx repository.Store) error {
		v, err := fn(tx)
		out = v
		return err
	})
	if err != nil && !errors.Is(err, errRollback) {
		var zero T
		return zero, err
	}
	return out, nil
}

// reject pairs a failed outcome with errRollback.
func reject[T any](o Outcome[T]) (Outcome[T], error) { return o, errRollback }

// lookup turns ErrNotFound into a nil value.
func lookup[T any](v *T, err error) (*T, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func newID() string { return uuid.Must(uuid.NewV7()).String() }

func ptr[T any](v T) *T { return &v }

func staff(u *domain.User) domain.StaffMember {
	return domain.StaffMember{Username: u.DeliusUsername, Name: u.Name}
}

func person(crn string, noms *string) domain.PersonRef {
	p := domain.PersonRef{CRN: crn}
	if noms != nil {
		p.NomsNumber = *noms
	}
	return p
}

func premisesRef(p *domain.Premises) domain.PremisesRef {
	return domain.PremisesRef{ID: p.ID, Name: p.Name, ApCode: p.ApCode}
}

// Field error types.
const (
	errEmpty                    = "empty"
	errInvalid                  = "invalid"
	errDoesNotExist             = "doesNotExist"
	errBeforeBookingArrivalDate = "beforeBookingArrivalDate"
	errBeforeStartDate          = "beforeStartDate"
	errMustBePositive           = "mustBePositive"
	errShouldBeAfterArrival     = "shouldBeAfterArrivalDate"
	errLackingAssessorRole      = "lackingAssessorRole"
)

// General validation messages shared by several operations.
const (
	msgAlreadySubmitted = "This application has already been submitted"
	msgWithdrawn        = "This application has been withdrawn"
	msgSchemaOutdated   = "The schema version is outdated"
)
