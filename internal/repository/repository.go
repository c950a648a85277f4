// Package repository declares the persistence ports used by services.
//
// A Store is bound either to the connection pool or to one transaction.
// InTx runs a function against a transaction-bound Store; jobs enqueued
// through that Store commit or roll back with the rest of the writes.
//
// Import Path: approvedpremises.io/cas/internal/repository
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"

	"approvedpremises.io/cas/internal/domain"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// UserRepository persists users.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	ListUsersWithRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

// ApplicationFilter narrows ListApplications. Zero fields do not filter.
type ApplicationFilter struct {
	Service           domain.ServiceName
	CreatedByUserID   string
	ProbationRegionID string
}

// ApplicationRepository persists CAS1 and CAS3 applications.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplication(ctx context.Context, id string) (*domain.Application, error)
	UpdateApplication(ctx context.Context, app *domain.Application) error
	ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error)
	FindApplicationByCRN(ctx context.Context, service domain.ServiceName, crn string) (*domain.Application, error)
	CreateOfflineApplication(ctx context.Context, app *domain.OfflineApplication) error
}

// AssessmentFilter narrows ListAssessments. Zero fields do not filter.
type AssessmentFilter struct {
	Service           domain.ServiceName
	AllocatedToUserID string
	ProbationRegionID string
	IncludeReassigned bool
}

// AssessmentRepository persists assessments, notes and status history.
type AssessmentRepository interface {
	CreateAssessment(ctx context.Context, a *domain.Assessment) error
	// GetAssessment loads the assessment with its clarification notes.
	GetAssessment(ctx context.Context, id string) (*domain.Assessment, error)
	UpdateAssessment(ctx context.Context, a *domain.Assessment) error
	ListAssessments(ctx context.Context, f AssessmentFilter) ([]domain.Assessment, error)
	CreateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error
	UpdateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error
	CreateAssessmentStatusChange(ctx context.Context, c *domain.AssessmentStatusChange) error
	ListAssessmentStatusChanges(ctx context.Context, assessmentID string) ([]domain.AssessmentStatusChange, error)
}

// PlacementRepository persists requirements, requests and placement applications.
type PlacementRepository interface {
	CreatePlacementRequirements(ctx context.Context, r *domain.PlacementRequirements) error
	GetPlacementRequirements(ctx context.Context, id string) (*domain.PlacementRequirements, error)
	LatestPlacementRequirements(ctx context.Context, applicationID string) (*domain.PlacementRequirements, error)

	CreatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error
	GetPlacementRequest(ctx context.Context, id string) (*domain.PlacementRequest, error)
	UpdatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error
	ListPlacementRequestsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementRequest, error)

	CreatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error
	// GetPlacementApplication loads the application with its placement requests.
	GetPlacementApplication(ctx context.Context, id string) (*domain.PlacementApplication, error)
	UpdatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error
	ListPlacementApplicationsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementApplication, error)
}

// PremisesSearch filters candidate premises for a space search.
type PremisesSearch struct {
	Service         domain.ServiceName
	ApType          domain.ApType
	Gender          domain.Gender
	Characteristics []string
}

// PremisesRepository reads premises and beds.
type PremisesRepository interface {
	GetPremises(ctx context.Context, id string) (*domain.Premises, error)
	GetBed(ctx context.Context, id string) (*domain.Bed, error)
	SearchPremises(ctx context.Context, q PremisesSearch) ([]domain.Premises, error)
}

// BookingRepository persists legacy bookings and their sub-states.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *domain.Booking) error
	// GetBooking loads the booking with every sub-state.
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	UpdateBookingDates(ctx context.Context, b *domain.Booking) error
	ListBookingsForPremises(ctx context.Context, premisesID string) ([]domain.Booking, error)
	// FindConflictingBooking returns a booking on bedID whose dates overlap r,
	// skipping excludeID. Cancelled and non-arrived bookings free the bed.
	FindConflictingBooking(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.Booking, error)

	CreateArrival(ctx context.Context, bookingID string, a *domain.Arrival) error
	CreateDeparture(ctx context.Context, bookingID string, d *domain.Departure) error
	CreateNonArrival(ctx context.Context, bookingID string, n *domain.NonArrival) error
	CreateCancellation(ctx context.Context, bookingID string, c *domain.Cancellation) error
	CreateConfirmation(ctx context.Context, bookingID string, c *domain.Confirmation) error
	CreateExtension(ctx context.Context, bookingID string, e *domain.Extension) error
}

// SpaceBookingRepository persists CAS1 space bookings.
type SpaceBookingRepository interface {
	CreateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error
	GetSpaceBooking(ctx context.Context, id string) (*domain.SpaceBooking, error)
	UpdateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error
}

// OutOfServiceBedRepository persists out-of-service bed records.
type OutOfServiceBedRepository interface {
	CreateOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error
	GetOutOfServiceBed(ctx context.Context, id string) (*domain.OutOfServiceBed, error)
	CancelOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error
	ListOutOfServiceBeds(ctx context.Context, premisesID string) ([]domain.OutOfServiceBed, error)
	// FindConflictingOutOfServiceBed returns an active record on bedID
	// overlapping r, skipping excludeID.
	FindConflictingOutOfServiceBed(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.OutOfServiceBed, error)
}

// Cas2Filter narrows ListCas2Applications. Zero fields do not filter.
type Cas2Filter struct {
	CreatedByUserID string
	PrisonCode      string
}

// Cas2Repository persists CAS2 applications, assessments and status updates.
type Cas2Repository interface {
	CreateCas2Application(ctx context.Context, app *domain.Cas2Application) error
	GetCas2Application(ctx context.Context, id string) (*domain.Cas2Application, error)
	// GetCas2ApplicationForUpdate takes a row write lock held until the
	// surrounding transaction ends.
	GetCas2ApplicationForUpdate(ctx context.Context, id string) (*domain.Cas2Application, error)
	UpdateCas2Application(ctx context.Context, app *domain.Cas2Application) error
	ListCas2Applications(ctx context.Context, f Cas2Filter) ([]domain.Cas2Application, error)
	LatestCas2ApplicationByNoms(ctx context.Context, nomsNumber string) (*domain.Cas2Application, error)
	CreateCas2Assignment(ctx context.Context, a *domain.Cas2ApplicationAssignment) error
	AbandonStaleCas2Applications(ctx context.Context, createdBefore, now time.Time) (int64, error)

	CreateCas2Assessment(ctx context.Context, a *domain.Cas2Assessment) error
	GetCas2Assessment(ctx context.Context, id string) (*domain.Cas2Assessment, error)
	CreateCas2StatusUpdate(ctx context.Context, u *domain.Cas2StatusUpdate) error
	ListCas2StatusUpdates(ctx context.Context, applicationID string) ([]domain.Cas2StatusUpdate, error)
}

// DomainEventRepository appends domain events. There is no update or delete.
type DomainEventRepository interface {
	CreateDomainEvent(ctx context.Context, e *domain.DomainEvent) error
	GetDomainEvent(ctx context.Context, id string) (*domain.DomainEvent, error)
}

// Store is the full persistence port.
type Store interface {
	UserRepository
	ApplicationRepository
	AssessmentRepository
	PlacementRepository
	PremisesRepository
	BookingRepository
	SpaceBookingRepository
	OutOfServiceBedRepository
	Cas2Repository
	DomainEventRepository

	// InTx runs fn against a transaction-bound Store. fn's error rolls the
	// transaction back. Calling InTx on a bound Store reuses its transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Enqueue inserts a River job, inside the bound transaction if any.
	Enqueue(ctx context.Context, args river.JobArgs) error
}

// ReferenceDataRepository reads lookup rows.
type ReferenceDataRepository interface {
	ListReferenceData(ctx context.Context, kind domain.ReferenceKind) ([]domain.ReferenceData, error)
	GetReferenceData(ctx context.Context, kind domain.ReferenceKind, id string) (*domain.ReferenceData, error)
	GetPostcodeDistrict(ctx context.Context, outcode string) (*domain.PostcodeDistrict, error)
}
