package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/repository"
)

// Users

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return get(s, usersOf, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	found := list(s, usersOf, func(u *domain.User) bool { return u.DeliusUsername == username }, nil)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	put(s, usersOf, u.ID, u)
	return nil
}

func (s *Store) ListUsersWithRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	return list(s, usersOf,
		func(u *domain.User) bool { return u.HasRole(role) },
		byCreated(func(u *domain.User) time.Time { return u.CreatedAt }),
	), nil
}

// Applications

func (s *Store) CreateApplication(ctx context.Context, app *domain.Application) error {
	put(s, appsOf, app.ID, app)
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	return get(s, appsOf, id)
}

func (s *Store) UpdateApplication(ctx context.Context, app *domain.Application) error {
	return update(s, appsOf, app.ID, app)
}

func (s *Store) ListApplications(ctx context.Context, f repository.ApplicationFilter) ([]domain.Application, error) {
	return list(s, appsOf, func(a *domain.Application) bool {
		return (f.Service == "" || a.Service == f.Service) &&
			(f.CreatedByUserID == "" || a.CreatedByUserID == f.CreatedByUserID) &&
			(f.ProbationRegionID == "" || a.ProbationRegionID() == f.ProbationRegionID)
	}, byCreated(func(a *domain.Application) time.Time { return a.CreatedAt })), nil
}

func (s *Store) FindApplicationByCRN(ctx context.Context, service domain.ServiceName, crn string) (*domain.Application, error) {
	found := list(s, appsOf,
		func(a *domain.Application) bool { return a.Service == service && a.CRN == crn },
		byCreated(func(a *domain.Application) time.Time { return a.CreatedAt }),
	)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[len(found)-1], nil
}

func (s *Store) CreateOfflineApplication(ctx context.Context, app *domain.OfflineApplication) error {
	put(s, offlineOf, app.ID, app)
	return nil
}

// OfflineApplications returns every offline application.
func (s *Store) OfflineApplications() []domain.OfflineApplication {
	return list(s, offlineOf, nil, nil)
}

// Assessments

func (s *Store) CreateAssessment(ctx context.Context, a *domain.Assessment) error {
	stored := *a
	stored.ClarificationNotes = nil
	put(s, assessmentsOf, a.ID, &stored)
	return nil
}

func (s *Store) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	a, err := get(s, assessmentsOf, id)
	if err != nil {
		return nil, err
	}
	a.ClarificationNotes = list(s, notesOf,
		func(n *domain.ClarificationNote) bool { return n.AssessmentID == id },
		byCreated(func(n *domain.ClarificationNote) time.Time { return n.CreatedAt }),
	)
	return a, nil
}

func (s *Store) UpdateAssessment(ctx context.Context, a *domain.Assessment) error {
	stored := *a
	stored.ClarificationNotes = nil
	return update(s, assessmentsOf, a.ID, &stored)
}

func (s *Store) ListAssessments(ctx context.Context, f repository.AssessmentFilter) ([]domain.Assessment, error) {
	s.mu.Lock()
	regionOf := map[string]string{}
	for id, app := range s.st.apps {
		regionOf[id] = app.ProbationRegionID()
	}
	s.mu.Unlock()

	return list(s, assessmentsOf, func(a *domain.Assessment) bool {
		return (f.Service == "" || a.Service == f.Service) &&
			(f.AllocatedToUserID == "" || (a.AllocatedToUserID != nil && *a.AllocatedToUserID == f.AllocatedToUserID)) &&
			(f.ProbationRegionID == "" || regionOf[a.ApplicationID] == f.ProbationRegionID) &&
			(f.IncludeReassigned || a.ReallocatedAt == nil)
	}, byCreated(func(a *domain.Assessment) time.Time { return a.CreatedAt })), nil
}

func (s *Store) CreateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error {
	put(s, notesOf, n.ID, n)
	return nil
}

func (s *Store) UpdateClarificationNote(ctx context.Context, n *domain.ClarificationNote) error {
	return update(s, notesOf, n.ID, n)
}

func (s *Store) CreateAssessmentStatusChange(ctx context.Context, c *domain.AssessmentStatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.statusChanges = append(s.st.statusChanges, *c)
	return nil
}

func (s *Store) ListAssessmentStatusChanges(ctx context.Context, assessmentID string) ([]domain.AssessmentStatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AssessmentStatusChange
	for _, c := range s.st.statusChanges {
		if c.AssessmentID == assessmentID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Placement

func (s *Store) CreatePlacementRequirements(ctx context.Context, r *domain.PlacementRequirements) error {
	put(s, requirementsOf, r.ID, r)
	return nil
}

func (s *Store) GetPlacementRequirements(ctx context.Context, id string) (*domain.PlacementRequirements, error) {
	return get(s, requirementsOf, id)
}

func (s *Store) LatestPlacementRequirements(ctx context.Context, applicationID string) (*domain.PlacementRequirements, error) {
	found := list(s, requirementsOf,
		func(r *domain.PlacementRequirements) bool { return r.ApplicationID == applicationID },
		byCreated(func(r *domain.PlacementRequirements) time.Time { return r.CreatedAt }),
	)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[len(found)-1], nil
}

func (s *Store) CreatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error {
	put(s, requestsOf, r.ID, r)
	return nil
}

func (s *Store) GetPlacementRequest(ctx context.Context, id string) (*domain.PlacementRequest, error) {
	return get(s, requestsOf, id)
}

func (s *Store) UpdatePlacementRequest(ctx context.Context, r *domain.PlacementRequest) error {
	return update(s, requestsOf, r.ID, r)
}

func (s *Store) ListPlacementRequestsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementRequest, error) {
	return list(s, requestsOf,
		func(r *domain.PlacementRequest) bool { return r.ApplicationID == applicationID },
		byCreated(func(r *domain.PlacementRequest) time.Time { return r.CreatedAt }),
	), nil
}

func (s *Store) CreatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error {
	stored := *p
	stored.PlacementRequests = nil
	put(s, placementAppsOf, p.ID, &stored)
	return nil
}

func (s *Store) GetPlacementApplication(ctx context.Context, id string) (*domain.PlacementApplication, error) {
	p, err := get(s, placementAppsOf, id)
	if err != nil {
		return nil, err
	}
	p.PlacementRequests = list(s, requestsOf,
		func(r *domain.PlacementRequest) bool {
			return r.PlacementApplicationID != nil && *r.PlacementApplicationID == id
		},
		byCreated(func(r *domain.PlacementRequest) time.Time { return r.CreatedAt }),
	)
	return p, nil
}

func (s *Store) UpdatePlacementApplication(ctx context.Context, p *domain.PlacementApplication) error {
	stored := *p
	stored.PlacementRequests = nil
	return update(s, placementAppsOf, p.ID, &stored)
}

func (s *Store) ListPlacementApplicationsForApplication(ctx context.Context, applicationID string) ([]domain.PlacementApplication, error) {
	found := list(s, placementAppsOf,
		func(p *domain.PlacementApplication) bool { return p.ApplicationID == applicationID },
		byCreated(func(p *domain.PlacementApplication) time.Time { return p.CreatedAt }),
	)
	for i := range found {
		full, err := s.GetPlacementApplication(ctx, found[i].ID)
		if err != nil {
			return nil, err
		}
		found[i] = *full
	}
	return found, nil
}

// Premises

// PutPremises stores a premises.
func (s *Store) PutPremises(p *domain.Premises) { put(s, premisesOf, p.ID, p) }

// PutBed stores a bed.
func (s *Store) PutBed(b *domain.Bed) { put(s, bedsOf, b.ID, b) }

func (s *Store) GetPremises(ctx context.Context, id string) (*domain.Premises, error) {
	return get(s, premisesOf, id)
}

func (s *Store) GetBed(ctx context.Context, id string) (*domain.Bed, error) {
	return get(s, bedsOf, id)
}

func (s *Store) SearchPremises(ctx context.Context, q repository.PremisesSearch) ([]domain.Premises, error) {
	return list(s, premisesOf, func(p *domain.Premises) bool {
		if q.Service != "" && p.Service != q.Service {
			return false
		}
		if q.ApType != "" && p.ApType != q.ApType {
			return false
		}
		if q.Gender != "" && p.Gender != q.Gender {
			return false
		}
		for _, c := range q.Characteristics {
			if !slices.Contains(p.Characteristics, c) {
				return false
			}
		}
		return p.Latitude != nil && p.Longitude != nil
	}, func(a, b *domain.Premises) bool { return a.Name < b.Name }), nil
}

// Bookings

func (s *Store) CreateBooking(ctx context.Context, b *domain.Booking) error {
	put(s, bookingsOf, b.ID, b)
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return get(s, bookingsOf, id)
}

func (s *Store) UpdateBookingDates(ctx context.Context, b *domain.Booking) error {
	cur, err := get(s, bookingsOf, b.ID)
	if err != nil {
		return err
	}
	cur.ArrivalDate = b.ArrivalDate
	cur.DepartureDate = b.DepartureDate
	return update(s, bookingsOf, b.ID, cur)
}

func (s *Store) ListBookingsForPremises(ctx context.Context, premisesID string) ([]domain.Booking, error) {
	return list(s, bookingsOf,
		func(b *domain.Booking) bool { return b.PremisesID == premisesID },
		func(a, b *domain.Booking) bool { return a.ArrivalDate.Before(b.ArrivalDate) },
	), nil
}

func (s *Store) FindConflictingBooking(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.Booking, error) {
	found := list(s, bookingsOf, func(b *domain.Booking) bool {
		return b.ID != excludeID && b.BedID != nil && *b.BedID == bedID &&
			!b.IsCancelled() && b.NonArrival == nil && b.Range().Overlaps(r)
	}, func(a, b *domain.Booking) bool { return a.ArrivalDate.Before(b.ArrivalDate) })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *Store) mutateBooking(id string, fn func(b *domain.Booking)) error {
	b, err := get(s, bookingsOf, id)
	if err != nil {
		return err
	}
	fn(b)
	return update(s, bookingsOf, id, b)
}

func (s *Store) CreateArrival(ctx context.Context, bookingID string, a *domain.Arrival) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.Arrival = a })
}

func (s *Store) CreateDeparture(ctx context.Context, bookingID string, d *domain.Departure) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.Departure = d })
}

func (s *Store) CreateNonArrival(ctx context.Context, bookingID string, n *domain.NonArrival) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.NonArrival = n })
}

func (s *Store) CreateCancellation(ctx context.Context, bookingID string, c *domain.Cancellation) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.Cancellation = c })
}

func (s *Store) CreateConfirmation(ctx context.Context, bookingID string, c *domain.Confirmation) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.Confirmation = c })
}

func (s *Store) CreateExtension(ctx context.Context, bookingID string, e *domain.Extension) error {
	return s.mutateBooking(bookingID, func(b *domain.Booking) { b.Extensions = append(b.Extensions, *e) })
}

// Space bookings

func (s *Store) CreateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error {
	put(s, spaceBookingsOf, b.ID, b)
	return nil
}

func (s *Store) GetSpaceBooking(ctx context.Context, id string) (*domain.SpaceBooking, error) {
	return get(s, spaceBookingsOf, id)
}

func (s *Store) UpdateSpaceBooking(ctx context.Context, b *domain.SpaceBooking) error {
	return update(s, spaceBookingsOf, b.ID, b)
}

// Out-of-service beds

func (s *Store) CreateOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error {
	put(s, oosBedsOf, o.ID, o)
	return nil
}

func (s *Store) GetOutOfServiceBed(ctx context.Context, id string) (*domain.OutOfServiceBed, error) {
	return get(s, oosBedsOf, id)
}

func (s *Store) CancelOutOfServiceBed(ctx context.Context, o *domain.OutOfServiceBed) error {
	return update(s, oosBedsOf, o.ID, o)
}

func (s *Store) ListOutOfServiceBeds(ctx context.Context, premisesID string) ([]domain.OutOfServiceBed, error) {
	return list(s, oosBedsOf,
		func(o *domain.OutOfServiceBed) bool { return o.PremisesID == premisesID && o.IsActive() },
		func(a, b *domain.OutOfServiceBed) bool { return a.StartDate.Before(b.StartDate) },
	), nil
}

func (s *Store) FindConflictingOutOfServiceBed(ctx context.Context, bedID string, r domain.DateRange, excludeID string) (*domain.OutOfServiceBed, error) {
	found := list(s, oosBedsOf, func(o *domain.OutOfServiceBed) bool {
		return o.ID != excludeID && o.BedID == bedID && o.IsActive() && o.Range().Overlaps(r)
	}, func(a, b *domain.OutOfServiceBed) bool { return a.StartDate.Before(b.StartDate) })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// CAS2

func (s *Store) CreateCas2Application(ctx context.Context, app *domain.Cas2Application) error {
	put(s, cas2AppsOf, app.ID, app)
	return nil
}

func (s *Store) GetCas2Application(ctx context.Context, id string) (*domain.Cas2Application, error) {
	return get(s, cas2AppsOf, id)
}

// GetCas2ApplicationForUpdate relies on InTx serialization for exclusion.
func (s *Store) GetCas2ApplicationForUpdate(ctx context.Context, id string) (*domain.Cas2Application, error) {
	return get(s, cas2AppsOf, id)
}

func (s *Store) UpdateCas2Application(ctx context.Context, app *domain.Cas2Application) error {
	cur, err := get(s, cas2AppsOf, app.ID)
	if err != nil {
		return err
	}
	next := *app
	next.Assignments = cur.Assignments
	return update(s, cas2AppsOf, app.ID, &next)
}

func (s *Store) ListCas2Applications(ctx context.Context, f repository.Cas2Filter) ([]domain.Cas2Application, error) {
	return list(s, cas2AppsOf, func(a *domain.Cas2Application) bool {
		return (f.CreatedByUserID == "" || a.CreatedByUserID == f.CreatedByUserID) &&
			(f.PrisonCode == "" || a.CurrentPrisonCode() == f.PrisonCode)
	}, byCreated(func(a *domain.Cas2Application) time.Time { return a.CreatedAt })), nil
}

func (s *Store) LatestCas2ApplicationByNoms(ctx context.Context, nomsNumber string) (*domain.Cas2Application, error) {
	found := list(s, cas2AppsOf,
		func(a *domain.Cas2Application) bool { return a.NomsNumber == nomsNumber },
		byCreated(func(a *domain.Cas2Application) time.Time { return a.CreatedAt }),
	)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[len(found)-1], nil
}

func (s *Store) CreateCas2Assignment(ctx context.Context, a *domain.Cas2ApplicationAssignment) error {
	app, err := get(s, cas2AppsOf, a.ApplicationID)
	if err != nil {
		return err
	}
	app.Assignments = append(app.Assignments, *a)
	sort.SliceStable(app.Assignments, func(i, j int) bool {
		return app.Assignments[i].CreatedAt.Before(app.Assignments[j].CreatedAt)
	})
	return update(s, cas2AppsOf, app.ID, app)
}

func (s *Store) AbandonStaleCas2Applications(ctx context.Context, createdBefore, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, app := range s.st.cas2Apps {
		if app.SubmittedAt == nil && app.AbandonedAt == nil && app.CreatedAt.Before(createdBefore) {
			next := clone(app)
			at := now
			next.AbandonedAt = &at
			s.st.cas2Apps[id] = next
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateCas2Assessment(ctx context.Context, a *domain.Cas2Assessment) error {
	put(s, cas2AssessOf, a.ID, a)
	return nil
}

func (s *Store) GetCas2Assessment(ctx context.Context, id string) (*domain.Cas2Assessment, error) {
	return get(s, cas2AssessOf, id)
}

// Cas2Assessments returns every CAS2 assessment.
func (s *Store) Cas2Assessments() []domain.Cas2Assessment {
	return list(s, cas2AssessOf, nil, nil)
}

func (s *Store) CreateCas2StatusUpdate(ctx context.Context, u *domain.Cas2StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cas2Updates = append(s.st.cas2Updates, *u)
	return nil
}

func (s *Store) ListCas2StatusUpdates(ctx context.Context, applicationID string) ([]domain.Cas2StatusUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Cas2StatusUpdate
	for _, u := range s.st.cas2Updates {
		if u.ApplicationID == applicationID {
			out = append(out, u)
		}
	}
	return out, nil
}

// Domain events

func (s *Store) CreateDomainEvent(ctx context.Context, e *domain.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events = append(s.st.events, clone(e))
	return nil
}

func (s *Store) GetDomainEvent(ctx context.Context, id string) (*domain.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.st.events {
		if e.ID == id {
			return clone(e), nil
		}
	}
	return nil, repository.ErrNotFound
}

// Reference data

// PutReference stores a reference row.
func (s *Store) PutReference(r domain.ReferenceData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := slices.DeleteFunc(slices.Clone(s.st.reference[r.Kind]), func(x domain.ReferenceData) bool { return x.ID == r.ID })
	s.st.reference[r.Kind] = append(rows, r)
}

// PutPostcodeDistrict stores a postcode district.
func (s *Store) PutPostcodeDistrict(d *domain.PostcodeDistrict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.districts[d.Outcode] = clone(d)
}

func (s *Store) ListReferenceData(ctx context.Context, kind domain.ReferenceKind) ([]domain.ReferenceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.st.reference[kind])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetReferenceData(ctx context.Context, kind domain.ReferenceKind, id string) (*domain.ReferenceData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.st.reference[kind] {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetPostcodeDistrict(ctx context.Context, outcode string) (*domain.PostcodeDistrict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.districts[outcode]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(d), nil
}
