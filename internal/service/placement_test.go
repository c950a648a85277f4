package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/result"
)

// acceptedCAS1 returns an accepted application with one placement request.
func (f *fixture) acceptedCAS1(applicant *domain.User) (*domain.Application, *domain.PlacementRequest) {
	f.t.Helper()
	assessors, err := f.store.ListUsersWithRole(f.ctx, domain.RoleCAS1Assessor)
	require.NoError(f.t, err)
	require.NotEmpty(f.t, assessors)
	app, a := f.submittedCAS1(applicant)

	in := f.acceptance()
	in.PlacementDates = &domain.PlacementDate{ExpectedArrival: domain.Date(2026, 6, 1), Duration: 28}
	out, err := NewAssessmentService(f.deps).Accept(f.ctx, &assessors[0], a.ID, in)
	require.NoError(f.t, err)
	requireSuccess(f.t, out)

	requests, err := f.store.ListPlacementRequestsForApplication(f.ctx, app.ID)
	require.NoError(f.t, err)
	require.Len(f.t, requests, 1)
	return app, &requests[0]
}

func (f *fixture) cas1Premises(name string) *domain.Premises {
	lat, lon := 51.5, -0.12
	p := &domain.Premises{
		ID:                newID(),
		Name:              name,
		Service:           domain.ServiceCAS1,
		ProbationRegionID: "region-1",
		Latitude:          &lat,
		Longitude:         &lon,
		ApType:            domain.ApTypeNormal,
		Gender:            domain.GenderMale,
	}
	f.store.PutPremises(p)
	return p
}

func TestCreateSpaceBookingFromPlacementRequest(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	matcher := f.user("MATCHER", domain.RoleCAS1Matcher)
	app, pr := f.acceptedCAS1(f.user("APPLICANT"))
	premises := f.cas1Premises("Hope House")
	svc := NewPlacementRequestService(f.deps)

	denied, err := svc.CreateSpaceBooking(f.ctx, f.user("NOBODY"), pr.ID, NewSpaceBooking{PremisesID: premises.ID})
	require.NoError(t, err)
	assert.Equal(t, result.AuthUnauthorised, denied.Kind)

	bad, err := svc.CreateSpaceBooking(f.ctx, matcher, pr.ID, NewSpaceBooking{
		PremisesID:    "missing",
		ArrivalDate:   domain.Date(2026, 6, 10),
		DepartureDate: domain.Date(2026, 6, 1),
	})
	require.NoError(t, err)
	requireFields(t, bad, map[string]string{
		"$.premisesId":    "doesNotExist",
		"$.departureDate": "shouldBeAfterArrivalDate",
	})

	in := NewSpaceBooking{PremisesID: premises.ID, ArrivalDate: domain.Date(2026, 6, 1), DepartureDate: domain.Date(2026, 6, 29)}
	booked, err := svc.CreateSpaceBooking(f.ctx, matcher, pr.ID, in)
	require.NoError(t, err)
	requireSuccess(t, booked)
	sb := booked.Value.Value
	assert.Equal(t, domain.Date(2026, 6, 1), sb.CanonicalArrivalDate)

	stored, err := f.store.GetApplication(f.ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppStatusPlacementAllocated, stored.Status())
	made := f.eventsOfType(domain.EventBookingMade)
	require.Len(t, made, 1)
	assert.Equal(t, sb.ID, *made[0].BookingID)

	again, err := svc.CreateSpaceBooking(f.ctx, matcher, pr.ID, in)
	require.NoError(t, err)
	requireConflict(t, again, sb.ID)
	assert.Equal(t, "A booking already exists for this placement request", again.Value.Message)

	withdrawn, err := svc.Withdraw(f.ctx, matcher, pr.ID, "DUPLICATE")
	require.NoError(t, err)
	requireGeneral(t, withdrawn, "The placement request has a booking and cannot be withdrawn")
}

func TestWithdrawPlacementRequest_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	_, pr := f.acceptedCAS1(applicant)
	svc := NewPlacementRequestService(f.deps)

	for range 2 {
		out, err := svc.Withdraw(f.ctx, applicant, pr.ID, "NO_LONGER_NEEDED")
		require.NoError(t, err)
		requireSuccess(t, out)
		assert.True(t, out.Value.Value.IsWithdrawn)
	}
	assert.Len(t, f.eventsOfType(domain.EventMatchRequestWithdrawn), 1)
}

func TestPlacementApplication_Lifecycle(t *testing.T) {
	f := newFixture(t)
	assessor := f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	app, _ := f.acceptedCAS1(applicant)
	svc := NewPlacementApplicationService(f.deps)

	created, err := svc.Create(f.ctx, applicant, app.ID)
	require.NoError(t, err)
	requireSuccess(t, created)
	paID := created.Value.Value.ID

	empty, err := svc.Submit(f.ctx, applicant, paID, PlacementApplicationSubmission{Data: validData, PlacementType: "ROTL"})
	require.NoError(t, err)
	requireFields(t, empty, map[string]string{"$.placementDates": "empty"})

	submitted, err := svc.Submit(f.ctx, applicant, paID, PlacementApplicationSubmission{
		Data:          validData,
		PlacementType: "ROTL",
		Dates: []domain.PlacementDate{
			{ExpectedArrival: domain.Date(2026, 9, 1), Duration: 7},
			{ExpectedArrival: domain.Date(2026, 10, 1), Duration: 7},
		},
	})
	require.NoError(t, err)
	requireSuccess(t, submitted)

	decided, err := svc.RecordDecision(f.ctx, assessor, paID, "ACCEPTED")
	require.NoError(t, err)
	requireSuccess(t, decided)
	assert.Len(t, decided.Value.Value.PlacementRequests, 2)

	twice, err := svc.RecordDecision(f.ctx, assessor, paID, "REJECTED")
	require.NoError(t, err)
	requireGeneral(t, twice, "A decision has already been taken on this placement application")

	stored, err := f.store.GetPlacementApplication(f.ctx, paID)
	require.NoError(t, err)
	require.Len(t, stored.PlacementRequests, 2)
	assert.True(t, stored.CanBeWithdrawn())

	withdrawn, err := svc.Withdraw(f.ctx, applicant, paID, "CHANGE_IN_CIRCUMSTANCES")
	require.NoError(t, err)
	requireSuccess(t, withdrawn)
	assert.Len(t, f.eventsOfType(domain.EventPlacementApplicationWithdrawn), 1)
	assert.Len(t, f.eventsOfType(domain.EventMatchRequestWithdrawn), 2)
}

func TestCreatePlacementApplication_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	app, _ := f.submittedCAS1(applicant)

	out, err := NewPlacementApplicationService(f.deps).Create(f.ctx, applicant, app.ID)
	require.NoError(t, err)
	requireGeneral(t, out, "You cannot request a placement for an application that has not been approved")
}

func TestWithdrawPlacementApplication_WithBookedRequest(t *testing.T) {
	f := newFixture(t)
	assessor := f.user("ASSESSOR", domain.RoleCAS1Assessor)
	matcher := f.user("MATCHER", domain.RoleCAS1Matcher)
	applicant := f.user("APPLICANT")
	app, _ := f.acceptedCAS1(applicant)
	premises := f.cas1Premises("Hope House")
	svc := NewPlacementApplicationService(f.deps)

	created, err := svc.Create(f.ctx, applicant, app.ID)
	require.NoError(t, err)
	paID := created.Value.Value.ID
	_, err = svc.Submit(f.ctx, applicant, paID, PlacementApplicationSubmission{
		Data:          validData,
		PlacementType: "ADDITIONAL_PLACEMENT",
		Dates:         []domain.PlacementDate{{ExpectedArrival: domain.Date(2026, 9, 1), Duration: 14}},
	})
	require.NoError(t, err)
	decided, err := svc.RecordDecision(f.ctx, assessor, paID, "ACCEPTED")
	require.NoError(t, err)
	requireSuccess(t, decided)
	prID := decided.Value.Value.PlacementRequests[0].ID

	booked, err := NewPlacementRequestService(f.deps).CreateSpaceBooking(f.ctx, matcher, prID, NewSpaceBooking{
		PremisesID:    premises.ID,
		ArrivalDate:   domain.Date(2026, 9, 1),
		DepartureDate: domain.Date(2026, 9, 15),
	})
	require.NoError(t, err)
	requireSuccess(t, booked)

	stored, err := f.store.GetPlacementApplication(f.ctx, paID)
	require.NoError(t, err)
	assert.False(t, stored.CanBeWithdrawn())

	out, err := svc.Withdraw(f.ctx, applicant, paID, "CHANGE_IN_CIRCUMSTANCES")
	require.NoError(t, err)
	requireGeneral(t, out, "The placement application has a booking and cannot be withdrawn")

	denied, err := svc.Withdraw(f.ctx, f.user("STRANGER"), paID, "CHANGE_IN_CIRCUMSTANCES")
	require.NoError(t, err)
	assert.Equal(t, result.AuthUnauthorised, denied.Kind)
}

func TestCancelledSpaceBookingFreesPlacementRequest(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	matcher := f.user("MATCHER", domain.RoleCAS1Matcher)
	manager := f.user("MANAGER", domain.RoleCAS1Manager)
	applicant := f.user("APPLICANT")
	app, pr := f.acceptedCAS1(applicant)
	p := f.cas1Premises("Hope House")
	requests := NewPlacementRequestService(f.deps)
	spaces := NewSpaceBookingService(f.deps)
	in := NewSpaceBooking{PremisesID: p.ID, ArrivalDate: domain.Date(2026, 6, 1), DepartureDate: domain.Date(2026, 6, 29)}

	bookAndCancel := func() string {
		booked, err := requests.CreateSpaceBooking(f.ctx, matcher, pr.ID, in)
		require.NoError(t, err)
		requireSuccess(t, booked)
		id := booked.Value.Value.ID
		cancelled, err := spaces.Cancel(f.ctx, manager, p.ID, id, CancellationInput{Date: domain.Date(2026, 5, 20), ReasonID: "cancel-1"})
		require.NoError(t, err)
		requireSuccess(t, cancelled)
		return id
	}

	first := bookAndCancel()
	stored, err := f.store.GetPlacementRequest(f.ctx, pr.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SpaceBookingID)
	storedApp, err := f.store.GetApplication(f.ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppStatusAwaitingPlacement, storedApp.Status())

	second := bookAndCancel()
	assert.NotEqual(t, first, second)
	assert.Len(t, f.eventsOfType(domain.EventBookingMade), 2)

	withdrawn, err := requests.Withdraw(f.ctx, matcher, pr.ID, "NO_LONGER_NEEDED")
	require.NoError(t, err)
	requireSuccess(t, withdrawn)
	assert.True(t, withdrawn.Value.Value.IsWithdrawn)

	out, err := NewApplicationService(f.deps).Withdraw(f.ctx, applicant, app.ID, "DUPLICATE_APPLICATION", nil)
	require.NoError(t, err)
	requireSuccess(t, out)
	assert.Equal(t, domain.AppStatusWithdrawn, out.Value.Value.Status())
}
