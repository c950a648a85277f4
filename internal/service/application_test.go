package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/pkg/result"
)

func TestCreateApplication(t *testing.T) {
	f := newFixture(t)
	svc := NewApplicationService(f.deps)
	referrer := f.inRegion(f.user("REFERRER", domain.RoleCAS3Referrer), "region-1")

	invalid, err := svc.Create(f.ctx, referrer, NewApplication{Service: "cas9"})
	require.NoError(t, err)
	require.Equal(t, result.FieldValidationError, invalid.Kind)
	assert.Equal(t, map[string]string{"$.crn": "empty", "$.service": "invalid"}, map[string]string(invalid.Fields))

	cas1, err := svc.Create(f.ctx, referrer, NewApplication{Service: domain.ServiceCAS1, CRN: " X1 "})
	require.NoError(t, err)
	require.True(t, cas1.IsSuccess())
	assert.Equal(t, "X1", cas1.Value.CRN)
	assert.Equal(t, domain.AppStatusStarted, cas1.Value.Status())
	assert.Equal(t, domain.ApTypeNormal, cas1.Value.AP.ApType)
	assert.Equal(t, string(jsonschema.TypeApprovedPremisesApplication)+"-v1", cas1.Value.SchemaVersion)

	cas3, err := svc.Create(f.ctx, referrer, NewApplication{Service: domain.ServiceCAS3, CRN: "X2"})
	require.NoError(t, err)
	require.True(t, cas3.IsSuccess())
	assert.Equal(t, "region-1", cas3.Value.TA.ProbationRegionID)
}

func TestSubmitApplication(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	svc := NewApplicationService(f.deps)
	created, err := svc.Create(f.ctx, applicant, NewApplication{Service: domain.ServiceCAS1, CRN: "X1"})
	require.NoError(t, err)
	id := created.Value.ID

	empty, err := svc.Submit(f.ctx, applicant, id, ApplicationSubmission{Document: "{}"})
	require.NoError(t, err)
	requireFields(t, empty, map[string]string{"$.data": "empty"})

	_, err = svc.Update(f.ctx, applicant, id, `{"summary":42}`)
	require.NoError(t, err)
	wrong, err := svc.Submit(f.ctx, applicant, id, ApplicationSubmission{Document: "{}"})
	require.NoError(t, err)
	requireFields(t, wrong, map[string]string{"$.data": "invalid"})
	assert.Empty(t, f.store.Events())

	stranger, err := svc.Update(f.ctx, f.user("STRANGER"), id, validData)
	require.NoError(t, err)
	assert.Equal(t, result.AuthUnauthorised, stranger.Kind)

	_, err = svc.Update(f.ctx, applicant, id, validData)
	require.NoError(t, err)
	submitted, err := svc.Submit(f.ctx, applicant, id, ApplicationSubmission{
		Document:       `{"doc":true}`,
		ReleaseType:    "licence",
		TargetLocation: "SW1A",
	})
	require.NoError(t, err)
	requireSuccess(t, submitted)

	stored, err := f.store.GetApplication(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AppStatusSubmitted, stored.Status())
	assert.Equal(t, validData, *stored.Data)
	assert.Equal(t, `{"doc":true}`, *stored.Document)
	assert.Equal(t, "licence", stored.AP.ReleaseType)

	a := f.assessmentOf(id)
	require.NotNil(t, a.AllocatedToUserID)
	assert.Len(t, f.eventsOfType(domain.EventApplicationSubmitted), 1)
	assert.Equal(t, 1, f.jobsOfKind(notification.SendKind))

	again, err := svc.Update(f.ctx, applicant, id, validData)
	require.NoError(t, err)
	requireGeneral(t, again, "This application has already been submitted")
}

func TestSubmitApplication_OutdatedSchema(t *testing.T) {
	f := newFixture(t)
	applicant := f.user("APPLICANT")
	svc := NewApplicationService(f.deps)
	created, err := svc.Create(f.ctx, applicant, NewApplication{Service: domain.ServiceCAS3, CRN: "X1"})
	require.NoError(t, err)

	f.registerSchema(jsonschema.TypeTemporaryAccommodationApplication, "ta-v2", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	out, err := svc.Update(f.ctx, applicant, created.Value.ID, validData)
	require.NoError(t, err)
	requireGeneral(t, out, "The schema version is outdated")
}

func TestWithdrawApplication(t *testing.T) {
	f := newFixture(t)
	assessor := f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	app, _ := f.acceptedCAS1(applicant)

	pas := NewPlacementApplicationService(f.deps)
	created, err := pas.Create(f.ctx, applicant, app.ID)
	require.NoError(t, err)
	requireSuccess(t, created)

	svc := NewApplicationService(f.deps)
	denied, err := svc.Withdraw(f.ctx, assessor, app.ID, "DUPLICATE_APPLICATION", nil)
	require.NoError(t, err)
	assert.Equal(t, result.AuthUnauthorised, denied.Kind)

	for range 2 {
		out, err := svc.Withdraw(f.ctx, applicant, app.ID, "DUPLICATE_APPLICATION", nil)
		require.NoError(t, err)
		requireSuccess(t, out)
		assert.Equal(t, domain.AppStatusWithdrawn, out.Value.Value.Status())
	}
	assert.Len(t, f.eventsOfType(domain.EventApplicationWithdrawn), 1)

	requests, err := f.store.ListPlacementRequestsForApplication(f.ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.True(t, requests[0].IsWithdrawn)
	assert.Equal(t, withdrawnWithApplication, *requests[0].WithdrawalReason)

	pa, err := f.store.GetPlacementApplication(f.ctx, created.Value.Value.ID)
	require.NoError(t, err)
	assert.True(t, pa.IsWithdrawn)
}

func TestWithdrawApplication_Booked(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	matcher := f.user("MATCHER", domain.RoleCAS1Matcher)
	applicant := f.user("APPLICANT")
	app, pr := f.acceptedCAS1(applicant)
	p := f.cas1Premises("Hope House")
	booked, err := NewPlacementRequestService(f.deps).CreateSpaceBooking(f.ctx, matcher, pr.ID, NewSpaceBooking{
		PremisesID: p.ID, ArrivalDate: domain.Date(2026, 6, 1), DepartureDate: domain.Date(2026, 6, 29),
	})
	require.NoError(t, err)
	requireSuccess(t, booked)

	out, err := NewApplicationService(f.deps).Withdraw(f.ctx, applicant, app.ID, "DUPLICATE_APPLICATION", nil)
	require.NoError(t, err)
	requireGeneral(t, out, "The application has bookings and cannot be withdrawn")
	assert.Empty(t, f.eventsOfType(domain.EventApplicationWithdrawn))
}

func TestApplicationVisibility(t *testing.T) {
	f := newFixture(t)
	f.user("ASSESSOR", domain.RoleCAS1Assessor)
	applicant := f.user("APPLICANT")
	other := f.user("OTHER")
	app, _ := f.submittedCAS1(applicant)
	svc := NewApplicationService(f.deps)

	mine, err := svc.ListForUser(f.ctx, applicant, domain.ServiceCAS1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.ListForUser(f.ctx, other, domain.ServiceCAS1)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	missing, err := svc.GetForUser(f.ctx, applicant, "missing")
	require.NoError(t, err)
	assert.Equal(t, result.AuthNotFound, missing.Kind)
	assert.Equal(t, "Application", missing.EntityType)

	got, err := svc.GetForUser(f.ctx, applicant, app.ID)
	require.NoError(t, err)
	assert.Equal(t, result.AuthSuccess, got.Kind)
}
