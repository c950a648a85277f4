package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/repository"
	"approvedpremises.io/cas/internal/repository/memstore"
)

const validData = `{"summary":"ready"}`

var schemaTypes = []jsonschema.Type{
	jsonschema.TypeApprovedPremisesApplication,
	jsonschema.TypeTemporaryAccommodationApplication,
	jsonschema.TypeCas2Application,
	jsonschema.TypeApprovedPremisesAssessment,
	jsonschema.TypeTemporaryAccommodationAssessment,
	jsonschema.TypePlacementApplication,
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	deps  Deps
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	emitter, err := events.NewEmitter(config.DomainEventsConfig{PublishEnabled: true, MaxAttempts: 3}, true, nil)
	require.NoError(t, err)

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		now:   time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC),
	}
	f.deps = Deps{
		Store:       store,
		Reference:   NewReferenceDataService(store, nil, nil),
		Schemas:     jsonschema.NewRegistry(),
		Events:      emitter,
		Emails:      notification.NewTriggers(config.NotifyConfig{FrontendURL: "https://cas.test", CAS2ReferralsAddress: "referrals@cas.test"}),
		FrontendURL: "https://cas.test",
		Now:         func() time.Time { return f.now },
	}
	for _, typ := range schemaTypes {
		f.registerSchema(typ, string(typ)+"-v1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	}

	store.PutPostcodeDistrict(&domain.PostcodeDistrict{ID: "district-sw1a", Outcode: "SW1A", Latitude: 51.501, Longitude: -0.141})
	store.PutReference(domain.ReferenceData{Kind: domain.KindCharacteristics, ID: "isIAP", Name: "IAP", ServiceScope: domain.ScopeAll, IsActive: true})
	store.PutReference(domain.ReferenceData{Kind: domain.KindCancellationReasons, ID: "cancel-1", Name: "Duplicate", ServiceScope: domain.ScopeAll, IsActive: true})
	store.PutReference(domain.ReferenceData{Kind: domain.KindDepartureReasons, ID: "departure-1", Name: "Planned move-on", ServiceScope: domain.ScopeAll, IsActive: true})
	store.PutReference(domain.ReferenceData{Kind: domain.KindMoveOnCategories, ID: "move-on-1", Name: "Rented", ServiceScope: domain.ScopeAll, IsActive: true})
	store.PutReference(domain.ReferenceData{Kind: domain.KindNonArrivalReasons, ID: "non-arrival-1", Name: "Recalled", IsActive: true})
	return f
}

// registerSchema adds a schema that requires a string summary.
func (f *fixture) registerSchema(typ jsonschema.Type, id string, addedAt time.Time) {
	f.t.Helper()
	schema, err := jsonschema.CompileSchema(map[string]any{
		"type":     "object",
		"required": []any{"summary"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
	})
	require.NoError(f.t, err)
	f.deps.Schemas.Register(&jsonschema.Document{ID: id, Type: typ, AddedAt: addedAt, Schema: schema})
}

func (f *fixture) user(name string, roles ...domain.UserRole) *domain.User {
	f.t.Helper()
	u := &domain.User{
		ID:             newID(),
		DeliusUsername: name,
		Name:           name,
		Email:          name + "@cas.test",
		Roles:          roles,
		CreatedAt:      f.now,
	}
	f.now = f.now.Add(time.Second)
	require.NoError(f.t, f.store.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) inRegion(u *domain.User, region string) *domain.User {
	u.ProbationRegionID = &region
	return u
}

// submittedCAS1 creates and submits a CAS1 application and returns it with
// its assessment.
func (f *fixture) submittedCAS1(applicant *domain.User) (*domain.Application, *domain.Assessment) {
	f.t.Helper()
	apps := NewApplicationService(f.deps)
	created, err := apps.Create(f.ctx, applicant, NewApplication{Service: domain.ServiceCAS1, CRN: "X320741"})
	require.NoError(f.t, err)
	require.True(f.t, created.IsSuccess())
	_, err = apps.Update(f.ctx, applicant, created.Value.ID, validData)
	require.NoError(f.t, err)
	submitted, err := apps.Submit(f.ctx, applicant, created.Value.ID, ApplicationSubmission{Document: `{"doc":true}`})
	require.NoError(f.t, err)
	requireSuccess(f.t, submitted)
	return submitted.Value.Value, f.assessmentOf(submitted.Value.Value.ID)
}

func (f *fixture) assessmentOf(applicationID string) *domain.Assessment {
	f.t.Helper()
	list, err := f.store.ListAssessments(f.ctx, repository.AssessmentFilter{})
	require.NoError(f.t, err)
	for i := range list {
		if list[i].ApplicationID == applicationID && !list[i].IsReallocated() {
			return &list[i]
		}
	}
	f.t.Fatalf("no live assessment for application %s", applicationID)
	return nil
}

func (f *fixture) acceptance() AssessmentAcceptance {
	return AssessmentAcceptance{
		Data: validData,
		Requirements: RequirementsInput{
			Gender:            domain.GenderMale,
			ApType:            domain.ApTypeNormal,
			PostcodeDistrict:  "sw1a",
			Radius:            50,
			EssentialCriteria: []string{"isIAP"},
		},
	}
}

func (f *fixture) eventsOfType(t domain.EventType) []domain.DomainEvent {
	var out []domain.DomainEvent
	for _, ev := range f.store.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fixture) jobsOfKind(kind string) int {
	n := 0
	for _, j := range f.store.Jobs() {
		if j.Kind() == kind {
			n++
		}
	}
	return n
}

func requireSuccess[T any](t *testing.T, o Outcome[T]) {
	t.Helper()
	require.Equal(t, result.AuthSuccess, o.Kind, "outer result")
	require.Equal(t, result.ValidSuccess, o.Value.Kind, "inner result: %s %v", o.Value.Message, o.Value.Fields)
}

func requireGeneral[T any](t *testing.T, o Outcome[T], message string) {
	t.Helper()
	require.Equal(t, result.AuthSuccess, o.Kind)
	require.Equal(t, result.GeneralValidationError, o.Value.Kind)
	require.Equal(t, message, o.Value.Message)
}

func requireFields[T any](t *testing.T, o Outcome[T], fields map[string]string) {
	t.Helper()
	require.Equal(t, result.AuthSuccess, o.Kind)
	require.Equal(t, result.FieldValidationError, o.Value.Kind)
	require.Equal(t, fields, map[string]string(o.Value.Fields))
}

func requireConflict[T any](t *testing.T, o Outcome[T], id string) {
	t.Helper()
	require.Equal(t, result.AuthSuccess, o.Kind)
	require.Equal(t, result.ConflictError, o.Value.Kind)
	require.Equal(t, id, o.Value.ConflictingID)
}

func ptrDate(y int, m time.Month, d int) *time.Time {
	t := domain.Date(y, m, d)
	return &t
}
