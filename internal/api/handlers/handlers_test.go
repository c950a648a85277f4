package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/repository/memstore"
	"approvedpremises.io/cas/internal/service"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fixture struct {
	t      *testing.T
	store  *memstore.Store
	server *Server
	router *gin.Engine
	caller *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	emitter, err := events.NewEmitter(config.DomainEventsConfig{PublishEnabled: false, MaxAttempts: 3}, false, nil)
	require.NoError(t, err)

	schemas := jsonschema.NewRegistry()
	for _, typ := range []jsonschema.Type{
		jsonschema.TypeApprovedPremisesApplication,
		jsonschema.TypeTemporaryAccommodationApplication,
		jsonschema.TypeCas2Application,
		jsonschema.TypeApprovedPremisesAssessment,
		jsonschema.TypeTemporaryAccommodationAssessment,
		jsonschema.TypePlacementApplication,
	} {
		schema, err := jsonschema.CompileSchema(map[string]any{"type": "object"})
		require.NoError(t, err)
		schemas.Register(&jsonschema.Document{ID: string(typ) + "-v1", Type: typ, AddedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Schema: schema})
	}

	f := &fixture{t: t, store: store}
	f.server = NewServer(ServerDeps{
		Pinger: fakePinger{},
		Service: service.Deps{
			Store:       store,
			Reference:   service.NewReferenceDataService(store, nil, nil),
			Schemas:     schemas,
			Events:      emitter,
			Emails:      notification.NewTriggers(config.NotifyConfig{FrontendURL: "https://cas.test"}),
			FrontendURL: "https://cas.test",
		},
	})

	f.router = gin.New()
	f.router.Use(middleware.RequestID(), middleware.ErrorHandler())
	f.router.GET("/health", f.server.Health)
	authed := f.router.Group("", func(c *gin.Context) {
		if f.caller != nil {
			c.Request = c.Request.WithContext(middleware.SetUser(c.Request.Context(), f.caller))
		}
		c.Next()
	})
	RegisterHandlers(authed, f.server)
	return f
}

func (f *fixture) user(name string, roles ...domain.UserRole) *domain.User {
	f.t.Helper()
	u := &domain.User{ID: uuid.NewString(), DeliusUsername: name, Name: name, Roles: roles, CreatedAt: time.Now()}
	require.NoError(f.t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) as(u *domain.User) *fixture {
	f.caller = u
	return f
}

func (f *fixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type problem struct {
	Status        int    `json:"status"`
	Code          string `json:"code"`
	Detail        string `json:"detail"`
	InvalidParams []struct {
		PropertyName string `json:"propertyName"`
		ErrorType    string `json:"errorType"`
	} `json:"invalid-params"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UP", decode[map[string]any](t, w)["status"])

	f.server.pinger = fakePinger{err: errors.New("connection refused")}
	w = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	u := f.user("JSMITH", domain.RoleCAS1Assessor)

	w := f.as(u).do(http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[UserView](t, w)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []domain.UserRole{domain.RoleCAS1Assessor}, got.Roles)
}

func TestApplication_DataRoundTripsUnchanged(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("REFERRER"))

	w := f.do(http.MethodPost, "/applications", map[string]any{"crn": "X320741"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[ApplicationView](t, w)
	assert.Equal(t, domain.ServiceCAS1, created.Type)
	assert.Equal(t, "STARTED", created.Status)
	assert.False(t, created.OutdatedSchema)

	data := `{"basic-information":{"reason":"b","items":[3,1,2]}}`
	w = f.do(http.MethodPut, "/applications/"+created.ID, `{"data":`+data+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/applications/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, data, string(decode[ApplicationView](t, w).Data))
}

func TestApplication_AccessAndMissing(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("OWNER"))
	created := decode[ApplicationView](t, f.do(http.MethodPost, "/applications", map[string]any{"crn": "X1"}))

	f.as(f.user("STRANGER"))
	w := f.do(http.MethodGet, "/applications/"+created.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/applications/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, middleware.ProblemContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusNotFound, decode[problem](t, w).Status)
}

func TestApplication_InvalidServiceName(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("REFERRER"))

	w := f.do(http.MethodPost, "/applications", map[string]any{"crn": "X1"}, middleware.ServiceNameHeader, "cas9")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/applications", map[string]any{"crn": "X1"}, middleware.ServiceNameHeader, string(domain.ServiceCAS2))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplication_SubmissionNeedsDocument(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("REFERRER"))
	created := decode[ApplicationView](t, f.do(http.MethodPost, "/applications", map[string]any{"crn": "X1"}))

	w := f.do(http.MethodPost, "/applications/"+created.ID+"/submission", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplication_SubmitWithEmptyDataIsFieldError(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("REFERRER"))
	created := decode[ApplicationView](t, f.do(http.MethodPost, "/applications", map[string]any{"crn": "X1"}))

	w := f.do(http.MethodPost, "/applications/"+created.ID+"/submission", map[string]any{"translatedDocument": map[string]any{"a": 1}})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	p := decode[problem](t, w)
	require.NotEmpty(t, p.InvalidParams)
	assert.Equal(t, "$.data", p.InvalidParams[0].PropertyName)
}

func TestReferenceData(t *testing.T) {
	f := newFixture(t)
	f.store.PutReference(domain.ReferenceData{Kind: domain.KindDepartureReasons, ID: "d-1", Name: "Planned", ServiceScope: string(domain.ServiceCAS3), IsActive: true})
	f.as(f.user("ANYONE"))

	w := f.do(http.MethodGet, "/reference-data/departure-reasons", nil, middleware.ServiceNameHeader, string(domain.ServiceCAS1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.ReferenceData](t, w))

	w = f.do(http.MethodGet, "/reference-data/departure-reasons", nil, middleware.ServiceNameHeader, string(domain.ServiceCAS3))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ReferenceData](t, w), 1)

	w = f.do(http.MethodGet, "/reference-data/lost-property", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookings_CAS3ConflictIsReported(t *testing.T) {
	f := newFixture(t)
	region := "region-1"
	f.store.PutPremises(&domain.Premises{ID: "p-1", Name: "Elm House", Service: domain.ServiceCAS3, ProbationRegionID: region})
	f.store.PutBed(&domain.Bed{ID: "bed-1", PremisesID: "p-1", Name: "Bed 1"})
	u := f.user("HOUSING", domain.RoleCAS3Assessor)
	u.ProbationRegionID = &region
	f.as(u)

	body := map[string]any{"crn": "X1", "arrivalDate": "2026-06-01", "departureDate": "2026-06-10", "bedId": "bed-1"}
	w := f.do(http.MethodPost, "/premises/p-1/bookings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[BookingView](t, w)
	assert.Equal(t, domain.BookingProvisional, first.Status)
	assert.Equal(t, "2026-06-01", first.ArrivalDate.Format(domain.DateLayout))

	w = f.do(http.MethodPost, "/premises/p-1/bookings", body)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/premises/p-1/bookings/"+first.ID+"/confirmations", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.BookingConfirmed, decode[BookingView](t, w).Status)

	w = f.do(http.MethodGet, "/premises/p-1/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]BookingView](t, w), 1)
}

func TestBookings_UnknownPremises(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("MANAGER", domain.RoleCAS1Manager))

	w := f.do(http.MethodGet, "/premises/nowhere/bookings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCas2_CreateAndGetIncludesStatusUpdates(t *testing.T) {
	f := newFixture(t)
	prison := "LEI"
	u := f.user("POM", domain.RoleCAS2POM)
	u.PrisonCode = &prison
	f.as(u)

	w := f.do(http.MethodPost, "/cas2/applications", map[string]any{"crn": "X1", "nomsNumber": "A1234BC"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[Cas2ApplicationView](t, w)

	w = f.do(http.MethodGet, "/cas2/applications/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]any](t, w)
	assert.Equal(t, []any{}, got["statusUpdates"])

	w = f.do(http.MethodGet, "/cas2/applications?scope=prison", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]Cas2ApplicationView](t, w), 1)
}

func TestCas2_StatusUpdateNeedsAssessorRole(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("POM", domain.RoleCAS2POM))

	w := f.do(http.MethodPost, "/cas2/assessments/"+uuid.NewString()+"/status-updates", map[string]any{"newStatus": "offerDeclined"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEvents_NotFoundAndRaw(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("CONSUMER"))

	w := f.do(http.MethodGet, "/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	envelope := `{"id":"e-1","timestamp":"2026-05-11T09:00:00Z","eventType":"approved-premises.booking.made","eventDetails":{}}`
	require.NoError(t, f.store.CreateDomainEvent(context.Background(), &domain.DomainEvent{
		ID: "e-1", CRN: "X1", Type: domain.EventBookingMade, OccurredAt: time.Now(), CreatedAt: time.Now(), Data: envelope, Service: domain.ServiceCAS1,
	}))
	w = f.do(http.MethodGet, "/events/e-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, envelope, w.Body.String())
}

func TestSeed_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("ASSESSOR", domain.RoleCAS1Assessor))

	w := f.do(http.MethodPost, "/seed", map[string]any{"seedType": "characteristics", "fileName": "characteristics.csv"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSeed_RejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	f.as(f.user("ADMIN", domain.RoleCAS1Admin))

	w := f.do(http.MethodPost, "/seed", map[string]any{"seedType": "unicorns", "fileName": "x.csv"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "$.seedType", decode[problem](t, w).InvalidParams[0].PropertyName)
}

func TestPathParam_RejectsBlank(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: " "}}

	_, ok := pathParam(c, "id")
	assert.False(t, ok)
	require.Len(t, c.Errors, 1)
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-02-28"`), &d))
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d.Time)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-02-28"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"28/02/2026"`), &d))
}
