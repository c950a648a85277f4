package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/events"
	"approvedpremises.io/cas/internal/jsonschema"
	"approvedpremises.io/cas/internal/metrics"
	"approvedpremises.io/cas/internal/notification"
	"approvedpremises.io/cas/internal/repository/memstore"
	"approvedpremises.io/cas/internal/service"
)

func TestBuildCORSConfig_DefaultsToLocalOrigins(t *testing.T) {
	got := buildCORSConfig(&config.Config{})

	assert.False(t, got.AllowAllOrigins)
	assert.True(t, got.AllowCredentials)
	assert.Equal(t, defaultCORSOrigins, got.AllowOrigins)
}

func TestBuildCORSConfig_TrimsConfiguredOrigins(t *testing.T) {
	got := buildCORSConfig(&config.Config{Server: config.ServerConfig{
		CORSAllowedOrigins: []string{" https://cas.example.com ", ""},
	}})

	assert.Equal(t, []string{"https://cas.example.com"}, got.AllowOrigins)
}

func TestBuildCORSConfig_WildcardDisablesCredentials(t *testing.T) {
	got := buildCORSConfig(&config.Config{Server: config.ServerConfig{
		CORSAllowedOrigins: []string{"https://cas.example.com", "*"},
	}})

	assert.True(t, got.AllowAllOrigins)
	assert.False(t, got.AllowCredentials)
	assert.Empty(t, got.AllowOrigins)
}

type pinger struct{}

func (pinger) Ping(context.Context) error { return nil }

func testRouter(t *testing.T) (http.Handler, middleware.JWTConfig, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	emitter, err := events.NewEmitter(config.DomainEventsConfig{}, false, nil)
	require.NoError(t, err)
	schemas, err := jsonschema.LoadBuiltin()
	require.NoError(t, err)

	deps := service.Deps{
		Store:     store,
		Reference: service.NewReferenceDataService(store, nil, nil),
		Schemas:   schemas,
		Events:    emitter,
		Emails:    notification.NewTriggers(config.NotifyConfig{}),
	}
	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte("router-test-key-12345678901234567890"),
		Issuer:     "hmpps-auth",
		ExpiresIn:  time.Hour,
	}
	router, err := newRouter(routerDeps{
		Config:  &config.Config{},
		Server:  handlers.NewServer(handlers.ServerDeps{Pinger: pinger{}, Service: deps}),
		JWT:     jwtCfg,
		Users:   service.NewUserService(deps),
		Metrics: metrics.New(),
	})
	require.NoError(t, err)
	return router, jwtCfg, store
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router, _, _ := testRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	router, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.ProblemContentType, w.Header().Get("Content-Type"))
}

func TestRouter_ProfileCreatesUserOnFirstRequest(t *testing.T) {
	router, jwtCfg, store := testRouter(t)
	token, _, err := middleware.GenerateToken(jwtCfg, "jimsnowldap", "Jim Snow", "jim@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "JIMSNOWLDAP")
	u, err := store.GetUserByUsername(context.Background(), "JIMSNOWLDAP")
	require.NoError(t, err)
	assert.Equal(t, "Jim Snow", u.Name)
}

func TestRouter_ValidatesRequestsAgainstContract(t *testing.T) {
	router, jwtCfg, store := testRouter(t)
	require.NoError(t, store.CreateUser(context.Background(), &domain.User{
		ID:             "u-admin",
		DeliusUsername: "ADMIN",
		Roles:          []domain.UserRole{domain.RoleCAS1Admin},
	}))
	token, _, err := middleware.GenerateToken(jwtCfg, "ADMIN", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/seed", bytes.NewBufferString(`{"seedType":"user"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "OPENAPI_REQUEST_INVALID")
}
