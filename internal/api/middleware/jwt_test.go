package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/service"
)

type fakeUserResolver struct {
	got service.Principal
	err error
}

func (f *fakeUserResolver) GetUserForRequest(_ context.Context, p service.Principal) (*domain.User, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: "u-" + p.Username, DeliusUsername: p.Username, Name: p.Name}, nil
}

func TestJWTConfigValidateToken_Success(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "hmpps-auth",
		ExpiresIn:  time.Hour,
	}

	token, _, err := GenerateToken(cfg, "JIMSNOWLDAP", "Jim Snow", "jim@example.com")
	require.NoError(t, err)

	claims, err := cfg.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "JIMSNOWLDAP", claims.Username)
	assert.Equal(t, "Jim Snow", claims.Name)
	assert.Equal(t, "delius", claims.AuthSource)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.NotBefore)
}

func TestJWTConfigValidateToken_RejectsInvalidIssuer(t *testing.T) {
	issuerCfg := JWTConfig{
		SigningKey: []byte("issuer-key-123456789012345678901234"),
		Issuer:     "hmpps-auth",
		ExpiresIn:  time.Hour,
	}
	token, _, err := GenerateToken(issuerCfg, "JIMSNOWLDAP", "", "")
	require.NoError(t, err)

	_, err = JWTConfig{SigningKey: issuerCfg.SigningKey, Issuer: "other-issuer"}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTConfigValidateToken_SupportsVerificationKeyRotation(t *testing.T) {
	oldKey := []byte("old-key-123456789012345678901234567890")
	newKey := []byte("new-key-123456789012345678901234567890")

	token, _, err := GenerateToken(JWTConfig{
		SigningKey: oldKey,
		Issuer:     "hmpps-auth",
		ExpiresIn:  time.Hour,
	}, "JIMSNOWLDAP", "", "")
	require.NoError(t, err)

	claims, err := JWTConfig{
		SigningKey:       newKey,
		VerificationKeys: [][]byte{oldKey},
		Issuer:           "hmpps-auth",
	}.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "JIMSNOWLDAP", claims.Username)
}

func TestJWTConfigValidateToken_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		Username: "JIMSNOWLDAP",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "hmpps-auth",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = JWTConfig{
		SigningKey: []byte("signing-key-123456789012345678901234"),
		Issuer:     "hmpps-auth",
	}.ValidateToken(tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTConfigValidateToken_RejectsExpired(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: []byte("expiry-key-1234567890123456789012345"),
		ExpiresIn:  -time.Minute,
	}
	token, _, err := GenerateToken(cfg, "JIMSNOWLDAP", "", "")
	require.NoError(t, err)

	_, err = cfg.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTConfigValidateToken_RequiresSigningKey(t *testing.T) {
	token, _, err := GenerateToken(JWTConfig{
		SigningKey: []byte("key-to-sign-valid-token-1234567890123456"),
		ExpiresIn:  time.Hour,
	}, "JIMSNOWLDAP", "", "")
	require.NoError(t, err)

	_, err = JWTConfig{}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenUnverifiable)
}

func jwtRouter(cfg JWTConfig, users UserResolver) *gin.Engine {
	router := gin.New()
	router.Use(ErrorHandler(), JWTAuth(cfg, users))
	router.GET("/profile", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUser(c.Request.Context()).ID})
	})
	return router
}

func TestJWTAuth(t *testing.T) {
	cfg := JWTConfig{SigningKey: []byte("auth-key-12345678901234567890123456"), ExpiresIn: time.Hour}
	valid, _, err := GenerateToken(cfg, "JIMSNOWLDAP", "Jim Snow", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + valid, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUserResolver{}
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			jwtRouter(cfg, users).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"id":"u-JIMSNOWLDAP"}`, w.Body.String())
				assert.Equal(t, "Jim Snow", users.got.Name)
			} else {
				assert.Equal(t, ProblemContentType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestJWTAuth_ResolverFailureIs500(t *testing.T) {
	cfg := JWTConfig{SigningKey: []byte("auth-key-12345678901234567890123456"), ExpiresIn: time.Hour}
	token, _, err := GenerateToken(cfg, "JIMSNOWLDAP", "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	jwtRouter(cfg, &fakeUserResolver{err: errors.New("db down")}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
