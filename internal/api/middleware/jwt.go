package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"approvedpremises.io/cas/internal/domain"
	apperrors "approvedpremises.io/cas/internal/pkg/errors"
	"approvedpremises.io/cas/internal/pkg/logger"
	"approvedpremises.io/cas/internal/service"
)

// JWTClaims are the claims issued by the identity provider.
type JWTClaims struct {
	Username    string   `json:"user_name"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	AuthSource  string   `json:"auth_source,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds signing and verification settings.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are accepted in addition to SigningKey during rotation.
	VerificationKeys [][]byte
	Issuer           string
	ExpiresIn        time.Duration
}

// UserResolver maps a verified token to a stored user.
type UserResolver interface {
	GetUserForRequest(ctx context.Context, p service.Principal) (*domain.User, error)
}

// GenerateToken signs a token for username. It backs local tooling and tests;
// production tokens come from the identity provider.
func GenerateToken(cfg JWTConfig, username, name, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.ExpiresIn)
	id, _ := uuid.NewV7()

	claims := JWTClaims{
		Username:   username,
		Name:       name,
		Email:      email,
		AuthSource: "delius",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    cfg.Issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies the signature against every configured key, then
// the issuer and time claims.
func (cfg JWTConfig) ValidateToken(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}, opts...)
		if err == nil && token.Valid {
			return claims, nil
		}
		lastErr = err
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if lastErr == nil {
		lastErr = jwt.ErrTokenUnverifiable
	}
	return nil, lastErr
}

// JWTAuth validates Bearer tokens and stores the resolved user in the
// request context.
func JWTAuth(cfg JWTConfig, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortProblem(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortProblem(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "invalid authorization header format"))
			return
		}

		claims, err := cfg.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortProblem(c, apperrors.Unauthorized(apperrors.CodeTokenExpired, "token expired"))
				return
			}
			abortProblem(c, apperrors.Unauthorized(apperrors.CodeTokenInvalid, "invalid token"))
			return
		}

		username := claims.Username
		if username == "" {
			username = claims.Subject
		}
		user, err := users.GetUserForRequest(c.Request.Context(), service.Principal{
			Username: username,
			Name:     claims.Name,
			Email:    claims.Email,
		})
		if err != nil {
			logger.FromContext(c.Request.Context()).Error("Resolve request user failed",
				zap.String("username", username), zap.Error(err))
			abortProblem(c, apperrors.Internal(apperrors.CodeInternal, "An internal error occurred"))
			return
		}

		c.Set(string(ctxKeyUser), user)
		c.Request = c.Request.WithContext(SetUser(c.Request.Context(), user))
		c.Next()
	}
}
