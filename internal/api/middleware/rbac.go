package middleware

import (
	"github.com/gin-gonic/gin"

	"approvedpremises.io/cas/internal/domain"
	apperrors "approvedpremises.io/cas/internal/pkg/errors"
)

// RequireRole allows the request when the resolved user holds at least one
// of roles. It must run after JWTAuth.
func RequireRole(roles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c.Request.Context())
		if user == nil {
			abortProblem(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "not authenticated"))
			return
		}
		if len(roles) == 0 || !user.HasAnyRole(roles...) {
			abortProblem(c, apperrors.Forbidden("You are not authorized to access this endpoint"))
			return
		}
		c.Next()
	}
}

// RequireServiceName parses X-Service-Name, rejecting unknown values, and
// stores the service under "service_name". A missing header selects def.
func RequireServiceName(def domain.ServiceName, allowed ...domain.ServiceName) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ServiceNameHeader)
		svc := def
		if raw != "" {
			parsed, ok := domain.ParseServiceName(raw)
			if !ok {
				abortProblem(c, apperrors.ErrInvalidServiceName(raw))
				return
			}
			svc = parsed
		}
		if len(allowed) > 0 && !containsService(allowed, svc) {
			abortProblem(c, apperrors.ErrInvalidServiceName(string(svc)))
			return
		}
		c.Set(ctxKeyServiceName, svc)
		c.Next()
	}
}

// ServiceNameHeader selects the service line on shared routes.
const ServiceNameHeader = "X-Service-Name"

const ctxKeyServiceName = "service_name"

// GetServiceName returns the service selected by RequireServiceName.
func GetServiceName(c *gin.Context) domain.ServiceName {
	if v, ok := c.Get(ctxKeyServiceName); ok {
		if s, ok := v.(domain.ServiceName); ok {
			return s
		}
	}
	return ""
}

func containsService(list []domain.ServiceName, s domain.ServiceName) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
