package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"approvedpremises.io/cas/internal/domain"
	"approvedpremises.io/cas/internal/pkg/logger"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID contextKey = "request_id"
	ctxKeyUser      contextKey = "user"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		ctx := context.WithValue(c.Request.Context(), ctxKeyRequestID, rid)
		c.Request = c.Request.WithContext(logger.WithRequestID(ctx, rid))
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// SetUser stores the resolved caller in ctx.
func SetUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// GetUser returns the caller resolved by JWTAuth, or nil.
func GetUser(ctx context.Context) *domain.User {
	if v, ok := ctx.Value(ctxKeyUser).(*domain.User); ok {
		return v
	}
	return nil
}
