// Package middleware provides HTTP middleware for the CAS API.
//
// Import Path: approvedpremises.io/cas/internal/api/middleware
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "approvedpremises.io/cas/internal/pkg/errors"
	"approvedpremises.io/cas/internal/pkg/logger"
)

// ProblemContentType is the media type of every error body.
const ProblemContentType = "application/problem+json"

// ErrorHandler renders the last error added with c.Error() as a problem
// document. Errors that are not AppErrors become a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.FromContext(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				log.Error("Request failed", zap.String("code", appErr.Code), zap.Error(appErr.Err))
			} else {
				log.Debug("Request rejected",
					zap.String("code", appErr.Code),
					zap.String("detail", appErr.Detail),
					zap.Int("status", appErr.HTTPStatus),
				)
			}
			writeProblem(c, appErr)
			return
		}

		log.Error("Unhandled request error", zap.Error(err))
		writeProblem(c, apperrors.Internal(apperrors.CodeInternal, "An internal error occurred"))
	}
}

func writeProblem(c *gin.Context, e *apperrors.AppError) {
	// gin keeps a Content-Type that is already set.
	c.Header("Content-Type", ProblemContentType)
	c.JSON(e.HTTPStatus, e.Problem())
}

// abortProblem stops the chain and writes e.
func abortProblem(c *gin.Context, e *apperrors.AppError) {
	c.Abort()
	writeProblem(c, e)
}
