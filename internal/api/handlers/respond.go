package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "approvedpremises.io/cas/internal/pkg/errors"
	"approvedpremises.io/cas/internal/pkg/result"
	"approvedpremises.io/cas/internal/service"
)

// authError maps a failed gate to its problem.
func authError[T any](a result.Authorisable[T]) *apperrors.AppError {
	switch a.Kind {
	case result.AuthNotFound:
		return apperrors.NotFound(a.EntityType, a.ID)
	case result.AuthUnauthorised:
		return apperrors.Forbidden("You are not authorized to access this endpoint")
	default:
		return apperrors.Internal(apperrors.CodeInternal, "unexpected authorisation outcome "+a.Kind.String())
	}
}

// validationError maps a failed business outcome to its problem.
func validationError[T any](v result.Validatable[T]) *apperrors.AppError {
	switch v.Kind {
	case result.GeneralValidationError:
		return apperrors.BadRequest(apperrors.CodeGeneralInvalid, v.Message)
	case result.FieldValidationError:
		return apperrors.FieldValidation(v.Fields)
	case result.ConflictError:
		return apperrors.Conflict(v.ConflictingID, v.Message)
	default:
		return apperrors.Internal(apperrors.CodeInternal, "unexpected validation outcome "+v.Kind.String())
	}
}

// fail records err for ErrorHandler. Plain errors become a 500 there.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// writeAuthorisable renders a read gated by existence and permission.
func writeAuthorisable[T, V any](c *gin.Context, a result.Authorisable[T], err error, view func(T) V) {
	writeAuthorisableChecked(c, a, err, infallible(view))
}

// writeAuthorisableChecked is writeAuthorisable for views that can fail.
func writeAuthorisableChecked[T, V any](c *gin.Context, a result.Authorisable[T], err error, view func(T) (V, error)) {
	if err != nil {
		fail(c, err)
		return
	}
	if !a.IsSuccess() {
		fail(c, authError(a))
		return
	}
	render(c, http.StatusOK, a.Value, view)
}

// writeValidatable renders an operation with no permission gate.
func writeValidatable[T, V any](c *gin.Context, status int, v result.Validatable[T], err error, view func(T) V) {
	if err != nil {
		fail(c, err)
		return
	}
	if !v.IsSuccess() {
		fail(c, validationError(v))
		return
	}
	c.JSON(status, view(v.Value))
}

// writeOutcome renders a mutation through both result layers.
func writeOutcome[T, V any](c *gin.Context, status int, o service.Outcome[T], err error, view func(T) V) {
	writeOutcomeChecked(c, status, o, err, infallible(view))
}

// writeOutcomeChecked is writeOutcome for views that can fail.
func writeOutcomeChecked[T, V any](c *gin.Context, status int, o service.Outcome[T], err error, view func(T) (V, error)) {
	if err != nil {
		fail(c, err)
		return
	}
	if !o.IsSuccess() {
		fail(c, authError(o))
		return
	}
	if !o.Value.IsSuccess() {
		fail(c, validationError(o.Value))
		return
	}
	render(c, status, o.Value.Value, view)
}

func render[T, V any](c *gin.Context, status int, value T, view func(T) (V, error)) {
	body, err := view(value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, body)
}

func infallible[T, V any](view func(T) V) func(T) (V, error) {
	return func(v T) (V, error) { return view(v), nil }
}

// bindJSON decodes the body, recording a 400 on failure. An empty body is
// accepted when dst has no required fields.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(dst)
	}
	if err != nil {
		fail(c, apperrors.ErrInvalidBody(err))
		return false
	}
	return true
}
