// Package errors provides the typed application error rendered as an
// RFC 7807 problem document at the HTTP boundary.
//
// Import Path: approvedpremises.io/cas/internal/pkg/errors
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Sentinel errors for common failure scenarios.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "ASSESSMENT_NOT_FOUND").
	Code string

	// Title is the short problem summary; defaults to the HTTP status text.
	Title string

	// Detail is the human-readable explanation sent to the client.
	Detail string

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int

	// InvalidParams carries field-level validation failures.
	InvalidParams []InvalidParam

	// ConflictingID names the entity a 409 collided with.
	ConflictingID string

	// Err is the wrapped underlying error.
	Err error
}

// InvalidParam describes a single field-level validation failure.
type InvalidParam struct {
	PropertyName string `json:"propertyName"`
	ErrorType    string `json:"errorType"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, detail string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Detail:     detail,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, detail string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Detail:     detail,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithTitle overrides the default problem title.
func (e *AppError) WithTitle(title string) *AppError {
	if e == nil {
		return e
	}
	e.Title = title
	return e
}

// NotFound creates a 404 error naming the missing entity.
func NotFound(entityType, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("No %s with an ID of %s could be found", entityType, id), http.StatusNotFound)
}

// BadRequest creates a 400 error.
func BadRequest(code, detail string) *AppError {
	return New(code, detail, http.StatusBadRequest)
}

// FieldValidation creates a 400 error from a field → error type map.
// Params are sorted by property name so responses are stable.
func FieldValidation(fields map[string]string) *AppError {
	params := make([]InvalidParam, 0, len(fields))
	for name, errType := range fields {
		params = append(params, InvalidParam{PropertyName: name, ErrorType: errType})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].PropertyName < params[j].PropertyName })

	e := New(CodeValidationFailed, "There is a problem with your request", http.StatusBadRequest)
	e.Title = "Bad Request"
	e.InvalidParams = params
	return e
}

// Unauthorized creates a 401 error.
func Unauthorized(code, detail string) *AppError {
	return New(code, detail, http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(detail string) *AppError {
	return New(CodeForbidden, detail, http.StatusForbidden)
}

// Conflict creates a 409 error carrying the id of the conflicting entity.
func Conflict(conflictingID, detail string) *AppError {
	e := New(CodeConflict, fmt.Sprintf("%s: %s", detail, conflictingID), http.StatusConflict)
	e.ConflictingID = conflictingID
	return e
}

// Internal creates a 500 error.
func Internal(code, detail string) *AppError {
	return New(code, detail, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Problem is the RFC 7807 body rendered for an AppError.
type Problem struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail,omitempty"`
	Code          string         `json:"code,omitempty"`
	InvalidParams []InvalidParam `json:"invalid-params,omitempty"`
}

// Problem renders the error as a problem document.
func (e *AppError) Problem() Problem {
	title := e.Title
	if title == "" {
		title = http.StatusText(e.HTTPStatus)
	}
	return Problem{
		Type:          "about:blank",
		Title:         title,
		Status:        e.HTTPStatus,
		Detail:        e.Detail,
		Code:          e.Code,
		InvalidParams: e.InvalidParams,
	}
}
