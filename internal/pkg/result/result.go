// Package result holds the two-layer outcome types returned by mutating
// service operations.
//
// The outer Authorisable gate answers "does it exist and may the caller touch
// it"; the inner Validatable answers "was the change valid". Callers check the
// outer kind first and only then look at the inner one. Expected business
// failures travel in these values, never as Go errors.
//
// Import Path: approvedpremises.io/cas/internal/pkg/result
package result

import "fmt"

// AuthKind discriminates an Authorisable outcome.
type AuthKind int

const (
	AuthSuccess AuthKind = iota
	AuthNotFound
	AuthUnauthorised
)

func (k AuthKind) String() string {
	switch k {
	case AuthSuccess:
		return "Success"
	case AuthNotFound:
		return "NotFound"
	case AuthUnauthorised:
		return "Unauthorised"
	default:
		return fmt.Sprintf("AuthKind(%d)", int(k))
	}
}

// Authorisable is the existence/permission gate.
type Authorisable[T any] struct {
	Kind AuthKind

	// EntityType and ID describe what was missing for AuthNotFound.
	EntityType string
	ID         string

	Value T
}

// Success wraps a permitted value.
func Success[T any](v T) Authorisable[T] {
	return Authorisable[T]{Kind: AuthSuccess, Value: v}
}

// NotFound reports that the entity does not exist.
func NotFound[T any](entityType, id string) Authorisable[T] {
	return Authorisable[T]{Kind: AuthNotFound, EntityType: entityType, ID: id}
}

// Unauthorised reports that the caller may not act on the entity.
func Unauthorised[T any]() Authorisable[T] {
	return Authorisable[T]{Kind: AuthUnauthorised}
}

// IsSuccess reports whether the gate passed.
func (a Authorisable[T]) IsSuccess() bool { return a.Kind == AuthSuccess }

// ValidKind discriminates a Validatable outcome.
type ValidKind int

const (
	ValidSuccess ValidKind = iota
	GeneralValidationError
	FieldValidationError
	ConflictError
)

func (k ValidKind) String() string {
	switch k {
	case ValidSuccess:
		return "Success"
	case GeneralValidationError:
		return "GeneralValidationError"
	case FieldValidationError:
		return "FieldValidationError"
	case ConflictError:
		return "ConflictError"
	default:
		return fmt.Sprintf("ValidKind(%d)", int(k))
	}
}

// Validatable is the business-rule outcome of an operation.
type Validatable[T any] struct {
	Kind ValidKind

	// Message is set for GeneralValidationError and ConflictError.
	Message string

	// Fields maps a JSON path to an error type for FieldValidationError.
	Fields map[string]string

	// ConflictingID is set for ConflictError.
	ConflictingID string

	Value T
}

// Valid wraps a successful value.
func Valid[T any](v T) Validatable[T] {
	return Validatable[T]{Kind: ValidSuccess, Value: v}
}

// General reports a rule violation that is not tied to a field.
func General[T any](message string) Validatable[T] {
	return Validatable[T]{Kind: GeneralValidationError, Message: message}
}

// Fields reports per-field errors.
func Fields[T any](fields map[string]string) Validatable[T] {
	return Validatable[T]{Kind: FieldValidationError, Fields: fields}
}

// Conflict reports a collision with an existing entity.
func Conflict[T any](conflictingID, message string) Validatable[T] {
	return Validatable[T]{Kind: ConflictError, ConflictingID: conflictingID, Message: message}
}

// IsSuccess reports whether the operation passed validation.
func (v Validatable[T]) IsSuccess() bool { return v.Kind == ValidSuccess }

// ValidationErrors accumulates field errors before deciding an outcome.
type ValidationErrors map[string]string

// Add records an error type for a field; the first error for a field wins.
func (e ValidationErrors) Add(field, errorType string) {
	if _, ok := e[field]; ok {
		return
	}
	e[field] = errorType
}

// Any reports whether any field error was recorded.
func (e ValidationErrors) Any() bool { return len(e) > 0 }

// Nested wraps an inner Validatable inside a successful gate.
func Nested[T any](v Validatable[T]) Authorisable[Validatable[T]] {
	return Success(v)
}

// Recast changes the value type of a failed Validatable. It panics when
// called on a success because there is no value to convert.
func Recast[U, T any](v Validatable[T]) Validatable[U] {
	if v.Kind == ValidSuccess {
		panic("result.Recast called on a successful Validatable")
	}
	return Validatable[U]{Kind: v.Kind, Message: v.Message, Fields: v.Fields, ConflictingID: v.ConflictingID}
}
